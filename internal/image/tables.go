package image

import (
	"fmt"

	"rgehrsitz/nvm/internal/storage"
)

// ClassHeader describes one declared class. The root class is the one whose
// Super is its own index.
type ClassHeader struct {
	Fields uint8 // Instance field count
	Super  uint8 // Superclass index
}

// DecodeClassHeader decodes a class header from b.
func DecodeClassHeader(b []byte) (ClassHeader, error) {
	if len(b) < ClassHeaderSize {
		return ClassHeader{}, fmt.Errorf("class header truncated: %d bytes", len(b))
	}
	return ClassHeader{Fields: b[0], Super: b[1]}, nil
}

func (c ClassHeader) Encode() []byte {
	return []byte{c.Fields, c.Super}
}

// MethodID packs the declaring class into the high byte and the in-class
// method id into the low byte.
type MethodID uint16

func NewMethodID(class, id uint8) MethodID {
	return MethodID(class)<<8 | MethodID(id)
}

func (m MethodID) Class() uint8 { return uint8(m >> 8) }
func (m MethodID) Local() uint8 { return uint8(m) }

func (m MethodID) String() string {
	return fmt.Sprintf("%d.%d", m.Class(), m.Local())
}

// MethodFlags is the method header flags byte.
type MethodFlags uint8

const (
	// FlagClinit marks a static initializer.
	FlagClinit MethodFlags = 1 << iota
)

// MethodHeader is one entry of the method table.
type MethodHeader struct {
	ID        MethodID
	Flags     MethodFlags
	Args      uint8
	MaxLocals uint8
	MaxStack  uint8
	Code      uint16 // Bytecode offset from the image base
}

// IsClinit reports whether the method is a static initializer.
func (m MethodHeader) IsClinit() bool { return m.Flags&FlagClinit != 0 }

// DecodeMethodHeader decodes a method header from b.
func DecodeMethodHeader(b []byte) (MethodHeader, error) {
	if len(b) < MethodHeaderSize {
		return MethodHeader{}, fmt.Errorf("method header truncated: %d bytes", len(b))
	}
	order := storage.ByteOrder
	return MethodHeader{
		ID:        MethodID(order.Uint16(b[0:])),
		Flags:     MethodFlags(b[2]),
		Args:      b[3],
		MaxLocals: b[4],
		MaxStack:  b[5],
		Code:      order.Uint16(b[6:]),
	}, nil
}

func (m MethodHeader) Encode() []byte {
	b := make([]byte, MethodHeaderSize)
	order := storage.ByteOrder
	order.PutUint16(b[0:], uint16(m.ID))
	b[2] = byte(m.Flags)
	b[3] = m.Args
	b[4] = m.MaxLocals
	b[5] = m.MaxStack
	order.PutUint16(b[6:], m.Code)
	return b
}
