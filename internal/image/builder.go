// image/builder.go

package image

import (
	"errors"
	"fmt"

	"rgehrsitz/nvm/internal/storage"
)

var ErrImageTooLarge = errors.New("image too large")

// Builder assembles a well-formed image. Tables are laid out in format order:
// header, class headers, constant pool, string table, method table, code.
type Builder struct {
	Features     Feature
	Version      uint8
	StaticFields uint8

	classes   []ClassHeader
	constants []uint32
	strings   []string
	methods   []pendingMethod
	main      int
}

type pendingMethod struct {
	header MethodHeader
	code   []byte
}

// NewBuilder creates a builder for a current-version image requiring no
// optional features.
func NewBuilder() *Builder {
	return &Builder{
		Features: Magic,
		Version:  Version,
	}
}

// AddClass appends a class header and returns its index.
func (b *Builder) AddClass(fields, super uint8) uint8 {
	b.classes = append(b.classes, ClassHeader{Fields: fields, Super: super})
	return uint8(len(b.classes) - 1)
}

// AddConstant appends a literal and returns its constant index.
func (b *Builder) AddConstant(v uint32) uint16 {
	b.constants = append(b.constants, v)
	return uint16(len(b.constants) - 1)
}

// AddString appends a string and returns its string-table index. Its flat
// constant index is the final constant count plus this index.
func (b *Builder) AddString(s string) uint16 {
	b.strings = append(b.strings, s)
	return uint16(len(b.strings) - 1)
}

// AddMethod appends a method header with its bytecode and returns the
// method's table index. The header's Code field is filled in by Build.
func (b *Builder) AddMethod(h MethodHeader, code []byte) int {
	b.methods = append(b.methods, pendingMethod{header: h, code: code})
	return len(b.methods) - 1
}

// SetMain selects the main method by table index.
func (b *Builder) SetMain(index int) {
	b.main = index
}

// Build lays out the image and returns its bytes.
func (b *Builder) Build() ([]byte, error) {
	if len(b.classes) > 256 {
		return nil, fmt.Errorf("%w: %d classes", ErrImageTooLarge, len(b.classes))
	}
	if len(b.methods) > 255 {
		return nil, fmt.Errorf("%w: %d methods", ErrImageTooLarge, len(b.methods))
	}
	if b.main < 0 || b.main >= len(b.methods) {
		return nil, fmt.Errorf("main method %d out of range (%d methods)", b.main, len(b.methods))
	}
	for i, c := range b.classes {
		if int(c.Super) >= len(b.classes) {
			return nil, fmt.Errorf("class %d: superclass %d out of range", i, c.Super)
		}
	}

	constantPool := HeaderSize + len(b.classes)*ClassHeaderSize
	stringTable := constantPool + len(b.constants)*ConstantSize

	// String data follows the offset array; offsets are relative to the
	// string table base.
	stringOffsets := make([]int, len(b.strings))
	pos := len(b.strings) * StringOffsetSize
	for i, s := range b.strings {
		stringOffsets[i] = pos
		pos += len(s) + 1
	}
	methodTable := stringTable + pos
	codeBase := methodTable + len(b.methods)*MethodHeaderSize

	size := codeBase
	for _, m := range b.methods {
		size += len(m.code)
	}
	if size > storage.MaxCapacity {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, size)
	}

	h := Header{
		Features:     b.Features,
		Version:      b.Version,
		MethodTable:  uint16(methodTable),
		StringTable:  uint16(stringTable),
		ConstantPool: uint16(constantPool),
		StaticFields: b.StaticFields,
		MethodCount:  uint8(len(b.methods)),
		Main:         uint16(b.main),
	}

	out := make([]byte, 0, size)
	out = append(out, h.Encode()...)
	for _, c := range b.classes {
		out = append(out, c.Encode()...)
	}

	word := make([]byte, ConstantSize)
	for _, v := range b.constants {
		storage.ByteOrder.PutUint32(word, v)
		out = append(out, word...)
	}

	half := make([]byte, StringOffsetSize)
	for _, off := range stringOffsets {
		storage.ByteOrder.PutUint16(half, uint16(off))
		out = append(out, half...)
	}
	for _, s := range b.strings {
		out = append(out, s...)
		out = append(out, 0)
	}

	code := codeBase
	for _, m := range b.methods {
		hdr := m.header
		hdr.Code = uint16(code)
		out = append(out, hdr.Encode()...)
		code += len(m.code)
	}
	for _, m := range b.methods {
		out = append(out, m.code...)
	}

	return out, nil
}
