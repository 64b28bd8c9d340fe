// storage/backend.go

// Package storage provides typed access to the non-volatile memory that holds
// the installed program image. Two memory kinds exist: read-only code memory
// (Flash) and byte-writable memory (EEPROM). Both are addressed with Addr
// values and both enforce the capacity bound on every access.
//
// Backends are owned by a single goroutine. Nothing here locks.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Addr is a byte address inside program memory. The high bit marks an
// address that was handed out as an image reference; it is stripped before
// any physical access.
type Addr uint16

// AddrMarker is the reference marker bit carried by image addresses.
const AddrMarker Addr = 0x8000

// MaxCapacity is the largest memory a backend can expose. Addresses at or
// above it would collide with AddrMarker.
const MaxCapacity = int(AddrMarker)

// ByteOrder is the order of every multi-byte field in program memory. The
// image generator writes little-endian regardless of the host it runs on.
var ByteOrder = binary.LittleEndian

// Marked returns a with the reference marker set.
func (a Addr) Marked() Addr { return a | AddrMarker }

// IsMarked reports whether a carries the reference marker.
func (a Addr) IsMarked() bool { return a&AddrMarker != 0 }

// Offset returns the physical offset of a with the marker removed.
func (a Addr) Offset() int { return int(a &^ AddrMarker) }

// AddrOf converts a physical offset into an unmarked Addr.
func AddrOf(offset int) (Addr, error) {
	if offset < 0 || offset >= MaxCapacity {
		return 0, fmt.Errorf("%w: offset %d", ErrCapacityExceeded, offset)
	}
	return Addr(offset), nil
}

func (a Addr) String() string {
	if a.IsMarked() {
		return fmt.Sprintf("0x%04x*", a.Offset())
	}
	return fmt.Sprintf("0x%04x", a.Offset())
}

var (
	ErrCapacityExceeded = errors.New("program memory capacity exceeded")
	ErrInvalidCapacity  = errors.New("invalid program memory capacity")
)

// Kind names a backend variant.
type Kind string

const (
	KindFlash  Kind = "flash"
	KindEEPROM Kind = "eeprom"
)

// Backend is uniform typed access to one physical memory.
type Backend interface {
	Kind() Kind
	Capacity() int

	// Read copies len(dst) bytes starting at src into dst. It never performs
	// a partial read.
	Read(dst []byte, src Addr) error
	ReadU8(addr Addr) (uint8, error)
	ReadU16(addr Addr) (uint16, error)
	ReadU32(addr Addr) (uint32, error)

	// WriteU8 writes a single byte. It has no effect on read-only memory.
	WriteU8(addr Addr, value uint8) error

	// Store bulk-installs buf starting at offset. A buffer that does not fit
	// is rejected and the memory is left unchanged.
	Store(offset Addr, buf []byte) error

	Close() error
}

// cells implements the read path shared by both variants.
type cells struct {
	mem []byte
}

func checkCapacity(capacity int) error {
	if capacity <= 0 || capacity > MaxCapacity {
		return fmt.Errorf("%w: %d (limit %d)", ErrInvalidCapacity, capacity, MaxCapacity)
	}
	return nil
}

func (c *cells) Capacity() int { return len(c.mem) }

// span returns the bounds of an n byte access at addr.
func (c *cells) span(addr Addr, n int) (int, int, error) {
	start := addr.Offset()
	end := start + n
	if n < 0 || end > len(c.mem) {
		return 0, 0, fmt.Errorf("%w: %d bytes at %s (capacity %d)", ErrCapacityExceeded, n, addr, len(c.mem))
	}
	return start, end, nil
}

func (c *cells) Read(dst []byte, src Addr) error {
	start, end, err := c.span(src, len(dst))
	if err != nil {
		return err
	}
	copy(dst, c.mem[start:end])
	return nil
}

func (c *cells) ReadU8(addr Addr) (uint8, error) {
	start, _, err := c.span(addr, 1)
	if err != nil {
		return 0, err
	}
	return c.mem[start], nil
}

func (c *cells) ReadU16(addr Addr) (uint16, error) {
	start, end, err := c.span(addr, 2)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint16(c.mem[start:end]), nil
}

func (c *cells) ReadU32(addr Addr) (uint32, error) {
	start, end, err := c.span(addr, 4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(c.mem[start:end]), nil
}

// store copies buf into memory after the capacity check.
func (c *cells) store(offset Addr, buf []byte) error {
	start, end, err := c.span(offset, len(buf))
	if err != nil {
		return err
	}
	copy(c.mem[start:end], buf)
	return nil
}
