package image

import "fmt"

// Constant is a resolved constant-pool entry: either a Literal or a
// StringRef. Consumers must switch on the variant before using the value.
type Constant interface {
	isConstant()
	String() string
}

// Literal is a 32-bit value stored in the constant pool.
type Literal uint32

// StringRef is an index into the string table. It has not been dereferenced.
type StringRef uint16

func (Literal) isConstant()   {}
func (StringRef) isConstant() {}

func (l Literal) String() string   { return fmt.Sprintf("0x%08x", uint32(l)) }
func (s StringRef) String() string { return fmt.Sprintf("string#%d", uint16(s)) }
