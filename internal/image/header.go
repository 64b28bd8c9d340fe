// image/header.go

// Package image defines the binary layout of an installed program image:
// the fixed header, the class and method header tables, the constant pool
// and the string table. All multi-byte fields are little-endian.
package image

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"rgehrsitz/nvm/internal/storage"
)

// Version is the image format version this loader understands.
const Version uint8 = 2

// Layout sizes in bytes.
const (
	HeaderSize       = 15
	ClassHeaderSize  = 2
	MethodHeaderSize = 8
	ConstantSize     = 4
	StringOffsetSize = 2
)

// Header field offsets.
const (
	OffsetFeatures     = 0
	OffsetVersion      = 4
	OffsetMethodTable  = 5
	OffsetStringTable  = 7
	OffsetConstantPool = 9
	OffsetStaticFields = 11
	OffsetMethodCount  = 12
	OffsetMain         = 13
)

var ErrShortHeader = errors.New("image header truncated")

// Header is the decoded fixed part of an image.
type Header struct {
	Features     Feature // Required capabilities plus the Magic marker
	Version      uint8   // Format version
	MethodTable  uint16  // Offset of the method header table
	StringTable  uint16  // Offset of the string table
	ConstantPool uint16  // Offset of the constant pool
	StaticFields uint8   // Number of static fields
	MethodCount  uint8   // Number of method headers
	Main         uint16  // Index of the main method
}

// DecodeHeader decodes the fixed header from the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrShortHeader, len(b), HeaderSize)
	}
	order := storage.ByteOrder
	return Header{
		Features:     Feature(order.Uint32(b[OffsetFeatures:])),
		Version:      b[OffsetVersion],
		MethodTable:  order.Uint16(b[OffsetMethodTable:]),
		StringTable:  order.Uint16(b[OffsetStringTable:]),
		ConstantPool: order.Uint16(b[OffsetConstantPool:]),
		StaticFields: b[OffsetStaticFields],
		MethodCount:  b[OffsetMethodCount],
		Main:         order.Uint16(b[OffsetMain:]),
	}, nil
}

// Encode returns the HeaderSize byte encoding of h.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	order := storage.ByteOrder
	order.PutUint32(b[OffsetFeatures:], uint32(h.Features))
	b[OffsetVersion] = h.Version
	order.PutUint16(b[OffsetMethodTable:], h.MethodTable)
	order.PutUint16(b[OffsetStringTable:], h.StringTable)
	order.PutUint16(b[OffsetConstantPool:], h.ConstantPool)
	b[OffsetStaticFields] = h.StaticFields
	b[OffsetMethodCount] = h.MethodCount
	order.PutUint16(b[OffsetMain:], h.Main)
	return b
}

// ClassCount is the number of class headers. They fill the space between the
// fixed header and the constant pool.
func (h Header) ClassCount() int {
	if h.ConstantPool < HeaderSize {
		return 0
	}
	return (int(h.ConstantPool) - HeaderSize) / ClassHeaderSize
}

// ConstantCount is the number of 32-bit literals in the constant pool.
func (h Header) ConstantCount() int {
	if h.StringTable < h.ConstantPool {
		return 0
	}
	return (int(h.StringTable) - int(h.ConstantPool)) / ConstantSize
}

// CheckLayout verifies the table offsets against each other and against the
// memory capacity. Every violation is collected.
func (h Header) CheckLayout(capacity int) error {
	var result *multierror.Error

	if h.ConstantPool < HeaderSize {
		result = multierror.Append(result, fmt.Errorf("constant pool at %d overlaps the header", h.ConstantPool))
	} else if (h.ConstantPool-HeaderSize)%ClassHeaderSize != 0 {
		result = multierror.Append(result, fmt.Errorf("class table length %d is not a multiple of %d", h.ConstantPool-HeaderSize, ClassHeaderSize))
	}

	if h.StringTable < h.ConstantPool {
		result = multierror.Append(result, fmt.Errorf("string table at %d precedes constant pool at %d", h.StringTable, h.ConstantPool))
	} else if (h.StringTable-h.ConstantPool)%ConstantSize != 0 {
		result = multierror.Append(result, fmt.Errorf("constant pool length %d is not a multiple of %d", h.StringTable-h.ConstantPool, ConstantSize))
	}

	if h.MethodTable < h.StringTable {
		result = multierror.Append(result, fmt.Errorf("method table at %d precedes string table at %d", h.MethodTable, h.StringTable))
	}

	if end := int(h.MethodTable) + int(h.MethodCount)*MethodHeaderSize; end > capacity {
		result = multierror.Append(result, fmt.Errorf("method table ends at %d beyond capacity %d", end, capacity))
	}

	if int(h.Main) >= int(h.MethodCount) {
		result = multierror.Append(result, fmt.Errorf("main method %d out of range (%d methods)", h.Main, h.MethodCount))
	}

	return result.ErrorOrNil()
}

// Feature is the capability bitmask carried in the first header word.
type Feature uint32

// Magic is the marker pattern every valid image carries in its feature word.
const Magic Feature = 0xbe000000

const (
	FeatureLookupSwitch Feature = 1 << iota
	FeatureTableSwitch
	Feature32Bit
	FeatureFloat
	FeatureArray
	FeatureInheritance
	FeatureExtStdlib
)

// FeaturesAll is every capability this loader knows about.
const FeaturesAll = FeatureLookupSwitch | FeatureTableSwitch | Feature32Bit |
	FeatureFloat | FeatureArray | FeatureInheritance | FeatureExtStdlib

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureLookupSwitch, "lookupswitch"},
	{FeatureTableSwitch, "tableswitch"},
	{Feature32Bit, "32bit"},
	{FeatureFloat, "float"},
	{FeatureArray, "array"},
	{FeatureInheritance, "inheritance"},
	{FeatureExtStdlib, "extstdlib"},
}

// Has reports whether every bit of x is set in f.
func (f Feature) Has(x Feature) bool { return f&x == x }

// Accepts reports whether an image with feature word img may run on a VM
// whose supported set is f. The image must carry Magic and may only require
// features present in f.
func (f Feature) Accepts(img Feature) bool {
	return img&f == img|Magic
}

// ParseFeature returns the feature bit with the given name.
func ParseFeature(name string) (Feature, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, fn := range featureNames {
		if fn.name == n {
			return fn.f, nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

func (f Feature) String() string {
	var parts []string
	if f.Has(Magic) {
		parts = append(parts, "magic")
	}
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ (Magic | FeaturesAll); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%08x", uint32(rest)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
