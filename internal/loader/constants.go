package loader

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/storage"
)

// Constant resolves a flat constant index. Indices below ConstantCount are
// literals read from the constant pool. Higher indices name string-table
// entries and come back as an undereferenced image.StringRef.
func (l *Loader) Constant(index uint16) (image.Constant, error) {
	if err := l.check(); err != nil {
		return nil, err
	}

	if int(index) < l.constantCount {
		addr := storage.Addr(int(l.header.ConstantPool) + image.ConstantSize*int(index))
		v, err := l.mem.ReadU32(addr)
		if err != nil {
			return nil, l.fail(codeFor(err, ErrorImageLayout), err)
		}
		log.Debug().Uint16("index", index).Uint32("value", v).Msg("Constant")
		return image.Literal(v), nil
	}

	ref := image.StringRef(int(index) - l.constantCount)
	log.Debug().Uint16("index", index).Uint16("string", uint16(ref)).Msg("Constant string")
	return ref, nil
}

// ResolveAddress turns a string reference into the marked address of the
// string's first byte. The string table holds 16-bit offsets relative to its
// own base.
func (l *Loader) ResolveAddress(ref image.StringRef) (storage.Addr, error) {
	if err := l.check(); err != nil {
		return 0, err
	}

	base := int(l.header.StringTable)
	entry := base + image.StringOffsetSize*int(ref)
	if entry+image.StringOffsetSize > int(l.header.MethodTable) {
		return 0, fmt.Errorf("%w: string %d outside string table", ErrIndexOutOfRange, ref)
	}

	off, err := l.mem.ReadU16(storage.Addr(entry))
	if err != nil {
		return 0, l.fail(codeFor(err, ErrorImageLayout), err)
	}

	addr, err := storage.AddrOf(base + int(off))
	if err != nil {
		return 0, l.fail(ErrorCapacity, err)
	}
	return addr.Marked(), nil
}

// String reads the NUL-terminated string a reference points to.
func (l *Loader) String(ref image.StringRef) (string, error) {
	addr, err := l.ResolveAddress(ref)
	if err != nil {
		return "", err
	}

	var buf []byte
	for pos := addr.Offset(); ; pos++ {
		b, err := l.mem.ReadU8(storage.Addr(pos))
		if err != nil {
			return "", l.fail(codeFor(err, ErrorImageLayout), fmt.Errorf("unterminated string %d: %w", ref, err))
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// StringCount derives the number of string-table entries from the first
// stored offset, which always points just past the offset array.
func (l *Loader) StringCount() (int, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	if l.header.MethodTable <= l.header.StringTable {
		return 0, nil
	}
	first, err := l.mem.ReadU16(storage.Addr(l.header.StringTable))
	if err != nil {
		return 0, l.fail(codeFor(err, ErrorImageLayout), err)
	}
	return int(first) / image.StringOffsetSize, nil
}
