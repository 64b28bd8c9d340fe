package loader

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/storage"
)

// MethodHeaderAddr returns the address of the i-th method header.
func (l *Loader) MethodHeaderAddr(i int) (storage.Addr, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	if i < 0 || i >= int(l.header.MethodCount) {
		return 0, fmt.Errorf("%w: method %d (%d methods)", ErrIndexOutOfRange, i, l.header.MethodCount)
	}
	return storage.Addr(int(l.header.MethodTable) + i*image.MethodHeaderSize), nil
}

// MethodHeader reads and decodes the i-th method header.
func (l *Loader) MethodHeader(i int) (image.MethodHeader, error) {
	addr, err := l.MethodHeaderAddr(i)
	if err != nil {
		return image.MethodHeader{}, err
	}
	raw := make([]byte, image.MethodHeaderSize)
	if err := l.mem.Read(raw, addr); err != nil {
		return image.MethodHeader{}, l.fail(codeFor(err, ErrorImageLayout), err)
	}
	return image.DecodeMethodHeader(raw)
}

// ClassHeader reads the header of a declared class.
func (l *Loader) ClassHeader(class uint8) (image.ClassHeader, error) {
	if err := l.check(); err != nil {
		return image.ClassHeader{}, err
	}
	if int(class) >= l.classCount {
		return image.ClassHeader{}, fmt.Errorf("%w: class %d (%d classes)", ErrIndexOutOfRange, class, l.classCount)
	}
	raw := make([]byte, image.ClassHeaderSize)
	addr := storage.Addr(image.HeaderSize + int(class)*image.ClassHeaderSize)
	if err := l.mem.Read(raw, addr); err != nil {
		return image.ClassHeader{}, l.fail(codeFor(err, ErrorImageLayout), err)
	}
	return image.DecodeClassHeader(raw)
}

// ClassFields returns the instance field count of a class.
func (l *Loader) ClassFields(class uint8) (uint8, error) {
	c, err := l.ClassHeader(class)
	if err != nil {
		return 0, err
	}
	return c.Fields, nil
}

// Superclass returns the superclass index of a class.
func (l *Loader) Superclass(class uint8) (uint8, error) {
	c, err := l.ClassHeader(class)
	if err != nil {
		return 0, err
	}
	return c.Super, nil
}

// FindMethodInClass scans the method table for a method declared by exactly
// class with the given id.
func (l *Loader) FindMethodInClass(class, id uint8) (int, bool, error) {
	if err := l.check(); err != nil {
		return 0, false, err
	}

	want := image.NewMethodID(class, id)
	log.Debug().Uint8("class", class).Uint8("id", id).Msg("Searching method")

	for i := 0; i < int(l.header.MethodCount); i++ {
		m, err := l.MethodHeader(i)
		if err != nil {
			return 0, false, err
		}
		if m.ID == want {
			log.Debug().Int("index", i).Msg("Method match")
			return i, true, nil
		}
	}
	return 0, false, nil
}

// FindMethod resolves (class, id) to a method table index, walking up the
// superclass chain when class does not declare the method itself. The walk
// ends at the root class (its own superclass) and never visits more classes
// than the image declares, so a cyclic chain cannot hang it. Without
// FeatureInheritance only class itself is searched.
func (l *Loader) FindMethod(class, id uint8) (int, error) {
	if err := l.check(); err != nil {
		return 0, err
	}

	inherit := l.supported.Has(image.FeatureInheritance)
	current := class
	for visited := 1; ; visited++ {
		idx, ok, err := l.FindMethodInClass(current, id)
		if err != nil {
			return 0, err
		}
		if ok {
			return idx, nil
		}

		if !inherit || int(current) >= l.classCount || visited >= l.classCount {
			break
		}
		super, err := l.Superclass(current)
		if err != nil {
			return 0, err
		}
		if super == current {
			break
		}
		log.Debug().Uint8("class", current).Uint8("super", super).Msg("Moving to superclass")
		current = super
	}

	return 0, l.fail(ErrorMethodNotFound, fmt.Errorf("%w: class %d, id %d", ErrMethodNotFound, class, id))
}
