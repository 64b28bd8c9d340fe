// loader/loader.go

// Package loader validates an installed program image and resolves the
// indices the interpreter works with: constants, strings, class and method
// headers, and virtual-method targets.
package loader

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/storage"
)

// Loader is the view of one image installed in one backend. It is
// constructed once per process and is not safe for concurrent use.
type Loader struct {
	mem       storage.Backend
	supported image.Feature
	reporter  Reporter

	header        image.Header
	constantCount int
	classCount    int
	ready         bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithFeatures sets the capabilities the running VM supports. The Magic
// marker is always part of the supported set.
func WithFeatures(f image.Feature) Option {
	return func(l *Loader) {
		l.supported = f | image.Magic
	}
}

// WithReporter sets the error sink.
func WithReporter(r Reporter) Option {
	return func(l *Loader) {
		l.reporter = r
	}
}

// New creates a Loader over mem. Init must succeed before anything else is
// called.
func New(mem storage.Backend, opts ...Option) *Loader {
	l := &Loader{
		mem:       mem,
		supported: image.FeaturesAll | image.Magic,
		reporter:  LogReporter{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supported returns the VM's supported feature set.
func (l *Loader) Supported() image.Feature {
	return l.supported
}

func (l *Loader) fail(code ErrorCode, err error) error {
	l.reporter.Report(code, err)
	return err
}

func (l *Loader) check() error {
	if !l.ready {
		return ErrNotInitialized
	}
	return nil
}

// Init validates the installed image. The feature word must carry the Magic
// marker and require nothing the VM lacks, the version must match, and the
// table layout must fit the backend. On success the constant and class
// counts are cached and later calls return immediately.
func (l *Loader) Init() error {
	if l.ready {
		return nil
	}

	word, err := l.mem.ReadU32(image.OffsetFeatures)
	if err != nil {
		return l.fail(codeFor(err, ErrorImageMagic), err)
	}
	features := image.Feature(word)

	log.Debug().
		Str("image", features.String()).
		Str("vm", l.supported.String()).
		Msg("Checking image features")

	if !l.supported.Accepts(features) {
		return l.fail(ErrorImageMagic, fmt.Errorf("%w: image word 0x%08x, vm supports 0x%08x", ErrBadImage, word, uint32(l.supported)))
	}

	version, err := l.mem.ReadU8(image.OffsetVersion)
	if err != nil {
		return l.fail(codeFor(err, ErrorImageVersion), err)
	}
	if version != image.Version {
		return l.fail(ErrorImageVersion, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, image.Version, version))
	}

	raw := make([]byte, image.HeaderSize)
	if err := l.mem.Read(raw, 0); err != nil {
		return l.fail(codeFor(err, ErrorImageLayout), err)
	}
	h, err := image.DecodeHeader(raw)
	if err != nil {
		return l.fail(ErrorImageLayout, fmt.Errorf("%w: %w", ErrBadLayout, err))
	}

	if err := l.checkLayout(h); err != nil {
		return l.fail(ErrorImageLayout, fmt.Errorf("%w: %w", ErrBadLayout, err))
	}

	l.header = h
	l.constantCount = h.ConstantCount()
	l.classCount = h.ClassCount()
	l.ready = true

	log.Debug().
		Int("classes", l.classCount).
		Int("methods", int(h.MethodCount)).
		Int("constants", l.constantCount).
		Uint16("main", h.Main).
		Msg("Image validated")

	return nil
}

// checkLayout verifies table offsets and that every superclass index names a
// declared class.
func (l *Loader) checkLayout(h image.Header) error {
	if err := h.CheckLayout(l.mem.Capacity()); err != nil {
		return err
	}

	var result *multierror.Error
	for c := 0; c < h.ClassCount(); c++ {
		super, err := l.mem.ReadU8(storage.Addr(image.HeaderSize + c*image.ClassHeaderSize + 1))
		if err != nil {
			return err
		}
		if int(super) >= h.ClassCount() {
			result = multierror.Append(result, fmt.Errorf("class %d: superclass %d out of range (%d classes)", c, super, h.ClassCount()))
		}
	}
	return result.ErrorOrNil()
}

// Header returns the validated image header.
func (l *Loader) Header() (image.Header, error) {
	if err := l.check(); err != nil {
		return image.Header{}, err
	}
	return l.header, nil
}

// ConstantCount is the number of literals in the constant pool.
func (l *Loader) ConstantCount() int { return l.constantCount }

// ClassCount is the number of declared classes.
func (l *Loader) ClassCount() int { return l.classCount }

// MethodCount is the number of entries in the method table.
func (l *Loader) MethodCount() int { return int(l.header.MethodCount) }

// MainMethod returns the table index of the program's main method.
func (l *Loader) MainMethod() (int, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	return int(l.header.Main), nil
}

// StaticFields returns the number of static fields the program declares.
func (l *Loader) StaticFields() (uint8, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	return l.mem.ReadU8(image.OffsetStaticFields)
}
