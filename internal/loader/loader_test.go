package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/storage"
)

type recorder struct {
	codes []ErrorCode
	errs  []error
}

func (r *recorder) Report(code ErrorCode, err error) {
	r.codes = append(r.codes, code)
	r.errs = append(r.errs, err)
}

// sampleImage is a three-level hierarchy: root(0) <- mid(1) <- leaf(2).
// Only root defines method id 7; mid and leaf both define id 3.
func sampleImage(t *testing.T) *image.Builder {
	t.Helper()
	b := image.NewBuilder()
	b.Features |= image.FeatureInheritance
	b.StaticFields = 4

	root := b.AddClass(1, 0)
	mid := b.AddClass(2, root)
	b.AddClass(3, mid)

	b.AddConstant(0x00000000)
	b.AddConstant(0xcafebabe)
	b.AddConstant(0xffffffff)
	b.AddString("hello")
	b.AddString("world")

	b.AddMethod(image.MethodHeader{ID: image.NewMethodID(0, 7)}, []byte{0xb1})
	b.AddMethod(image.MethodHeader{ID: image.NewMethodID(1, 3), Flags: image.FlagClinit}, []byte{0xb1})
	b.AddMethod(image.MethodHeader{ID: image.NewMethodID(2, 3)}, []byte{0xb1})
	main := b.AddMethod(image.MethodHeader{ID: image.NewMethodID(2, 0), MaxStack: 1}, []byte{0x03, 0xb1})
	b.SetMain(main)
	return b
}

func install(t *testing.T, b *image.Builder) *storage.EEPROM {
	t.Helper()
	img, err := b.Build()
	require.NoError(t, err)
	mem, err := storage.NewEEPROM(512)
	require.NoError(t, err)
	require.NoError(t, mem.Store(0, img))
	return mem
}

func newLoader(t *testing.T, mem storage.Backend, opts ...Option) (*Loader, *recorder) {
	t.Helper()
	rec := &recorder{}
	return New(mem, append([]Option{WithReporter(rec)}, opts...)...), rec
}

func readyLoader(t *testing.T) (*Loader, *storage.EEPROM, *recorder) {
	t.Helper()
	mem := install(t, sampleImage(t))
	l, rec := newLoader(t, mem)
	require.NoError(t, l.Init())
	return l, mem, rec
}

func TestInit_ValidImage(t *testing.T) {
	l, _, rec := readyLoader(t)

	h, err := l.Header()
	require.NoError(t, err)
	assert.Equal(t, image.Version, h.Version)
	assert.Equal(t, 3, l.ClassCount())
	assert.Equal(t, 4, l.MethodCount())
	assert.Equal(t, (int(h.StringTable)-int(h.ConstantPool))/4, l.ConstantCount())
	assert.Equal(t, 3, l.ConstantCount())

	main, err := l.MainMethod()
	require.NoError(t, err)
	assert.Equal(t, 3, main)

	sf, err := l.StaticFields()
	require.NoError(t, err)
	assert.Equal(t, uint8(4), sf)

	assert.Empty(t, rec.codes)
}

func TestInit_FlashBackend(t *testing.T) {
	img, err := sampleImage(t).Build()
	require.NoError(t, err)
	mem, err := storage.NewFlash(512)
	require.NoError(t, err)
	require.NoError(t, mem.Store(0, img))

	l, _ := newLoader(t, mem)
	require.NoError(t, l.Init())
	assert.Equal(t, 3, l.ConstantCount())
}

func TestInit_CorruptMarkerBits(t *testing.T) {
	for bit := 24; bit < 32; bit++ {
		mem := install(t, sampleImage(t))
		word, err := mem.ReadU32(image.OffsetFeatures)
		require.NoError(t, err)

		corrupt := make([]byte, 4)
		storage.ByteOrder.PutUint32(corrupt, word^(1<<bit))
		require.NoError(t, mem.Store(image.OffsetFeatures, corrupt))

		l, rec := newLoader(t, mem)
		err = l.Init()
		assert.ErrorIs(t, err, ErrBadImage, "bit %d", bit)
		assert.Equal(t, []ErrorCode{ErrorImageMagic}, rec.codes, "bit %d", bit)
	}
}

func TestInit_ErasedMemory(t *testing.T) {
	mem, err := storage.NewEEPROM(64)
	require.NoError(t, err)

	l, rec := newLoader(t, mem)
	assert.ErrorIs(t, l.Init(), ErrBadImage)
	assert.Equal(t, []ErrorCode{ErrorImageMagic}, rec.codes)
}

func TestInit_UnsupportedFeature(t *testing.T) {
	b := sampleImage(t)
	b.Features |= image.FeatureFloat
	mem := install(t, b)

	l, rec := newLoader(t, mem, WithFeatures(image.FeatureInheritance|image.Feature32Bit))
	assert.ErrorIs(t, l.Init(), ErrBadImage)
	assert.Equal(t, []ErrorCode{ErrorImageMagic}, rec.codes)

	l, _ = newLoader(t, mem, WithFeatures(image.FeatureInheritance|image.FeatureFloat))
	assert.NoError(t, l.Init())
}

func TestInit_VersionMismatch(t *testing.T) {
	b := sampleImage(t)
	b.Version = image.Version + 1
	l, rec := newLoader(t, install(t, b))

	assert.ErrorIs(t, l.Init(), ErrVersionMismatch)
	assert.Equal(t, []ErrorCode{ErrorImageVersion}, rec.codes)

	_, err := l.Constant(0)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_BadLayout(t *testing.T) {
	mem := install(t, sampleImage(t))
	// main method index past the method table
	require.NoError(t, mem.Store(image.OffsetMain, []byte{9, 0}))

	l, rec := newLoader(t, mem)
	assert.ErrorIs(t, l.Init(), ErrBadLayout)
	assert.Equal(t, []ErrorCode{ErrorImageLayout}, rec.codes)
}

func TestInit_SuperclassOutOfRange(t *testing.T) {
	mem := install(t, sampleImage(t))
	// class 2's superclass byte
	require.NoError(t, mem.WriteU8(storage.Addr(image.HeaderSize+2*image.ClassHeaderSize+1), 5))

	l, rec := newLoader(t, mem)
	err := l.Init()
	assert.ErrorIs(t, err, ErrBadLayout)
	assert.Contains(t, err.Error(), "superclass 5")
	assert.Equal(t, []ErrorCode{ErrorImageLayout}, rec.codes)
}

func TestInit_RunsOnce(t *testing.T) {
	l, mem, _ := readyLoader(t)

	require.NoError(t, mem.WriteU8(image.OffsetVersion, 0))
	assert.NoError(t, l.Init(), "a validated image is not re-read")
	assert.Equal(t, 3, l.ConstantCount())
}

func TestNotInitialized(t *testing.T) {
	l, _ := newLoader(t, install(t, sampleImage(t)))

	_, err := l.Header()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = l.MethodHeader(0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = l.FindMethod(0, 7)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = l.ResolveAddress(0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, 0, l.MethodCount())
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "NVMFILE_MAGIC", ErrorImageMagic.String())
	assert.Equal(t, "METHOD_NOT_FOUND", ErrorMethodNotFound.String())
	assert.Equal(t, "UNKNOWN", ErrorCode(0).String())
}
