package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/nvm/internal/image"
)

func TestMethodHeader(t *testing.T) {
	l, _, _ := readyLoader(t)
	h, err := l.Header()
	require.NoError(t, err)

	addr, err := l.MethodHeaderAddr(2)
	require.NoError(t, err)
	assert.Equal(t, int(h.MethodTable)+2*image.MethodHeaderSize, addr.Offset())

	m, err := l.MethodHeader(1)
	require.NoError(t, err)
	assert.Equal(t, image.NewMethodID(1, 3), m.ID)
	assert.True(t, m.IsClinit())

	_, err = l.MethodHeader(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l.MethodHeaderAddr(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestClassAccessors(t *testing.T) {
	l, _, _ := readyLoader(t)

	for class, want := range []uint8{1, 2, 3} {
		fields, err := l.ClassFields(uint8(class))
		require.NoError(t, err)
		assert.Equal(t, want, fields)
	}

	super, err := l.Superclass(2)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), super)

	_, err = l.ClassFields(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFindMethodInClass(t *testing.T) {
	l, _, _ := readyLoader(t)

	idx, ok, err := l.FindMethodInClass(1, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok, err = l.FindMethodInClass(2, 7)
	require.NoError(t, err)
	assert.False(t, ok, "only an exact class match counts")
}

func TestFindMethod_WalksToRoot(t *testing.T) {
	l, _, rec := readyLoader(t)

	idx, err := l.FindMethod(2, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, idx, "leaf inherits id 7 from root")

	idx, err = l.FindMethod(1, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = l.FindMethod(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, idx, "leaf overrides mid")

	idx, err = l.FindMethod(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	assert.Empty(t, rec.codes)
}

func TestFindMethod_NotFound(t *testing.T) {
	l, _, rec := readyLoader(t)

	_, err := l.FindMethod(2, 99)
	assert.ErrorIs(t, err, ErrMethodNotFound)
	assert.Equal(t, []ErrorCode{ErrorMethodNotFound}, rec.codes)
}

func TestFindMethod_CyclicChainTerminates(t *testing.T) {
	b := image.NewBuilder()
	b.Features |= image.FeatureInheritance
	b.AddClass(0, 0)
	b.AddClass(0, 2)
	b.AddClass(0, 1)
	b.AddMethod(image.MethodHeader{ID: image.NewMethodID(0, 1)}, nil)

	l, rec := newLoader(t, install(t, b))
	require.NoError(t, l.Init())

	_, err := l.FindMethod(1, 1)
	assert.ErrorIs(t, err, ErrMethodNotFound)
	assert.Equal(t, []ErrorCode{ErrorMethodNotFound}, rec.codes)
}

func TestFindMethod_WithoutInheritance(t *testing.T) {
	b := sampleImage(t)
	b.Features = image.Magic
	l, _ := newLoader(t, install(t, b), WithFeatures(image.Feature32Bit))
	require.NoError(t, l.Init())

	idx, err := l.FindMethod(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = l.FindMethod(2, 7)
	assert.ErrorIs(t, err, ErrMethodNotFound, "superclasses are not searched")
}

func TestFindMethod_UndeclaredClass(t *testing.T) {
	l, _, _ := readyLoader(t)

	_, err := l.FindMethod(40, 7)
	assert.ErrorIs(t, err, ErrMethodNotFound)
}
