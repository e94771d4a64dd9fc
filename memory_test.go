package occa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCopyFromAndCopyToRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	mem, err := d.Malloc(8, nil)
	require.NoError(t, err)

	require.NoError(t, mem.CopyFrom([]byte("abcdefgh"), 0, 0))

	out := make([]byte, 8)
	require.NoError(t, mem.CopyTo(out, 0, 0))
	assert.Equal(t, []byte("abcdefgh"), out)
}

func TestMemoryCopyFromRejectsOutOfRange(t *testing.T) {
	d := newTestDevice(t)
	mem, err := d.Malloc(4, nil)
	require.NoError(t, err)

	err = mem.CopyFrom([]byte("toolong!!"), 9, 0)
	assert.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeBoundsCheck))
}

func TestMemoryCopyFromDeviceOrderIsDestThenSrc(t *testing.T) {
	d := newTestDevice(t)
	src, err := d.Malloc(4, []byte("wxyz"))
	require.NoError(t, err)
	dst, err := d.Malloc(4, nil)
	require.NoError(t, err)

	require.NoError(t, dst.CopyFromDevice(src, 0, 0, 0))

	out := make([]byte, 4)
	require.NoError(t, dst.CopyTo(out, 0, 0))
	assert.Equal(t, []byte("wxyz"), out)
}

func TestMemoryCopyToDeviceDelegatesToCopyFromDevice(t *testing.T) {
	d := newTestDevice(t)
	src, err := d.Malloc(4, []byte("ijkl"))
	require.NoError(t, err)
	dst, err := d.Malloc(4, nil)
	require.NoError(t, err)

	require.NoError(t, src.CopyToDevice(dst, 0, 0, 0))

	out := make([]byte, 4)
	require.NoError(t, dst.CopyTo(out, 0, 0))
	assert.Equal(t, []byte("ijkl"), out)
}

func TestMemoryAsyncCopyRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	mem, err := d.Malloc(5, nil)
	require.NoError(t, err)

	s := d.CurrentStream()
	require.NoError(t, mem.AsyncCopyFrom(s, []byte("hello"), 0, 0))

	out := make([]byte, 5)
	require.NoError(t, mem.AsyncCopyTo(s, out, 0, 0))
	assert.Equal(t, []byte("hello"), out)
}

func TestMemoryFreeIsIdempotent(t *testing.T) {
	d := newTestDevice(t)
	mem, err := d.Malloc(4, nil)
	require.NoError(t, err)

	require.NoError(t, mem.Free())
	require.NoError(t, mem.Free())
}

func TestMemoryNativeExposesBackendHandle(t *testing.T) {
	d := newTestDevice(t)
	mem, err := d.Malloc(4, nil)
	require.NoError(t, err)

	assert.NotNil(t, mem.Native())
}
