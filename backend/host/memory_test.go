package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, size uint64) *Memory {
	t.Helper()
	d := New()
	require.NoError(t, d.Setup(0, 0))
	t.Cleanup(func() { _ = d.Teardown() })

	raw, err := d.Malloc(size, nil)
	require.NoError(t, err)
	m := raw.(*Memory)
	t.Cleanup(func() { _ = m.Free() })
	return m
}

func TestMemorySizeAndHandle(t *testing.T) {
	m := newTestMemory(t, 64)
	assert.Equal(t, uint64(64), m.Size())
	assert.NotNil(t, m.Handle())
}

func TestMemoryCopyRoundTrip(t *testing.T) {
	m := newTestMemory(t, 16)

	in := []byte("0123456789abcdef")
	require.NoError(t, m.CopyFromHost(in, uint64(len(in)), 0))

	out := make([]byte, len(in))
	require.NoError(t, m.CopyToHost(out, uint64(len(out)), 0))
	assert.Equal(t, in, out)
}

func TestMemoryCopyAtOffset(t *testing.T) {
	m := newTestMemory(t, 16)

	require.NoError(t, m.CopyFromHost([]byte("AAAA"), 4, 0))
	require.NoError(t, m.CopyFromHost([]byte("BBBB"), 4, 4))

	out := make([]byte, 8)
	require.NoError(t, m.CopyToHost(out, 8, 0))
	assert.Equal(t, "AAAABBBB", string(out))
}

func TestMemoryCopyOutOfBounds(t *testing.T) {
	m := newTestMemory(t, 8)

	err := m.CopyFromHost([]byte("toolong!"), 8, 4)
	assert.Error(t, err)

	out := make([]byte, 8)
	err = m.CopyToHost(out, 8, 4)
	assert.Error(t, err)
}

func TestMemoryCopyFromDevice(t *testing.T) {
	src := newTestMemory(t, 8)
	dst := newTestMemory(t, 8)

	require.NoError(t, src.CopyFromHost([]byte("deviceX!"), 8, 0))
	require.NoError(t, dst.CopyFromDevice(src, 8, 0, 0))

	out := make([]byte, 8)
	require.NoError(t, dst.CopyToHost(out, 8, 0))
	assert.Equal(t, "deviceX!", string(out))
}

func TestMemoryAsyncCopyRoundTrip(t *testing.T) {
	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	raw, err := d.Malloc(8, nil)
	require.NoError(t, err)
	m := raw.(*Memory)
	defer m.Free()

	s := d.CurrentStream()
	in := []byte("asyncbuf")
	require.NoError(t, m.AsyncCopyFromHost(s, in, 8, 0))

	out := make([]byte, 8)
	require.NoError(t, m.AsyncCopyToHost(s, out, 8, 0))
	assert.Equal(t, in, out)
}

func TestMemoryFreeIsIdempotent(t *testing.T) {
	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	raw, err := d.Malloc(8, nil)
	require.NoError(t, err)
	m := raw.(*Memory)

	assert.NoError(t, m.Free())
	assert.NoError(t, m.Free())
}

func TestMallocWithSourceCopiesImmediately(t *testing.T) {
	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	source := []byte("seeded!!")
	raw, err := d.Malloc(uint64(len(source)), source)
	require.NoError(t, err)
	m := raw.(*Memory)
	defer m.Free()

	out := make([]byte, len(source))
	require.NoError(t, m.CopyToHost(out, uint64(len(out)), 0))
	assert.Equal(t, source, out)
}
