package occa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/interfaces"
)

const testMode constants.ModeTag = "Mock"

func init() {
	RegisterBackend(testMode, func() interfaces.Device {
		return NewMockDevice()
	})
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice(testMode, 0, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Teardown() })
	return d
}

func TestNewDeviceSetsUpBackend(t *testing.T) {
	d := newTestDevice(t)
	assert.Equal(t, testMode, d.Mode())
}

func TestNewDeviceUnknownModeErrors(t *testing.T) {
	_, err := NewDevice("NoSuchMode", 0, 0, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnsupported))
}

func TestDeviceSimdWidthCachedAfterFirstQuery(t *testing.T) {
	d := newTestDevice(t)
	w1, err := d.SimdWidth()
	require.NoError(t, err)
	w2, err := d.SimdWidth()
	require.NoError(t, err)
	assert.Equal(t, w1, w2)
}

func TestDeviceMallocTracksBytesAllocated(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.Malloc(1024, nil)
	require.NoError(t, err)
	_, err = d.Malloc(2048, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3072), d.BytesAllocated())
}

func TestDeviceMallocCopiesSourceSynchronously(t *testing.T) {
	d := newTestDevice(t)
	src := []byte("hello world")
	mem, err := d.Malloc(uint64(len(src)), src)
	require.NoError(t, err)

	out := make([]byte, len(src))
	require.NoError(t, mem.CopyTo(out, 0, 0))
	assert.Equal(t, src, out)
}

func TestDeviceGenStreamAndSetCurrentStream(t *testing.T) {
	d := newTestDevice(t)
	s, err := d.GenStream()
	require.NoError(t, err)

	require.NoError(t, d.SetCurrentStream(s))
	assert.Same(t, s, d.CurrentStream())

	require.NoError(t, d.FreeStream(s))
}

func TestDeviceSetCurrentStreamRejectsForeignStream(t *testing.T) {
	d1 := newTestDevice(t)
	d2 := newTestDevice(t)

	s2, err := d2.GenStream()
	require.NoError(t, err)

	err = d1.SetCurrentStream(s2)
	assert.Error(t, err)
}

func TestDeviceTimeBetweenEventsOnSameTagIsZero(t *testing.T) {
	d := newTestDevice(t)
	tag, err := d.TagStream()
	require.NoError(t, err)

	dur, err := d.TimeBetween(tag, tag)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), dur)
}

func TestDeviceTeardownIsIdempotent(t *testing.T) {
	d, err := NewDevice(testMode, 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, d.Teardown())
	require.NoError(t, d.Teardown())
}

func TestDevicesEnumeratesRegisteredModes(t *testing.T) {
	ids, err := Devices(testMode)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, testMode, ids[0].Backend)
}

func TestRegistryTracksLiveDevices(t *testing.T) {
	before := len(LiveDevices())
	d, err := NewDevice(testMode, 0, 0, nil)
	require.NoError(t, err)
	assert.Len(t, LiveDevices(), before+1)

	require.NoError(t, d.Teardown())
	assert.Len(t, LiveDevices(), before)
}
