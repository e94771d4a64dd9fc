package occa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamNativeExposesBackendHandle(t *testing.T) {
	d := newTestDevice(t)
	s, err := d.GenStream()
	require.NoError(t, err)
	assert.NotNil(t, s.Native())
}

func TestStreamDeviceReturnsOwningDevice(t *testing.T) {
	d := newTestDevice(t)
	s, err := d.GenStream()
	require.NoError(t, err)
	assert.Same(t, d, s.Device())
}

func TestEventNativeExposesBackendHandle(t *testing.T) {
	d := newTestDevice(t)
	e, err := d.TagStream()
	require.NoError(t, err)
	assert.NotNil(t, e.Native())
}

func TestTeardownAllTearsDownEveryLiveDevice(t *testing.T) {
	d1 := newTestDevice(t)
	d2 := newTestDevice(t)

	before := len(LiveDevices())
	require.NoError(t, TeardownAll())
	assert.Len(t, LiveDevices(), 0)
	assert.GreaterOrEqual(t, before, 2)

	// Teardown is idempotent, so the deferred newTestDevice cleanups
	// tearing these down again is harmless.
	_ = d1
	_ = d2
}
