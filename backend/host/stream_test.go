package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamNativeIsOrdinal(t *testing.T) {
	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	s, err := d.GenStream()
	require.NoError(t, err)
	hs := s.(*Stream)
	assert.Equal(t, hs.id, hs.Native())
}

func TestEventRecordedAtIsMonotonic(t *testing.T) {
	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	a, err := d.TagStream()
	require.NoError(t, err)
	b, err := d.TagStream()
	require.NoError(t, err)

	ae := a.(*Event)
	be := b.(*Event)
	assert.False(t, be.recordedAt().Before(ae.recordedAt()))
}
