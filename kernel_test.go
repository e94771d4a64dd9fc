package occa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
)

func TestKernelRunInvokesRegisteredBody(t *testing.T) {
	d := newTestDevice(t)

	var seenArgs int
	RegisterKernel("addVectors", func(args argpack.List) {
		seenArgs = args.Len()
	})

	k, err := d.BuildKernelFromSource("addVectors.c", "addVectors", NewKernelInfo())
	require.NoError(t, err)

	g, err := geometry.New(1, geometry.Dim1(4), geometry.Dim1(1))
	require.NoError(t, err)

	a, err := argpack.Scalar(int32(1))
	require.NoError(t, err)
	b := argpack.Buffer(uintptr(1))

	require.NoError(t, k.Run(g, a, b))
	require.NoError(t, d.Finish())

	assert.Equal(t, 2, seenArgs)
}

func TestKernelRunRejectsOverMaxArgs(t *testing.T) {
	d := newTestDevice(t)
	RegisterKernel("noop", func(args argpack.List) {})
	k, err := d.BuildKernelFromSource("noop.c", "noop", NewKernelInfo())
	require.NoError(t, err)

	g, err := geometry.New(1, geometry.Dim1(1), geometry.Dim1(1))
	require.NoError(t, err)

	args := make([]argpack.Arg, MaxArgs+1)
	for i := range args {
		args[i] = argpack.Buffer(uintptr(i))
	}

	err = k.Run(g, args...)
	assert.Error(t, err)
}

func TestKernelPreferredDimSizeCached(t *testing.T) {
	d := newTestDevice(t)
	RegisterKernel("k", func(args argpack.List) {})
	k, err := d.BuildKernelFromSource("k.c", "k", NewKernelInfo())
	require.NoError(t, err)

	s1, err := k.PreferredDimSize()
	require.NoError(t, err)
	s2, err := k.PreferredDimSize()
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestKernelInfoSaltDiffersOnDefines(t *testing.T) {
	a := NewKernelInfo()
	a.AddDefine("TILE", "16")

	b := NewKernelInfo()
	b.AddDefine("TILE", "32")

	assert.NotEqual(t, a.salt(), b.salt())
}

func TestKernelInfoSaltStableRegardlessOfDefineOrder(t *testing.T) {
	a := NewKernelInfo()
	a.AddDefine("TILE", "16")
	a.AddDefine("ALPHA", "2.0")

	b := NewKernelInfo()
	b.AddDefine("ALPHA", "2.0")
	b.AddDefine("TILE", "16")

	assert.Equal(t, a.salt(), b.salt())
}
