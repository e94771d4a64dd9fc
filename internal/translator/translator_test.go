package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/interfaces"
)

func TestCreateIntermediateSourcePrependsFeatureMacros(t *testing.T) {
	out := Default{}.CreateIntermediateSource(
		"__kernel void addVectors() {}",
		constants.OpenCL,
		interfaces.KernelInfo{},
	)

	assert.Contains(t, out, "#define OCCA_USING_GPU 1\n")
	assert.Contains(t, out, "#define OCCA_USING_OPENCL 1\n")
	assert.True(t, strings.HasSuffix(out, "__kernel void addVectors() {}"))
}

func TestCreateIntermediateSourceInjectsDefinesSorted(t *testing.T) {
	info := interfaces.KernelInfo{
		Defines: []interfaces.Define{
			{Name: "TILE", Value: "16"},
			{Name: "ALPHA", Value: "2.0f"},
		},
	}
	out := Default{}.CreateIntermediateSource("kernel source", constants.DriverCompute, info)

	alphaIdx := strings.Index(out, "#define ALPHA")
	tileIdx := strings.Index(out, "#define TILE")
	require := alphaIdx >= 0 && tileIdx >= 0
	assert.True(t, require)
	assert.Less(t, alphaIdx, tileIdx)
}

func TestCreateIntermediateSourceInjectsKeywords(t *testing.T) {
	info := interfaces.KernelInfo{Keywords: map[string]string{"OCCA_RESTRICT": "__restrict__"}}
	out := Default{}.CreateIntermediateSource("src", constants.DriverCompute, info)
	assert.Contains(t, out, "#define OCCA_RESTRICT __restrict__")
}
