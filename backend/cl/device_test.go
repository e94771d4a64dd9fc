package cl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/occa-go/occa/internal/constants"
)

func TestInferSimdWidth(t *testing.T) {
	cases := []struct {
		vendor string
		want   int
	}{
		{"NVIDIA Corporation", 32},
		{"Advanced Micro Devices, Inc.", 64},
		{"ATI Technologies Inc.", 64},
		{"nvidia", 32},
		{"Intel(R) Corporation", constants.DefaultSimdWidth},
		{"", constants.DefaultSimdWidth},
	}
	for _, c := range cases {
		t.Run(c.vendor, func(t *testing.T) {
			assert.Equal(t, c.want, inferSimdWidth(c.vendor))
		})
	}
}
