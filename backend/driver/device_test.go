package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithArchFlagAppendsWhenAbsent(t *testing.T) {
	got := withArchFlag("-O3", 7, 5)
	assert.Equal(t, "-O3 -arch=sm_75", got)
}

func TestWithArchFlagLeavesExplicitArchAlone(t *testing.T) {
	got := withArchFlag("-arch=sm_61 -O3", 7, 5)
	assert.Equal(t, "-arch=sm_61 -O3", got)
}

func TestWithArchFlagOnEmptyFlags(t *testing.T) {
	got := withArchFlag("", 8, 9)
	assert.Equal(t, " -arch=sm_89", got)
}
