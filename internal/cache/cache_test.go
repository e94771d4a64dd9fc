package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("DriverCompute", "0", "0", "salt", "", "nvcc", "-O3", "addVectors")
	b := Fingerprint("DriverCompute", "0", "0", "salt", "", "nvcc", "-O3", "addVectors")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintDiffersOnAnyInput(t *testing.T) {
	base := Fingerprint("DriverCompute", "0", "0", "salt", "", "nvcc", "-O3", "addVectors")
	variants := []string{
		Fingerprint("OpenCL", "0", "0", "salt", "", "nvcc", "-O3", "addVectors"),
		Fingerprint("DriverCompute", "1", "0", "salt", "", "nvcc", "-O3", "addVectors"),
		Fingerprint("DriverCompute", "0", "0", "salt2", "", "nvcc", "-O3", "addVectors"),
		Fingerprint("DriverCompute", "0", "0", "salt", "", "nvcc", "-O3", "scale"),
	}
	for _, v := range variants {
		assert.NotEqual(t, base, v)
	}
}

func TestPathIsDeterministic(t *testing.T) {
	p1 := Path("/cache", "/src/kernel.okl", "abc123")
	p2 := Path("/cache", "/src/kernel.okl", "abc123")
	assert.Equal(t, p1, p2)
	assert.Equal(t, filepath.Join("/cache", "abc123", "kernel"), p1)
}

func TestClaimExclusiveAcrossGoroutines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fp", "kernel")

	c1, ok, err := TryClaim(path)
	require.NoError(t, err)
	require.True(t, ok)
	defer c1.Release()

	_, ok2, err := TryClaim(path)
	require.NoError(t, err)
	assert.False(t, ok2, "second claim on same path must fail while first is held")
}

func TestClaimReleaseAllowsReclaim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fp", "kernel")

	c1, ok, err := TryClaim(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c1.Release())

	c2, ok2, err := TryClaim(path)
	require.NoError(t, err)
	require.True(t, ok2)
	defer c2.Release()
}

func TestHaveFileReflectsArtifactPresence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	assert.False(t, HaveFile(path))

	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))
	assert.True(t, HaveFile(path))
}

func TestWaitForFileObservesConcurrentBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte("binary"), 0o644)
	}()

	assert.True(t, WaitForFile(path))
	wg.Wait()
}

func TestWaitForFileGivesUpAfterStealAfter(t *testing.T) {
	old := StealAfter
	StealAfter = 20 * time.Millisecond
	defer func() { StealAfter = old }()

	dir := t.TempDir()
	path := filepath.Join(dir, "never-appears")

	assert.False(t, WaitForFile(path))
}
