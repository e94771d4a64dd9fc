// Package constants holds the static limits and defaults shared across
// the runtime and its backends.
package constants

import "time"

// MaxArgs is the maximum number of arguments a single kernel launch may
// bind, matching spec.md's fixed-arity dispatch ceiling.
const MaxArgs = 50

// DefaultSimdWidth is used by backends that have no native way to query
// their SIMD/warp/wavefront width (the CPU backend, and as the fallback
// default on OpenCL-style backends per spec.md §4.1).
const DefaultSimdWidth = 8

// DriverPreferredDimSize is the constant block-multiple hint reported
// by driver-compute GPU backends (no device query is needed there).
const DriverPreferredDimSize = 32

// Default compiler names and flags, consumed when the matching
// environment variable is unset (spec.md §6).
const (
	DriverCompilerDefault      = "nvcc"
	DriverCompilerFlagsDebug   = "-g"
	DriverCompilerFlagsRelease = "--compiler-options -O3 --use_fast_math"

	OpenCLCompilerFlagsDefault = "-cl-fast-relaxed-math"

	HostCompilerDefault      = "cc"
	HostCompilerFlagsDebug   = "-g -O0"
	HostCompilerFlagsRelease = "-O3"
)

// Environment variables consulted when a Device is constructed.
const (
	EnvDriverCompiler      = "OCCA_DRIVER_COMPILER"
	EnvDriverCompilerFlags = "OCCA_DRIVER_COMPILER_FLAGS"
	EnvOpenCLCompilerFlags = "OCCA_OPENCL_COMPILER_FLAGS"
	EnvHostCompiler        = "OCCA_HOST_COMPILER"
	EnvHostCompilerFlags   = "OCCA_HOST_COMPILER_FLAGS"
	EnvCacheDir            = "OCCA_CACHE_DIR"
	EnvDebugBuild          = "OCCA_DEBUG_ENABLED"
)

// Cache-coordinator polling. CachePollInterval mirrors the teacher's
// character-device wait-loop cadence; CacheWaitForever is the sentinel
// meaning "no wait timeout" (spec.md's default).
const (
	CachePollInterval = 10 * time.Millisecond
	CacheWaitForever  = time.Duration(0)
)

// BackendTag identifies which concrete backend a Device is bound to.
type BackendTag string

const (
	CPU     BackendTag = "CPU"
	GPU     BackendTag = "GPU"
	FPGA    BackendTag = "FPGA"
	XeonPhi BackendTag = "XeonPhi"
)

// VendorTag identifies the hardware vendor behind a backend, used for
// SIMD-width inference and diagnostics.
type VendorTag string

const (
	AMD    VendorTag = "AMD"
	Intel  VendorTag = "Intel"
	Altera VendorTag = "Altera"
	NVIDIA VendorTag = "NVIDIA"
)

// ModeTag identifies the execution mode (library/API family) a backend
// implements.
type ModeTag string

const (
	OpenCL        ModeTag = "OpenCL"
	DriverCompute ModeTag = "DriverCompute"
	HostShared    ModeTag = "HostShared"
)
