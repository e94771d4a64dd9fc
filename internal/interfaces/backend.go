// Package interfaces defines the backend trait every concrete backend
// (driver-compute GPU, cross-vendor OpenCL-style, host-compiled CPU)
// must implement, plus the small collaborator interfaces (Logger,
// Observer) the runtime accepts from callers. Kept separate from the
// public occa package to avoid a circular import between it and the
// backend/* packages.
package interfaces

import (
	"time"

	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
)

// Device is the polymorphic trait every backend implements for device
// setup, stream/event management, memory allocation, and kernel
// building (spec.md §4.1).
type Device interface {
	// Setup initializes the driver (idempotent, process-wide one-shot),
	// acquires the device, and creates a primary context with an
	// initial current stream.
	Setup(platformID, deviceID int) error

	// SimdWidth returns the hardware SIMD/warp/wavefront width.
	SimdWidth() (int, error)

	// Flush issues a non-blocking flush of the current stream.
	Flush() error
	// Finish blocks until the current stream has completed all work.
	Finish() error

	// GenStream creates a new stream with profiling enabled where
	// supported.
	GenStream() (Stream, error)
	// FreeStream destroys a stream created by GenStream.
	FreeStream(Stream) error
	// CurrentStream returns the stream new work is enqueued onto.
	CurrentStream() Stream
	// SetCurrentStream changes the stream new work is enqueued onto.
	// s must have been returned by GenStream on this Device.
	SetCurrentStream(s Stream) error

	// TagStream records an event on the current stream.
	TagStream() (Event, error)
	// TimeBetween synchronizes on b, reads the elapsed time between a
	// and b with nanosecond precision, and releases both events.
	TimeBetween(a, b Event) (time.Duration, error)

	// Malloc allocates bytes of device-visible storage. If source is
	// non-nil, bytes are synchronously copied from host to device
	// before returning.
	Malloc(bytes uint64, source []byte) (Memory, error)

	// BuildKernelFromSource routes through the cache coordinator:
	// compile (if needed), load, and resolve functionName.
	BuildKernelFromSource(sourcePath, functionName string, info KernelInfo) (Kernel, error)
	// BuildKernelFromBinary loads an already-compiled artifact and
	// resolves functionName directly, skipping the cache coordinator.
	BuildKernelFromBinary(binaryPath, functionName string) (Kernel, error)

	// Teardown releases the context and all owned streams.
	Teardown() error
}

// Stream is an opaque backend queue handle. Operations enqueued on the
// same Stream execute in FIFO order (spec.md §5).
type Stream interface {
	// Native exposes the backend-specific handle for backends that need
	// to pass it to vendor APIs outside this interface (e.g. cuStream,
	// cl_command_queue).
	Native() any
}

// Event is a recorded position in a stream, consumed exactly once by
// Device.TimeBetween.
type Event interface {
	Native() any
}

// Memory is the trait a backend's device-pointer/buffer handle
// implements.
type Memory interface {
	Size() uint64

	CopyFromHost(source []byte, bytes uint64, dstOffset uint64) error
	CopyFromDevice(source Memory, bytes, dstOffset, srcOffset uint64) error
	CopyToHost(dest []byte, bytes uint64, srcOffset uint64) error
	CopyToDevice(dest Memory, bytes, dstOffset, srcOffset uint64) error

	AsyncCopyFromHost(stream Stream, source []byte, bytes uint64, dstOffset uint64) error
	AsyncCopyFromDevice(stream Stream, source Memory, bytes, dstOffset, srcOffset uint64) error
	AsyncCopyToHost(stream Stream, dest []byte, bytes uint64, srcOffset uint64) error
	AsyncCopyToDevice(stream Stream, dest Memory, bytes, dstOffset, srcOffset uint64) error

	Free() error
}

// Kernel is the trait a backend's compiled-entry-point handle
// implements.
type Kernel interface {
	FunctionName() string
	Geometry() geometry.Geometry

	// Run binds args in order and enqueues the launch with the given
	// geometry on stream (spec.md §4.3). The OpenCL and driver-compute
	// backends return once the launch is enqueued; the host backend
	// returns after the kernel has run.
	Run(stream Stream, g geometry.Geometry, args argpack.List) error

	// PreferredDimSize returns the device-reported block-multiple hint,
	// cached after the first query.
	PreferredDimSize() (int, error)

	Free() error
}

// KernelInfo carries the defines and extra compiler flags a build
// should use, plus the macros it expects the translator to inject.
type KernelInfo struct {
	Defines  []Define
	Flags    string
	Keywords map[string]string
	// Prelude is raw text (e.g. a Device's compiler env prelude)
	// injected ahead of the translator's own macro header.
	Prelude string
}

// Define is a single (name, value) compiler define.
type Define struct {
	Name  string
	Value string
}

// Logger is the minimal logging surface the runtime accepts from
// callers; nil means "no logging."
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer receives compile-cache and launch telemetry; implementations
// must be safe to call from any Device's goroutine.
type Observer interface {
	ObserveCacheHit(fingerprint string)
	ObserveCacheMiss(fingerprint string)
	ObserveCompile(functionName string, duration time.Duration, err error)
	ObserveLaunch(functionName string, duration time.Duration, err error)
}
