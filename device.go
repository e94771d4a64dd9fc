// Package occa provides a portable, just-in-time compute-kernel
// runtime: a single host-side abstraction for allocating device memory,
// compiling kernel source at runtime, launching kernels, and
// coordinating asynchronous streams across backends.
package occa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/occa-go/occa/internal/config"
	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/logging"
)

// BackendFactory constructs the internal/interfaces.Device for a given
// mode tag. Each backend/* package registers its own factory via
// RegisterBackend in an init func.
type BackendFactory func() interfaces.Device

var (
	backendMu       sync.RWMutex
	backendFactories = map[constants.ModeTag]BackendFactory{}
)

// RegisterBackend registers factory under mode, so occa.NewDevice can
// construct that backend without the root package importing backend/*
// directly (each backend/* package calls this from its own init).
func RegisterBackend(mode constants.ModeTag, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[mode] = factory
}

// DeviceID identifies one backend/platform/device triple, the unit
// occa.Devices enumerates.
type DeviceID struct {
	Backend    constants.ModeTag
	PlatformID int
	DeviceID   int
}

// Device is the public facade over an internal/interfaces.Device: a
// backend-agnostic handle for allocating memory, building kernels, and
// managing streams.
type Device struct {
	mu sync.Mutex

	backend  interfaces.Device
	mode     constants.ModeTag
	platform int
	deviceID int

	compiler      string
	compilerFlags string
	envPrelude    string

	bytesAllocated uint64

	simdWidth     int
	simdWidthOnce sync.Once

	metrics  *Metrics
	observer Observer
	logger   interfaces.Logger

	streams map[*Stream]bool
	current *Stream

	closed bool
}

// DeviceOptions customizes NewDevice beyond the mode/platform/device
// triple.
type DeviceOptions struct {
	Logger   interfaces.Logger
	Observer Observer
}

// NewDevice constructs and sets up a Device for the given backend mode,
// platform id, and device id. The backend must have been registered via
// RegisterBackend (each backend/* package's init does this as a side
// effect of being imported).
func NewDevice(mode constants.ModeTag, platformID, deviceID int, opts *DeviceOptions) (*Device, error) {
	backendMu.RLock()
	factory, ok := backendFactories[mode]
	backendMu.RUnlock()
	if !ok {
		return nil, NewBackendError("NewDevice", "", ErrCodeUnsupported, fmt.Sprintf("no backend registered for mode %q", mode))
	}

	if opts == nil {
		opts = &DeviceOptions{}
	}

	backend := factory()
	if err := backend.Setup(platformID, deviceID); err != nil {
		return nil, WrapError("Setup", err)
	}

	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	d := &Device{
		backend:       backend,
		mode:          mode,
		platform:      platformID,
		deviceID:      deviceID,
		compiler:      config.Compiler(mode),
		compilerFlags: config.CompilerFlags(mode),
		metrics:       metrics,
		observer:      observer,
		logger:        logger,
		streams:       make(map[*Stream]bool),
	}

	cur := &Stream{backend: backend.CurrentStream(), device: d}
	d.streams[cur] = true
	d.current = cur

	registerDevice(d)
	logger.Infof("device created: mode=%s platform=%d device=%d", mode, platformID, deviceID)
	return d, nil
}

// Logger returns the logger this Device writes diagnostics through.
func (d *Device) Logger() interfaces.Logger {
	return d.logger
}

// Devices enumerates every DeviceID visible across the given backend
// modes (every registered mode when none are given), one errgroup
// goroutine per mode. Each registered mode reports the single pair
// platform 0 / device 0; no driver is queried.
func Devices(modes ...constants.ModeTag) ([]DeviceID, error) {
	if len(modes) == 0 {
		backendMu.RLock()
		for m := range backendFactories {
			modes = append(modes, m)
		}
		backendMu.RUnlock()
	}

	results := make([][]DeviceID, len(modes))
	g, _ := errgroup.WithContext(context.Background())
	for i, mode := range modes {
		i, mode := i, mode
		g.Go(func() error {
			ids, err := enumerateMode(mode)
			if err != nil {
				return err
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []DeviceID
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// enumerateMode reports the single platform/device pair every backend
// in this runtime exposes (platform 0, device 0), without querying the
// backend's driver.
func enumerateMode(mode constants.ModeTag) ([]DeviceID, error) {
	backendMu.RLock()
	_, ok := backendFactories[mode]
	backendMu.RUnlock()
	if !ok {
		return nil, nil
	}
	return []DeviceID{{Backend: mode, PlatformID: 0, DeviceID: 0}}, nil
}

// SetCompiler records compiler on this Device. BuildKernelFromSource
// does not pass it to the backend, which builds with the compiler it
// resolved from the environment at Setup, so it does not change which
// compiler builds kernels.
func (d *Device) SetCompiler(compiler string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.compiler = compiler
}

// SetCompilerFlags records flags on this Device. BuildKernelFromSource
// does not pass them to the backend, which builds with the flags it
// resolved from the environment at Setup plus KernelInfo.Flags; use
// KernelInfo.Flags to add flags to one build.
func (d *Device) SetCompilerFlags(flags string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.compilerFlags = flags
}

// SetCompilerEnvPrelude sets a macro/define preamble injected ahead of
// the translator's own header for kernels built after this call.
func (d *Device) SetCompilerEnvPrelude(prelude string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.envPrelude = prelude
}

// Mode returns the backend mode tag this Device was created with.
func (d *Device) Mode() constants.ModeTag {
	return d.mode
}

// SimdWidth returns the backend's SIMD/warp/wavefront width, queried
// once and cached thereafter.
func (d *Device) SimdWidth() (int, error) {
	var err error
	d.simdWidthOnce.Do(func() {
		d.simdWidth, err = d.backend.SimdWidth()
	})
	if err != nil {
		return 0, WrapError("SimdWidth", err)
	}
	return d.simdWidth, nil
}

// Flush issues a non-blocking flush of the current stream.
func (d *Device) Flush() error {
	if err := d.backend.Flush(); err != nil {
		return WrapError("Flush", err)
	}
	return nil
}

// Finish blocks until the current stream has completed all enqueued
// work.
func (d *Device) Finish() error {
	if err := d.backend.Finish(); err != nil {
		return WrapError("Finish", err)
	}
	return nil
}

// GenStream creates a new Stream owned by this Device.
func (d *Device) GenStream() (*Stream, error) {
	bs, err := d.backend.GenStream()
	if err != nil {
		return nil, WrapError("GenStream", err)
	}
	s := &Stream{backend: bs, device: d}
	d.mu.Lock()
	d.streams[s] = true
	d.mu.Unlock()
	return s, nil
}

// FreeStream releases a Stream created by GenStream on this Device.
func (d *Device) FreeStream(s *Stream) error {
	d.mu.Lock()
	if !d.streams[s] {
		d.mu.Unlock()
		return NewError("FreeStream", ErrCodeUnsupported, "stream not owned by this device")
	}
	delete(d.streams, s)
	if d.current == s {
		d.current = nil
	}
	d.mu.Unlock()

	if err := d.backend.FreeStream(s.backend); err != nil {
		return WrapError("FreeStream", err)
	}
	return nil
}

// CurrentStream returns the Stream new work is enqueued onto.
func (d *Device) CurrentStream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetCurrentStream changes the Stream new work is enqueued onto. s must
// have been returned by GenStream on this Device.
func (d *Device) SetCurrentStream(s *Stream) error {
	d.mu.Lock()
	owned := d.streams[s]
	d.mu.Unlock()
	if !owned {
		return NewError("SetCurrentStream", ErrCodeUnsupported, "stream not owned by this device")
	}
	if err := d.backend.SetCurrentStream(s.backend); err != nil {
		return WrapError("SetCurrentStream", err)
	}
	d.mu.Lock()
	d.current = s
	d.mu.Unlock()
	return nil
}

// TagStream records an Event on the current stream.
func (d *Device) TagStream() (*Event, error) {
	e, err := d.backend.TagStream()
	if err != nil {
		return nil, WrapError("TagStream", err)
	}
	return &Event{backend: e}, nil
}

// TimeBetween returns the elapsed time between two previously recorded
// events, synchronizing on the later one.
func (d *Device) TimeBetween(a, b *Event) (time.Duration, error) {
	dur, err := d.backend.TimeBetween(a.backend, b.backend)
	if err != nil {
		return 0, WrapError("TimeBetween", err)
	}
	return dur, nil
}

// Malloc allocates bytes of device-visible storage. If source is
// non-nil its contents are copied in synchronously before returning.
func (d *Device) Malloc(bytes uint64, source []byte) (*Memory, error) {
	m, err := d.backend.Malloc(bytes, source)
	if err != nil {
		return nil, WrapError("Malloc", err)
	}
	d.mu.Lock()
	d.bytesAllocated += bytes
	d.mu.Unlock()
	return &Memory{backend: m, size: bytes, device: d}, nil
}

// BytesAllocated returns the bytes currently allocated on this Device:
// each Malloc adds its size and the first Memory.Free of a buffer
// subtracts it.
func (d *Device) BytesAllocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytesAllocated
}

// BuildKernelFromSource compiles (if the compile cache misses) and
// loads functionName from sourcePath.
func (d *Device) BuildKernelFromSource(sourcePath, functionName string, info KernelInfo) (*Kernel, error) {
	d.mu.Lock()
	envPrelude := d.envPrelude
	d.mu.Unlock()

	start := time.Now()
	k, err := d.backend.BuildKernelFromSource(sourcePath, functionName, info.toInternal(envPrelude))
	d.observer.ObserveCompile(functionName, time.Since(start), err)
	if err != nil {
		return nil, WrapError("BuildKernelFromSource", err)
	}
	return &Kernel{backend: k, device: d, info: info}, nil
}

// BuildKernelFromBinary loads functionName from an already-compiled
// binaryPath, skipping the cache coordinator entirely.
func (d *Device) BuildKernelFromBinary(binaryPath, functionName string) (*Kernel, error) {
	k, err := d.backend.BuildKernelFromBinary(binaryPath, functionName)
	if err != nil {
		return nil, WrapError("BuildKernelFromBinary", err)
	}
	return &Kernel{backend: k, device: d}, nil
}

// Metrics returns this Device's build and launch metrics. The Device
// records builds and launches only; no build path records cache hits
// or misses, so those counters stay zero.
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// Teardown releases the backend context and all owned streams. Safe to
// call once; further use of the Device after Teardown is undefined.
func (d *Device) Teardown() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.metrics.Stop()
	d.mu.Unlock()

	unregisterDevice(d)
	d.logger.Infof("device teardown: mode=%s platform=%d device=%d", d.mode, d.platform, d.deviceID)
	if err := d.backend.Teardown(); err != nil {
		return WrapError("Teardown", err)
	}
	return nil
}
