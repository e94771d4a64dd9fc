package occa

import (
	"sync"
	"time"

	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// MockDevice is an in-process fake of interfaces.Device for exercising
// the Device/Kernel/Memory facade without a real compiler or driver
// library. It runs every kernel launch on a single host goroutine via
// internal/stream.Sequencer and tracks call counts for test assertions.
type MockDevice struct {
	mu sync.RWMutex

	setupCalls    int
	flushCalls    int
	finishCalls   int
	mallocCalls   int
	buildCalls    int
	teardownCalls int

	torndown bool

	streams     map[*MockStream]bool
	current     *MockStream
	nextStream  int
	simdWidth   int
}

// NewMockDevice creates a mock device with one current stream already
// open, mirroring a real backend's Setup postcondition.
func NewMockDevice() *MockDevice {
	d := &MockDevice{
		streams:   make(map[*MockStream]bool),
		simdWidth: DefaultSimdWidth,
	}
	s := d.newStream()
	d.current = s
	return d
}

func (d *MockDevice) newStream() *MockStream {
	d.nextStream++
	s := &MockStream{id: d.nextStream, seq: stream.NewSequencer()}
	d.streams[s] = true
	return s
}

// Setup implements interfaces.Device.
func (d *MockDevice) Setup(platformID, deviceID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setupCalls++
	return nil
}

// SimdWidth implements interfaces.Device.
func (d *MockDevice) SimdWidth() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.simdWidth, nil
}

// Flush implements interfaces.Device.
func (d *MockDevice) Flush() error {
	d.mu.Lock()
	d.flushCalls++
	d.mu.Unlock()
	return nil
}

// Finish implements interfaces.Device.
func (d *MockDevice) Finish() error {
	d.mu.Lock()
	d.finishCalls++
	cur := d.current
	d.mu.Unlock()
	cur.seq.Finish()
	return nil
}

// GenStream implements interfaces.Device.
func (d *MockDevice) GenStream() (interfaces.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newStream(), nil
}

// FreeStream implements interfaces.Device.
func (d *MockDevice) FreeStream(s interfaces.Stream) error {
	ms, ok := s.(*MockStream)
	if !ok {
		return NewError("FreeStream", ErrCodeUnsupported, "not a MockStream")
	}
	d.mu.Lock()
	delete(d.streams, ms)
	d.mu.Unlock()
	ms.seq.Close()
	return nil
}

// CurrentStream implements interfaces.Device.
func (d *MockDevice) CurrentStream() interfaces.Stream {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// SetCurrentStream implements interfaces.Device.
func (d *MockDevice) SetCurrentStream(s interfaces.Stream) error {
	ms, ok := s.(*MockStream)
	if !ok {
		return NewError("SetCurrentStream", ErrCodeUnsupported, "not a MockStream")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streams[ms] {
		return NewError("SetCurrentStream", ErrCodeUnsupported, "stream not owned by this device")
	}
	d.current = ms
	return nil
}

// TagStream implements interfaces.Device.
func (d *MockDevice) TagStream() (interfaces.Event, error) {
	d.mu.RLock()
	cur := d.current
	d.mu.RUnlock()

	e := &MockEvent{}
	e.tag = cur.seq.Enqueue(func() {
		now := time.Now()
		e.at = &now
	})
	return e, nil
}

// TimeBetween implements interfaces.Device.
func (d *MockDevice) TimeBetween(a, b interfaces.Event) (time.Duration, error) {
	bEvt, ok := b.(*MockEvent)
	if !ok {
		return 0, NewError("TimeBetween", ErrCodeUnsupported, "not a MockEvent")
	}
	stream.WaitFor(bEvt.tag)
	aEvt, ok := a.(*MockEvent)
	if !ok {
		return 0, NewError("TimeBetween", ErrCodeUnsupported, "not a MockEvent")
	}
	return bEvt.recordedAt().Sub(aEvt.recordedAt()), nil
}

// Malloc implements interfaces.Device.
func (d *MockDevice) Malloc(bytes uint64, source []byte) (interfaces.Memory, error) {
	d.mu.Lock()
	d.mallocCalls++
	d.mu.Unlock()

	buf := make([]byte, bytes)
	if source != nil {
		copy(buf, source)
	}
	return &MockMemory{buf: buf}, nil
}

// BuildKernelFromSource implements interfaces.Device. The mock ignores
// sourcePath and instead looks up a launch function pre-registered via
// RegisterKernel, so tests can exercise Run without a real compiler.
func (d *MockDevice) BuildKernelFromSource(sourcePath, functionName string, info interfaces.KernelInfo) (interfaces.Kernel, error) {
	d.mu.Lock()
	d.buildCalls++
	d.mu.Unlock()

	fn, ok := registeredKernels[functionName]
	if !ok {
		fn = func(args argpack.List) {}
	}
	return &MockKernel{name: functionName, fn: fn}, nil
}

// BuildKernelFromBinary implements interfaces.Device.
func (d *MockDevice) BuildKernelFromBinary(binaryPath, functionName string) (interfaces.Kernel, error) {
	return d.BuildKernelFromSource(binaryPath, functionName, interfaces.KernelInfo{})
}

// Teardown implements interfaces.Device.
func (d *MockDevice) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownCalls++
	d.torndown = true
	for s := range d.streams {
		s.seq.Close()
	}
	d.streams = nil
	return nil
}

// CallCounts returns how many times each Device method was invoked,
// for test assertions.
func (d *MockDevice) CallCounts() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]int{
		"setup":    d.setupCalls,
		"flush":    d.flushCalls,
		"finish":   d.finishCalls,
		"malloc":   d.mallocCalls,
		"build":    d.buildCalls,
		"teardown": d.teardownCalls,
	}
}

// IsTornDown reports whether Teardown has been called.
func (d *MockDevice) IsTornDown() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.torndown
}

var _ interfaces.Device = (*MockDevice)(nil)

// MockStream is a Sequencer-backed fake of interfaces.Stream.
type MockStream struct {
	id  int
	seq *stream.Sequencer
}

// Native implements interfaces.Stream.
func (s *MockStream) Native() any { return s.id }

var _ interfaces.Stream = (*MockStream)(nil)

// MockEvent wraps a stream.Tag as a fake of interfaces.Event.
type MockEvent struct {
	tag stream.Tag
	at  *time.Time
}

// Native implements interfaces.Event.
func (e *MockEvent) Native() any { return e.tag }

// recordedAt returns the time the tag's marker ran on its stream,
// waiting for the marker first.
func (e *MockEvent) recordedAt() time.Time {
	stream.WaitFor(e.tag)
	return *e.at
}

var _ interfaces.Event = (*MockEvent)(nil)

// MockMemory is a plain-slice fake of interfaces.Memory.
type MockMemory struct {
	mu   sync.Mutex
	buf  []byte
	free bool
}

// Size implements interfaces.Memory.
func (m *MockMemory) Size() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.buf))
}

func (m *MockMemory) bounds(bytes, offset uint64) error {
	if offset+bytes > uint64(len(m.buf)) {
		return NewError("CopyTo", ErrCodeBoundsCheck, "offset+bytes exceeds buffer size")
	}
	return nil
}

// CopyFromHost implements interfaces.Memory.
func (m *MockMemory) CopyFromHost(source []byte, bytes uint64, dstOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	copy(m.buf[dstOffset:dstOffset+bytes], source[:bytes])
	return nil
}

// CopyFromDevice implements interfaces.Memory.
func (m *MockMemory) CopyFromDevice(source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	src, ok := source.(*MockMemory)
	if !ok {
		return NewError("CopyFromDevice", ErrCodeUnsupported, "not a MockMemory")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := src.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	copy(m.buf[dstOffset:dstOffset+bytes], src.buf[srcOffset:srcOffset+bytes])
	return nil
}

// CopyToHost implements interfaces.Memory.
func (m *MockMemory) CopyToHost(dest []byte, bytes uint64, srcOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	copy(dest[:bytes], m.buf[srcOffset:srcOffset+bytes])
	return nil
}

// CopyToDevice implements interfaces.Memory.
func (m *MockMemory) CopyToDevice(dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*MockMemory)
	if !ok {
		return NewError("CopyToDevice", ErrCodeUnsupported, "not a MockMemory")
	}
	return d.CopyFromDevice(m, bytes, dstOffset, srcOffset)
}

// AsyncCopyFromHost implements interfaces.Memory; the mock has no real
// asynchrony so it just runs synchronously on stream's sequencer.
func (m *MockMemory) AsyncCopyFromHost(s interfaces.Stream, source []byte, bytes uint64, dstOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyFromHost(source, bytes, dstOffset) })
}

// AsyncCopyFromDevice implements interfaces.Memory.
func (m *MockMemory) AsyncCopyFromDevice(s interfaces.Stream, source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyFromDevice(source, bytes, dstOffset, srcOffset) })
}

// AsyncCopyToHost implements interfaces.Memory.
func (m *MockMemory) AsyncCopyToHost(s interfaces.Stream, dest []byte, bytes uint64, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyToHost(dest, bytes, srcOffset) })
}

// AsyncCopyToDevice implements interfaces.Memory.
func (m *MockMemory) AsyncCopyToDevice(s interfaces.Stream, dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyToDevice(dest, bytes, dstOffset, srcOffset) })
}

func (m *MockMemory) runOn(s interfaces.Stream, fn func() error) error {
	ms, ok := s.(*MockStream)
	if !ok {
		return NewError("AsyncCopy", ErrCodeUnsupported, "not a MockStream")
	}
	var err error
	tag := ms.seq.Enqueue(func() { err = fn() })
	stream.WaitFor(tag)
	return err
}

// Free implements interfaces.Memory.
func (m *MockMemory) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free = true
	m.buf = nil
	return nil
}

var _ interfaces.Memory = (*MockMemory)(nil)

// registeredKernels lets tests register a Go closure standing in for a
// compiled kernel body, keyed by function name.
var registeredKernels = map[string]func(argpack.List){}

// RegisterKernel registers fn as the simulated body for functionName,
// so a subsequent MockDevice.BuildKernelFromSource call for that name
// runs fn when the resulting Kernel's Run is called.
func RegisterKernel(functionName string, fn func(args argpack.List)) {
	registeredKernels[functionName] = fn
}

// MockKernel is a closure-backed fake of interfaces.Kernel.
type MockKernel struct {
	mu   sync.Mutex
	name string
	geom geometry.Geometry
	fn   func(args argpack.List)
	free bool
	runs int
}

// FunctionName implements interfaces.Kernel.
func (k *MockKernel) FunctionName() string { return k.name }

// Geometry implements interfaces.Kernel.
func (k *MockKernel) Geometry() geometry.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.geom
}

// Run implements interfaces.Kernel.
func (k *MockKernel) Run(s interfaces.Stream, g geometry.Geometry, args argpack.List) error {
	ms, ok := s.(*MockStream)
	if !ok {
		return NewError("Run", ErrCodeUnsupported, "not a MockStream")
	}
	k.mu.Lock()
	k.geom = g
	k.runs++
	fn := k.fn
	k.mu.Unlock()

	ms.seq.Enqueue(func() { fn(args) })
	return nil
}

// PreferredDimSize implements interfaces.Kernel.
func (k *MockKernel) PreferredDimSize() (int, error) {
	return DriverPreferredDimSize, nil
}

// Free implements interfaces.Kernel.
func (k *MockKernel) Free() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.free = true
	return nil
}

// RunCount returns how many times Run has been called, for test
// assertions.
func (k *MockKernel) RunCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.runs
}

var _ interfaces.Kernel = (*MockKernel)(nil)
