// Package cl implements the cross-vendor OpenCL-style backend: one
// cl_context/cl_command_queue per Device, cl_mem buffers, and
// cl_program/cl_kernel objects built from translated source (spec.md
// §4.1's "cross-vendor OpenCL-style" backend family). Bindings follow
// the uintptr-handle, StatusError-wrapped cgo idiom used throughout this
// module's OpenCL-adjacent reference material.
package cl

// #cgo LDFLAGS: -lOpenCL
// #include <CL/cl.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/cache"
	"github.com/occa-go/occa/internal/config"
	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
	"github.com/occa-go/occa/internal/translator"
)

func init() {
	occa.RegisterBackend(constants.OpenCL, func() interfaces.Device {
		return New()
	})
}

// statusError wraps a non-CL_SUCCESS cl_int return into the runtime's
// error taxonomy.
func statusError(op string, status C.cl_int) error {
	if status == C.CL_SUCCESS {
		return nil
	}
	return occa.NewBackendError(op, constants.GPU, occa.ErrCodeLaunchError, fmt.Sprintf("opencl status %d", int(status)))
}

// Device is the OpenCL backend: a single cl_context/cl_command_queue
// pair bound to one platform/device id pair.
type Device struct {
	mu sync.Mutex

	platformID C.cl_platform_id
	deviceID   C.cl_device_id
	context    C.cl_context

	compiler      string
	compilerFlags string

	streams    map[*Stream]bool
	current    *Stream
	nextStream int

	simdWidth     int
	simdWidthOnce sync.Once
}

// New constructs an un-setup OpenCL Device.
func New() *Device {
	return &Device{streams: make(map[*Stream]bool)}
}

// Setup implements interfaces.Device: enumerate platforms/devices,
// select the requested pair, and create the context and an initial
// in-order command queue with profiling enabled.
func (d *Device) Setup(platformIdx, deviceIdx int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var numPlatforms C.cl_uint
	if status := C.clGetPlatformIDs(0, nil, &numPlatforms); status != C.CL_SUCCESS {
		return statusError("Setup", status)
	}
	if platformIdx >= int(numPlatforms) {
		return occa.NewError("Setup", occa.ErrCodeNoSuchDevice, "platform index out of range")
	}
	platforms := make([]C.cl_platform_id, numPlatforms)
	if status := C.clGetPlatformIDs(numPlatforms, &platforms[0], nil); status != C.CL_SUCCESS {
		return statusError("Setup", status)
	}
	d.platformID = platforms[platformIdx]

	var numDevices C.cl_uint
	if status := C.clGetDeviceIDs(d.platformID, C.CL_DEVICE_TYPE_ALL, 0, nil, &numDevices); status != C.CL_SUCCESS {
		return statusError("Setup", status)
	}
	if deviceIdx >= int(numDevices) {
		return occa.NewError("Setup", occa.ErrCodeNoSuchDevice, "device index out of range")
	}
	devices := make([]C.cl_device_id, numDevices)
	if status := C.clGetDeviceIDs(d.platformID, C.CL_DEVICE_TYPE_ALL, numDevices, &devices[0], nil); status != C.CL_SUCCESS {
		return statusError("Setup", status)
	}
	d.deviceID = devices[deviceIdx]

	var status C.cl_int
	d.context = C.clCreateContext(nil, 1, &d.deviceID, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return statusError("Setup", status)
	}

	d.compiler = config.Compiler(constants.OpenCL)
	d.compilerFlags = config.CompilerFlags(constants.OpenCL)

	d.current = d.newStream()
	return nil
}

func (d *Device) newStream() *Stream {
	d.nextStream++
	props := C.cl_command_queue_properties(C.CL_QUEUE_PROFILING_ENABLE)
	var status C.cl_int
	queue := C.clCreateCommandQueue(d.context, d.deviceID, props, &status)
	s := &Stream{id: d.nextStream, queue: queue, seq: stream.NewSequencer()}
	d.streams[s] = true
	return s
}

// deviceInfoString performs the two-call size-then-fetch cl_device_info
// query pattern and returns the NUL-trimmed string.
func (d *Device) deviceInfoString(param C.cl_device_info) (string, error) {
	var size C.size_t
	if status := C.clGetDeviceInfo(d.deviceID, param, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo", status)
	}
	buf := make([]byte, size)
	if size == 0 {
		return "", nil
	}
	if status := C.clGetDeviceInfo(d.deviceID, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo", status)
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// SimdWidth implements interfaces.Device. Per-vendor widths are inferred
// from CL_DEVICE_VENDOR since the OpenCL API has no direct warp/
// wavefront query: NVIDIA devices report 32, AMD/ATI 64, everything else
// falls back to the configured default.
func (d *Device) SimdWidth() (int, error) {
	var err error
	d.simdWidthOnce.Do(func() {
		var vendor string
		vendor, err = d.deviceInfoString(C.CL_DEVICE_VENDOR)
		if err != nil {
			return
		}
		d.simdWidth = inferSimdWidth(vendor)
	})
	if err != nil {
		return 0, err
	}
	return d.simdWidth, nil
}

// inferSimdWidth guesses a device's warp/wavefront width from its
// CL_DEVICE_VENDOR string, since OpenCL has no direct query for it.
func inferSimdWidth(vendor string) int {
	v := strings.ToUpper(vendor)
	switch {
	case strings.Contains(v, "NVIDIA"):
		return 32
	case strings.Contains(v, "AMD"), strings.Contains(v, "ADVANCED MICRO DEVICES"), strings.HasPrefix(v, "ATI"):
		return 64
	default:
		return constants.DefaultSimdWidth
	}
}

// Flush implements interfaces.Device.
func (d *Device) Flush() error {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	if status := C.clFlush(cur.queue); status != C.CL_SUCCESS {
		return statusError("Flush", status)
	}
	return nil
}

// Finish implements interfaces.Device.
func (d *Device) Finish() error {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	if status := C.clFinish(cur.queue); status != C.CL_SUCCESS {
		return statusError("Finish", status)
	}
	return nil
}

// GenStream implements interfaces.Device.
func (d *Device) GenStream() (interfaces.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newStream(), nil
}

// FreeStream implements interfaces.Device.
func (d *Device) FreeStream(s interfaces.Stream) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("FreeStream", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}
	d.mu.Lock()
	delete(d.streams, cs)
	d.mu.Unlock()
	cs.seq.Close()
	C.clReleaseCommandQueue(cs.queue)
	return nil
}

// CurrentStream implements interfaces.Device.
func (d *Device) CurrentStream() interfaces.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetCurrentStream implements interfaces.Device.
func (d *Device) SetCurrentStream(s interfaces.Stream) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streams[cs] {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "stream not owned by this device")
	}
	d.current = cs
	return nil
}

// TagStream implements interfaces.Device by enqueuing a cl_event marker
// on the current queue.
func (d *Device) TagStream() (interfaces.Event, error) {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()

	var event C.cl_event
	if status := C.clEnqueueMarkerWithWaitList(cur.queue, 0, nil, &event); status != C.CL_SUCCESS {
		return nil, statusError("TagStream", status)
	}
	tag := cur.seq.Enqueue(func() {})
	return &Event{event: event, tag: tag}, nil
}

// TimeBetween implements interfaces.Device: synchronize on b, then read
// CL_PROFILING_COMMAND_START/END off both events with nanosecond
// precision.
func (d *Device) TimeBetween(a, b interfaces.Event) (time.Duration, error) {
	ae, ok := a.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not an OpenCL Event")
	}
	be, ok := b.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not an OpenCL Event")
	}
	if status := C.clWaitForEvents(1, &be.event); status != C.CL_SUCCESS {
		return 0, statusError("TimeBetween", status)
	}
	stream.WaitFor(be.tag)

	var startA, endB C.cl_ulong
	if status := C.clGetEventProfilingInfo(ae.event, C.CL_PROFILING_COMMAND_START, C.size_t(unsafe.Sizeof(startA)), unsafe.Pointer(&startA), nil); status != C.CL_SUCCESS {
		return 0, statusError("TimeBetween", status)
	}
	if status := C.clGetEventProfilingInfo(be.event, C.CL_PROFILING_COMMAND_END, C.size_t(unsafe.Sizeof(endB)), unsafe.Pointer(&endB), nil); status != C.CL_SUCCESS {
		return 0, statusError("TimeBetween", status)
	}
	C.clReleaseEvent(ae.event)
	C.clReleaseEvent(be.event)
	return time.Duration(uint64(endB) - uint64(startA)), nil
}

// Malloc implements interfaces.Device.
func (d *Device) Malloc(bytes uint64, source []byte) (interfaces.Memory, error) {
	flags := C.cl_mem_flags(C.CL_MEM_READ_WRITE)
	var status C.cl_int
	buf := C.clCreateBuffer(d.context, flags, C.size_t(bytes), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("Malloc", status)
	}
	m := &Memory{buf: buf, size: bytes, device: d}
	if source != nil {
		if err := m.CopyFromHost(source, bytes, 0); err != nil {
			_ = m.Free()
			return nil, err
		}
	}
	return m, nil
}

// BuildKernelFromSource implements interfaces.Device: route through the
// compile-cache coordinator, then clCreateProgramWithSource/clBuildProgram,
// surfacing the build log on failure.
func (d *Device) BuildKernelFromSource(sourcePath, functionName string, info interfaces.KernelInfo) (interfaces.Kernel, error) {
	d.mu.Lock()
	compiler, flags := d.compiler, d.compilerFlags
	d.mu.Unlock()
	if info.Flags != "" {
		flags = flags + " " + info.Flags
	}

	platformName, _ := d.deviceInfoString(C.CL_PLATFORM_NAME)
	deviceName, _ := d.deviceInfoString(C.CL_DEVICE_NAME)
	fingerprint := cache.Fingerprint(string(constants.OpenCL), platformName, deviceName, "", info.Prelude, compiler, flags, functionName)
	artifactPath := cache.Path(config.CacheDir(), sourcePath, fingerprint)

	var program C.cl_program
	if cache.HaveFile(artifactPath) {
		p, err := d.loadBinary(artifactPath)
		if err != nil {
			return nil, err
		}
		program = p
	} else {
		claim, ok, err := cache.TryClaim(artifactPath)
		if err != nil {
			return nil, occa.WrapError("BuildKernelFromSource", err)
		}
		if ok {
			p, buildErr := d.buildFromSource(sourcePath, artifactPath, info, flags)
			claim.Release()
			if buildErr != nil {
				return nil, buildErr
			}
			program = p
		} else {
			if !cache.WaitForFile(artifactPath) {
				return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeCompileError, "timed out waiting for concurrent build")
			}
			p, err := d.loadBinary(artifactPath)
			if err != nil {
				return nil, err
			}
			program = p
		}
	}

	return d.createKernel(program, functionName)
}

func (d *Device) buildFromSource(sourcePath, artifactPath string, info interfaces.KernelInfo, flags string) (C.cl_program, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, occa.WrapError("BuildKernelFromSource", err)
	}
	intermediate := translator.Default{}.CreateIntermediateSource(string(source), constants.OpenCL, info)

	cSource := C.CString(intermediate)
	defer C.free(unsafe.Pointer(cSource))
	length := C.size_t(len(intermediate))

	var status C.cl_int
	program := C.clCreateProgramWithSource(d.context, 1, &cSource, &length, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("BuildKernelFromSource", status)
	}

	cFlags := C.CString(flags)
	defer C.free(unsafe.Pointer(cFlags))
	status = C.clBuildProgram(program, 1, &d.deviceID, cFlags, nil, nil)
	if status != C.CL_SUCCESS {
		log := d.buildLog(program)
		C.clReleaseProgram(program)
		return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeCompileError, log)
	}

	if err := d.saveBinary(program, artifactPath); err != nil {
		return nil, err
	}
	return program, nil
}

// buildLog fetches CL_PROGRAM_BUILD_LOG with the two-call size-then-fetch
// pattern used throughout this file's device-info queries.
func (d *Device) buildLog(program C.cl_program) string {
	var size C.size_t
	C.clGetProgramBuildInfo(program, d.deviceID, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if size == 0 {
		return "opencl: build failed with no log"
	}
	buf := make([]byte, size)
	C.clGetProgramBuildInfo(program, d.deviceID, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

func (d *Device) saveBinary(program C.cl_program, artifactPath string) error {
	var size C.size_t
	if status := C.clGetProgramInfo(program, C.CL_PROGRAM_BINARY_SIZES, C.size_t(unsafe.Sizeof(size)), unsafe.Pointer(&size), nil); status != C.CL_SUCCESS {
		return statusError("saveBinary", status)
	}
	binary := make([]byte, size)
	binaryPtr := unsafe.Pointer(&binary[0])
	if status := C.clGetProgramInfo(program, C.CL_PROGRAM_BINARIES, C.size_t(unsafe.Sizeof(binaryPtr)), unsafe.Pointer(&binaryPtr), nil); status != C.CL_SUCCESS {
		return statusError("saveBinary", status)
	}
	if err := os.MkdirAll(filepath.Dir(artifactPath), 0o755); err != nil {
		return occa.WrapError("saveBinary", err)
	}
	return os.WriteFile(artifactPath, binary, 0o644)
}

func (d *Device) loadBinary(artifactPath string) (C.cl_program, error) {
	binary, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, occa.WrapError("BuildKernelFromSource", err)
	}
	binPtr := (*C.uchar)(unsafe.Pointer(&binary[0]))
	length := C.size_t(len(binary))
	var binStatus C.cl_int
	var status C.cl_int
	program := C.clCreateProgramWithBinary(d.context, 1, &d.deviceID, &length, &binPtr, &binStatus, &status)
	if status != C.CL_SUCCESS || binStatus != C.CL_SUCCESS {
		return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeLoadError, "clCreateProgramWithBinary failed")
	}
	if status := C.clBuildProgram(program, 1, &d.deviceID, nil, nil, nil); status != C.CL_SUCCESS {
		log := d.buildLog(program)
		C.clReleaseProgram(program)
		return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeCompileError, log)
	}
	return program, nil
}

func (d *Device) createKernel(program C.cl_program, functionName string) (interfaces.Kernel, error) {
	cName := C.CString(functionName)
	defer C.free(unsafe.Pointer(cName))

	var status C.cl_int
	kernel := C.clCreateKernel(program, cName, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("BuildKernelFromSource", status)
	}
	return &Kernel{name: functionName, kernel: kernel, device: d}, nil
}

// BuildKernelFromBinary implements interfaces.Device.
func (d *Device) BuildKernelFromBinary(binaryPath, functionName string) (interfaces.Kernel, error) {
	program, err := d.loadBinary(binaryPath)
	if err != nil {
		return nil, err
	}
	return d.createKernel(program, functionName)
}

// Teardown implements interfaces.Device.
func (d *Device) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.streams {
		s.seq.Close()
		C.clReleaseCommandQueue(s.queue)
	}
	d.streams = nil
	if d.context != nil {
		C.clReleaseContext(d.context)
		d.context = nil
	}
	return nil
}

var _ interfaces.Device = (*Device)(nil)
