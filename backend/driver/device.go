// Package driver implements the driver-compute GPU backend: raw CUDA
// driver API calls (cuInit/cuCtxCreate/cuStreamCreate/cuMemAlloc) behind
// interfaces.Device, with kernels built by shelling out to nvcc and
// loading the resulting cubin/ptx via cuModuleLoad (spec.md §4.1's
// "driver-compute GPU" backend family, grounded on the original CUDA
// backend's build pipeline).
package driver

// #cgo LDFLAGS: -lcuda
// #include <cuda.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"os"
	"os/exec"
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
	occa.RegisterBackend(constants.DriverCompute, func() interfaces.Device {
		return New()
	})
}

var (
	cuInitOnce sync.Once
	cuInitErr  error
)

func ensureInit() error {
	cuInitOnce.Do(func() {
		status := C.cuInit(0)
		cuInitErr = statusError("cuInit", status)
	})
	return cuInitErr
}

func statusError(op string, status C.CUresult) error {
	if status == C.CUDA_SUCCESS {
		return nil
	}
	var cName *C.char
	C.cuGetErrorName(status, &cName)
	name := "unknown"
	if cName != nil {
		name = C.GoString(cName)
	}
	return occa.NewBackendError(op, constants.GPU, occa.ErrCodeLaunchError, fmt.Sprintf("cuda status %d (%s)", int(status), name))
}

// Device is the CUDA driver-compute backend: one primary CUcontext per
// Device, bound to a single CUdevice.
type Device struct {
	mu sync.Mutex

	cuDevice C.CUdevice
	context  C.CUcontext

	compiler      string
	compilerFlags string

	streams    map[*Stream]bool
	current    *Stream
	nextStream int

	simdWidth     int
	simdWidthOnce sync.Once
}

// New constructs an un-setup CUDA Device.
func New() *Device {
	return &Device{streams: make(map[*Stream]bool)}
}

// Setup implements interfaces.Device: initializes the driver (process-
// wide one-shot), acquires deviceID, and creates a context.
func (d *Device) Setup(platformID, deviceID int) error {
	if err := ensureInit(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var count C.int
	if status := C.cuDeviceGetCount(&count); status != C.CUDA_SUCCESS {
		return statusError("Setup", status)
	}
	if deviceID >= int(count) {
		return occa.NewError("Setup", occa.ErrCodeNoSuchDevice, "device index out of range")
	}
	if status := C.cuDeviceGet(&d.cuDevice, C.int(deviceID)); status != C.CUDA_SUCCESS {
		return statusError("Setup", status)
	}
	if status := C.cuCtxCreate(&d.context, 0, d.cuDevice); status != C.CUDA_SUCCESS {
		return statusError("Setup", status)
	}

	d.compiler = config.Compiler(constants.DriverCompute)
	d.compilerFlags = config.CompilerFlags(constants.DriverCompute)

	d.current = d.newStream()
	return nil
}

func (d *Device) newStream() *Stream {
	d.nextStream++
	var cuStream C.CUstream
	C.cuStreamCreate(&cuStream, C.CU_STREAM_DEFAULT)
	s := &Stream{id: d.nextStream, stream: cuStream, seq: stream.NewSequencer()}
	d.streams[s] = true
	return s
}

// SimdWidth implements interfaces.Device, reporting the warp size
// (always 32 on every CUDA device to date).
func (d *Device) SimdWidth() (int, error) {
	var err error
	d.simdWidthOnce.Do(func() {
		var warpSize C.int
		status := C.cuDeviceGetAttribute(&warpSize, C.CU_DEVICE_ATTRIBUTE_WARP_SIZE, d.cuDevice)
		if status != C.CUDA_SUCCESS {
			err = statusError("SimdWidth", status)
			return
		}
		d.simdWidth = int(warpSize)
	})
	if err != nil {
		return 0, err
	}
	return d.simdWidth, nil
}

// Flush implements interfaces.Device. CUDA streams have no separate
// flush distinct from synchronization, so this is a no-op.
func (d *Device) Flush() error {
	return nil
}

// Finish implements interfaces.Device.
func (d *Device) Finish() error {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	if status := C.cuStreamSynchronize(cur.stream); status != C.CUDA_SUCCESS {
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
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("FreeStream", occa.ErrCodeUnsupported, "not a driver Stream")
	}
	d.mu.Lock()
	delete(d.streams, ds)
	d.mu.Unlock()
	ds.seq.Close()
	C.cuStreamDestroy(ds.stream)
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
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "not a driver Stream")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streams[ds] {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "stream not owned by this device")
	}
	d.current = ds
	return nil
}

// TagStream implements interfaces.Device by recording a CUevent on the
// current stream.
func (d *Device) TagStream() (interfaces.Event, error) {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()

	var event C.CUevent
	if status := C.cuEventCreate(&event, C.CU_EVENT_DEFAULT); status != C.CUDA_SUCCESS {
		return nil, statusError("TagStream", status)
	}
	if status := C.cuEventRecord(event, cur.stream); status != C.CUDA_SUCCESS {
		return nil, statusError("TagStream", status)
	}
	tag := cur.seq.Enqueue(func() {})
	return &Event{event: event, tag: tag}, nil
}

// TimeBetween implements interfaces.Device via cuEventElapsedTime,
// synchronizing on b first.
func (d *Device) TimeBetween(a, b interfaces.Event) (time.Duration, error) {
	ae, ok := a.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not a driver Event")
	}
	be, ok := b.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not a driver Event")
	}
	if status := C.cuEventSynchronize(be.event); status != C.CUDA_SUCCESS {
		return 0, statusError("TimeBetween", status)
	}
	stream.WaitFor(be.tag)

	var millis C.float
	if status := C.cuEventElapsedTime(&millis, ae.event, be.event); status != C.CUDA_SUCCESS {
		return 0, statusError("TimeBetween", status)
	}
	C.cuEventDestroy(ae.event)
	C.cuEventDestroy(be.event)
	return time.Duration(float64(millis) * float64(time.Millisecond)), nil
}

// Malloc implements interfaces.Device.
func (d *Device) Malloc(bytes uint64, source []byte) (interfaces.Memory, error) {
	var ptr C.CUdeviceptr
	if status := C.cuMemAlloc(&ptr, C.size_t(bytes)); status != C.CUDA_SUCCESS {
		return nil, statusError("Malloc", status)
	}
	m := &Memory{ptr: ptr, size: bytes, device: d}
	if source != nil {
		if err := m.CopyFromHost(source, bytes, 0); err != nil {
			_ = m.Free()
			return nil, err
		}
	}
	return m, nil
}

// BuildKernelFromSource implements interfaces.Device: route through the
// compile-cache coordinator, shell out to nvcc for a cubin, then
// cuModuleLoad/cuModuleGetFunction.
func (d *Device) BuildKernelFromSource(sourcePath, functionName string, info interfaces.KernelInfo) (interfaces.Kernel, error) {
	d.mu.Lock()
	compiler, flags := d.compiler, d.compilerFlags
	d.mu.Unlock()
	if info.Flags != "" {
		flags = flags + " " + info.Flags
	}
	major, minor := d.computeCapability()
	flags = withArchFlag(flags, major, minor)
	deviceTag := fmt.Sprintf("sm_%d%d", major, minor)

	fingerprint := cache.Fingerprint(string(constants.DriverCompute), "0", deviceTag, "", info.Prelude, compiler, flags, functionName)
	artifactPath := cache.Path(config.CacheDir(), sourcePath, fingerprint) + ".cubin"

	if !cache.HaveFile(artifactPath) {
		claim, ok, err := cache.TryClaim(artifactPath)
		if err != nil {
			return nil, occa.WrapError("BuildKernelFromSource", err)
		}
		if ok {
			buildErr := d.compile(sourcePath, artifactPath, info, compiler, flags)
			claim.Release()
			if buildErr != nil {
				return nil, buildErr
			}
		} else if !cache.WaitForFile(artifactPath) {
			return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeCompileError, "timed out waiting for concurrent build")
		}
	}

	return d.load(artifactPath, functionName)
}

func (d *Device) computeCapability() (major, minor int) {
	var maj, min C.int
	C.cuDeviceGetAttribute(&maj, C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MAJOR, d.cuDevice)
	C.cuDeviceGetAttribute(&min, C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MINOR, d.cuDevice)
	return int(maj), int(min)
}

// withArchFlag injects "-arch=sm_<major><minor>" unless the caller's
// flags already specify a target architecture, matching the original
// CUDA backend's build-command construction.
func withArchFlag(flags string, major, minor int) string {
	if strings.Contains(flags, "-arch=sm_") {
		return flags
	}
	return fmt.Sprintf("%s -arch=sm_%d%d", flags, major, minor)
}

func (d *Device) compile(sourcePath, artifactPath string, info interfaces.KernelInfo, compiler, flags string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return occa.WrapError("BuildKernelFromSource", err)
	}
	intermediate := translator.Default{}.CreateIntermediateSource(string(source), constants.DriverCompute, info)

	tmp, err := os.CreateTemp("", "occa-driver-*.cu")
	if err != nil {
		return occa.WrapError("BuildKernelFromSource", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(intermediate); err != nil {
		tmp.Close()
		return occa.WrapError("BuildKernelFromSource", err)
	}
	tmp.Close()

	if err := os.MkdirAll(filepath.Dir(artifactPath), 0o755); err != nil {
		return occa.WrapError("BuildKernelFromSource", err)
	}

	args := append([]string{"-cubin"}, strings.Fields(flags)...)
	args = append(args, "-o", artifactPath, tmp.Name())
	cmd := exec.Command(compiler, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return occa.NewError("BuildKernelFromSource", occa.ErrCodeCompileError, string(out))
	}
	return nil
}

func (d *Device) load(artifactPath, functionName string) (interfaces.Kernel, error) {
	cPath := C.CString(artifactPath)
	defer C.free(unsafe.Pointer(cPath))

	var module C.CUmodule
	if status := C.cuModuleLoad(&module, cPath); status != C.CUDA_SUCCESS {
		return nil, statusError("BuildKernelFromSource", status)
	}

	cName := C.CString(functionName)
	defer C.free(unsafe.Pointer(cName))
	var fn C.CUfunction
	if status := C.cuModuleGetFunction(&fn, module, cName); status != C.CUDA_SUCCESS {
		C.cuModuleUnload(module)
		return nil, statusError("BuildKernelFromSource", status)
	}

	return &Kernel{name: functionName, fn: fn, module: module, device: d}, nil
}

// BuildKernelFromBinary implements interfaces.Device.
func (d *Device) BuildKernelFromBinary(binaryPath, functionName string) (interfaces.Kernel, error) {
	return d.load(binaryPath, functionName)
}

// Teardown implements interfaces.Device.
func (d *Device) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.streams {
		s.seq.Close()
		C.cuStreamDestroy(s.stream)
	}
	d.streams = nil
	if d.context != nil {
		C.cuCtxDestroy(d.context)
		d.context = nil
	}
	return nil
}

var _ interfaces.Device = (*Device)(nil)
