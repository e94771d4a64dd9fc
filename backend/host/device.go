// Package host implements the CPU-only backend: kernel source is
// translated, handed to the host C compiler, and the resulting shared
// object is dlopen'd and dlsym'd via cgo (spec.md §4.1's third backend
// family, "host compiled and dlopen'd"). It is the only backend this
// module can exercise without vendor GPU hardware or an OpenCL ICD, so
// its stream/event timing is simulated on a single goroutine rather
// than read off a hardware fence.
package host

// #include <dlfcn.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
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
	occa.RegisterBackend(constants.HostShared, func() interfaces.Device {
		return New()
	})
}

// Device is the host-compiled CPU backend.
type Device struct {
	mu sync.Mutex

	platformID, deviceID int
	compiler             string
	compilerFlags        string

	streams    map[*Stream]bool
	current    *Stream
	nextStream int

	handles []unsafe.Pointer // open dlopen handles, closed on Teardown
}

// New constructs an un-setup host Device.
func New() *Device {
	return &Device{streams: make(map[*Stream]bool)}
}

func (d *Device) newStream() *Stream {
	d.nextStream++
	s := &Stream{id: d.nextStream, seq: stream.NewSequencer()}
	d.streams[s] = true
	return s
}

// Setup implements interfaces.Device. The host backend has exactly one
// logical platform/device pair; platformID/deviceID are recorded for
// diagnostics only.
func (d *Device) Setup(platformID, deviceID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.platformID = platformID
	d.deviceID = deviceID
	d.compiler = config.Compiler(constants.HostShared)
	d.compilerFlags = config.CompilerFlags(constants.HostShared)

	d.current = d.newStream()
	return nil
}

// SimdWidth implements interfaces.Device. The host compiler auto-vectorizes
// with no queryable SIMD width, so the configured default is reported.
func (d *Device) SimdWidth() (int, error) {
	return constants.DefaultSimdWidth, nil
}

// Flush implements interfaces.Device; the host backend has nothing to
// flush beyond what Enqueue already schedules.
func (d *Device) Flush() error {
	return nil
}

// Finish implements interfaces.Device.
func (d *Device) Finish() error {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	cur.seq.Finish()
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
	hs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("FreeStream", occa.ErrCodeUnsupported, "not a host Stream")
	}
	d.mu.Lock()
	delete(d.streams, hs)
	d.mu.Unlock()
	hs.seq.Close()
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
	hs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "not a host Stream")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streams[hs] {
		return occa.NewError("SetCurrentStream", occa.ErrCodeUnsupported, "stream not owned by this device")
	}
	d.current = hs
	return nil
}

// TagStream implements interfaces.Device.
func (d *Device) TagStream() (interfaces.Event, error) {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	e := &Event{}
	e.tag = cur.seq.Enqueue(func() {
		now := time.Now()
		e.at = &now
	})
	return e, nil
}

// TimeBetween implements interfaces.Device.
func (d *Device) TimeBetween(a, b interfaces.Event) (time.Duration, error) {
	ae, ok := a.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not a host Event")
	}
	be, ok := b.(*Event)
	if !ok {
		return 0, occa.NewError("TimeBetween", occa.ErrCodeUnsupported, "not a host Event")
	}
	stream.WaitFor(be.tag)
	return be.recordedAt().Sub(ae.recordedAt()), nil
}

// Malloc implements interfaces.Device, backing the allocation with a
// real C heap buffer so host-backend memory behaves like a device
// pointer rather than a plain Go slice.
func (d *Device) Malloc(bytes uint64, source []byte) (interfaces.Memory, error) {
	ptr := C.malloc(C.size_t(bytes))
	if ptr == nil {
		return nil, occa.NewError("Malloc", occa.ErrCodeContextCreate, "host allocation failed")
	}
	m := &Memory{ptr: ptr, size: bytes}
	if source != nil {
		if err := m.CopyFromHost(source, bytes, 0); err != nil {
			_ = m.Free()
			return nil, err
		}
	}
	return m, nil
}

// BuildKernelFromSource implements interfaces.Device: route through the
// compile-cache coordinator, then dlopen/dlsym the result.
func (d *Device) BuildKernelFromSource(sourcePath, functionName string, info interfaces.KernelInfo) (interfaces.Kernel, error) {
	d.mu.Lock()
	compiler, flags := d.compiler, d.compilerFlags
	d.mu.Unlock()
	if info.Flags != "" {
		flags = flags + " " + info.Flags
	}

	fingerprint := cache.Fingerprint(string(constants.HostShared), fmt.Sprint(d.platformID), fmt.Sprint(d.deviceID), "", info.Prelude, compiler, flags, functionName)
	artifactPath := cache.Path(config.CacheDir(), sourcePath, fingerprint) + ".so"

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

// BuildKernelFromBinary implements interfaces.Device.
func (d *Device) BuildKernelFromBinary(binaryPath, functionName string) (interfaces.Kernel, error) {
	return d.load(binaryPath, functionName)
}

func (d *Device) compile(sourcePath, artifactPath string, info interfaces.KernelInfo, compiler, flags string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return occa.WrapError("BuildKernelFromSource", err)
	}
	intermediate := translator.Default{}.CreateIntermediateSource(string(source), constants.HostShared, info)

	tmp, err := os.CreateTemp("", "occa-host-*.c")
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

	args := append([]string{"-shared", "-fPIC"}, splitFlags(flags)...)
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

	handle := C.dlopen(cPath, C.RTLD_NOW)
	if handle == nil {
		return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeLoadError, C.GoString(C.dlerror()))
	}

	cName := C.CString(functionName)
	defer C.free(unsafe.Pointer(cName))
	fn := C.dlsym(handle, cName)
	if fn == nil {
		C.dlclose(handle)
		return nil, occa.NewError("BuildKernelFromSource", occa.ErrCodeLoadError, fmt.Sprintf("symbol %q not found: %s", functionName, C.GoString(C.dlerror())))
	}

	d.mu.Lock()
	d.handles = append(d.handles, handle)
	d.mu.Unlock()

	return &Kernel{name: functionName, fn: fn}, nil
}

func splitFlags(flags string) []string {
	var out []string
	var cur []byte
	for i := 0; i < len(flags); i++ {
		if flags[i] == ' ' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, flags[i])
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// Teardown implements interfaces.Device.
func (d *Device) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.streams {
		s.seq.Close()
	}
	d.streams = nil
	for _, h := range d.handles {
		C.dlclose(h)
	}
	d.handles = nil
	return nil
}

var _ interfaces.Device = (*Device)(nil)
