package driver

// #include <cuda.h>
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
)

// Kernel wraps a CUfunction as an implementation of interfaces.Kernel.
type Kernel struct {
	mu     sync.Mutex
	name   string
	fn     C.CUfunction
	module C.CUmodule
	device *Device
	geom   geometry.Geometry
	free   bool
}

// FunctionName implements interfaces.Kernel.
func (k *Kernel) FunctionName() string { return k.name }

// Geometry implements interfaces.Kernel.
func (k *Kernel) Geometry() geometry.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.geom
}

// Run implements interfaces.Kernel: pack args into a void* array and
// cuLaunchKernel with Outer as the grid dimension and Inner as the
// block dimension.
func (k *Kernel) Run(s interfaces.Stream, g geometry.Geometry, args argpack.List) error {
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("Run", occa.ErrCodeUnsupported, "not a driver Stream")
	}

	k.mu.Lock()
	k.geom = g
	fn := k.fn
	k.mu.Unlock()

	argv, free, err := packArgs(args)
	if err != nil {
		return err
	}
	defer free()

	var argvPtr *unsafe.Pointer
	if len(argv) > 0 {
		argvPtr = &argv[0]
	}

	status := C.cuLaunchKernel(fn,
		C.uint(g.Outer.X), C.uint(g.Outer.Y), C.uint(g.Outer.Z),
		C.uint(g.Inner.X), C.uint(g.Inner.Y), C.uint(g.Inner.Z),
		0, ds.stream, argvPtr, nil)
	return statusError("Run", status)
}

// packArgs flattens a bound argument list into the void** array
// cuLaunchKernel expects: scalar args are copied onto the C heap (freed
// by the returned func after the launch is enqueued), buffer args pass
// their CUdeviceptr through unchanged.
func packArgs(args argpack.List) ([]unsafe.Pointer, func(), error) {
	all := args.All()
	argv := make([]unsafe.Pointer, len(all))
	var allocated []unsafe.Pointer

	for i, a := range all {
		switch a.Kind {
		case argpack.KindScalar:
			p := C.CBytes(a.Scalar)
			allocated = append(allocated, p)
			argv[i] = p
		case argpack.KindBuffer:
			mem, ok := a.Buffer.(*Memory)
			if !ok {
				for _, p := range allocated {
					C.free(p)
				}
				return nil, nil, occa.NewError("Run", occa.ErrCodeUnsupported, "buffer arg is not a driver-native handle")
			}
			argv[i] = unsafe.Pointer(&mem.ptr)
		}
	}

	free := func() {
		for _, p := range allocated {
			C.free(p)
		}
	}
	return argv, free, nil
}

// PreferredDimSize implements interfaces.Kernel, reporting the constant
// block-multiple hint driver-compute backends use (no device query is
// needed).
func (k *Kernel) PreferredDimSize() (int, error) {
	return constants.DriverPreferredDimSize, nil
}

// Free implements interfaces.Kernel.
func (k *Kernel) Free() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.free {
		return nil
	}
	k.free = true
	C.cuModuleUnload(k.module)
	return nil
}

var _ interfaces.Kernel = (*Kernel)(nil)
