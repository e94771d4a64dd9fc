package host

// #include <stdlib.h>
//
// typedef void (*occa_host_kernel_fn)(void **args, int nargs,
//     unsigned long long ox, unsigned long long oy, unsigned long long oz,
//     unsigned long long ix, unsigned long long iy, unsigned long long iz);
//
// static inline void occa_host_call(void *fn, void **args, int nargs,
//     unsigned long long ox, unsigned long long oy, unsigned long long oz,
//     unsigned long long ix, unsigned long long iy, unsigned long long iz) {
//   ((occa_host_kernel_fn)fn)(args, nargs, ox, oy, oz, ix, iy, iz);
// }
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// Kernel wraps a dlsym-resolved C function pointer produced by
// Device.BuildKernelFromSource/BuildKernelFromBinary.
type Kernel struct {
	mu   sync.Mutex
	name string
	fn   unsafe.Pointer
	geom geometry.Geometry
	free bool
}

// FunctionName implements interfaces.Kernel.
func (k *Kernel) FunctionName() string { return k.name }

// Geometry implements interfaces.Kernel.
func (k *Kernel) Geometry() geometry.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.geom
}

// Run implements interfaces.Kernel: marshal args into a void** array and
// invoke the dlsym'd function through the cgo trampoline, enqueued on
// s's Sequencer so launches on the same Stream stay FIFO. Run returns
// only after the kernel has finished running.
func (k *Kernel) Run(s interfaces.Stream, g geometry.Geometry, args argpack.List) error {
	hs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("Run", occa.ErrCodeUnsupported, "not a host Stream")
	}

	k.mu.Lock()
	k.geom = g
	fn := k.fn
	k.mu.Unlock()

	argv, freeArgv, err := packArgs(args)
	if err != nil {
		return err
	}

	var argvPtr *unsafe.Pointer
	if len(argv) > 0 {
		argvPtr = &argv[0]
	}

	tag := hs.seq.Enqueue(func() {
		defer freeArgv()
		C.occa_host_call(fn, argvPtr, C.int(len(argv)),
			C.ulonglong(g.Outer.X), C.ulonglong(g.Outer.Y), C.ulonglong(g.Outer.Z),
			C.ulonglong(g.Inner.X), C.ulonglong(g.Inner.Y), C.ulonglong(g.Inner.Z))
	})
	stream.WaitFor(tag)
	return nil
}

// packArgs flattens a bound argument list into a void* array the
// trampoline hands to the kernel function: scalar args are copied onto
// the C heap (freed by the returned func after the call), buffer args
// pass their Memory's underlying pointer through unchanged.
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
			switch h := a.Buffer.(type) {
			case *Memory:
				argv[i] = h.ptr
			case unsafe.Pointer:
				argv[i] = h
			default:
				for _, p := range allocated {
					C.free(p)
				}
				return nil, nil, occa.NewError("Run", occa.ErrCodeUnsupported, "buffer arg is not a host-native handle")
			}
		}
	}

	free := func() {
		for _, p := range allocated {
			C.free(p)
		}
	}
	return argv, free, nil
}

// PreferredDimSize implements interfaces.Kernel. The host backend has no
// block-multiple constraint, so it reports 1.
func (k *Kernel) PreferredDimSize() (int, error) {
	return 1, nil
}

// Free implements interfaces.Kernel.
func (k *Kernel) Free() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.free = true
	return nil
}

var _ interfaces.Kernel = (*Kernel)(nil)
