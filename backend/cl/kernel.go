package cl

// #include <CL/cl.h>
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
)

// Kernel wraps a cl_kernel as an implementation of interfaces.Kernel.
type Kernel struct {
	mu     sync.Mutex
	name   string
	kernel C.cl_kernel
	device *Device
	geom   geometry.Geometry
	free   bool

	preferredDimSize     int
	preferredDimSizeErr  error
	preferredDimSizeOnce sync.Once
}

// FunctionName implements interfaces.Kernel.
func (k *Kernel) FunctionName() string { return k.name }

// Geometry implements interfaces.Kernel.
func (k *Kernel) Geometry() geometry.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.geom
}

// Run implements interfaces.Kernel: clSetKernelArg for every bound
// argument in order, then clEnqueueNDRangeKernel with Outer*Inner as
// globalWorkSize and Inner as localWorkSize.
func (k *Kernel) Run(s interfaces.Stream, g geometry.Geometry, args argpack.List) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("Run", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}

	k.mu.Lock()
	k.geom = g
	kernel := k.kernel
	k.mu.Unlock()

	for i, a := range args.All() {
		var size C.size_t
		var ptr unsafe.Pointer
		switch a.Kind {
		case argpack.KindScalar:
			size = C.size_t(len(a.Scalar))
			if size > 0 {
				ptr = unsafe.Pointer(&a.Scalar[0])
			}
		case argpack.KindBuffer:
			mem, ok := a.Buffer.(*Memory)
			if !ok {
				return occa.NewError("Run", occa.ErrCodeUnsupported, "buffer arg is not an OpenCL-native handle")
			}
			size = C.size_t(unsafe.Sizeof(mem.buf))
			ptr = unsafe.Pointer(&mem.buf)
		}
		if status := C.clSetKernelArg(kernel, C.cl_uint(i), size, ptr); status != C.CL_SUCCESS {
			return statusError("Run", status)
		}
	}

	global := g.Global()
	globalSize := []C.size_t{C.size_t(global.X), C.size_t(global.Y), C.size_t(global.Z)}
	localSize := []C.size_t{C.size_t(g.Inner.X), C.size_t(g.Inner.Y), C.size_t(g.Inner.Z)}

	status := C.clEnqueueNDRangeKernel(cs.queue, kernel, C.cl_uint(g.Dims), nil, &globalSize[0], &localSize[0], 0, nil, nil)
	return statusError("Run", status)
}

// PreferredDimSize implements interfaces.Kernel, querying
// CL_KERNEL_PREFERRED_WORK_GROUP_SIZE_MULTIPLE once and caching it.
func (k *Kernel) PreferredDimSize() (int, error) {
	k.preferredDimSizeOnce.Do(func() {
		var multiple C.size_t
		status := C.clGetKernelWorkGroupInfo(k.kernel, k.device.deviceID, C.CL_KERNEL_PREFERRED_WORK_GROUP_SIZE_MULTIPLE, C.size_t(unsafe.Sizeof(multiple)), unsafe.Pointer(&multiple), nil)
		if status != C.CL_SUCCESS {
			k.preferredDimSizeErr = statusError("PreferredDimSize", status)
			return
		}
		k.preferredDimSize = int(multiple)
	})
	if k.preferredDimSizeErr != nil {
		return 0, k.preferredDimSizeErr
	}
	return k.preferredDimSize, nil
}

// Free implements interfaces.Kernel.
func (k *Kernel) Free() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.free {
		return nil
	}
	k.free = true
	C.clReleaseKernel(k.kernel)
	return nil
}

var _ interfaces.Kernel = (*Kernel)(nil)
