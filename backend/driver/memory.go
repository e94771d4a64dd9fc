package driver

// #include <cuda.h>
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/interfaces"
)

// Memory wraps a CUdeviceptr as an implementation of interfaces.Memory.
type Memory struct {
	mu     sync.Mutex
	ptr    C.CUdeviceptr
	size   uint64
	device *Device
	free   bool
}

// Size implements interfaces.Memory.
func (m *Memory) Size() uint64 {
	return m.size
}

func (m *Memory) bounds(bytes, offset uint64) error {
	if offset+bytes > m.size {
		return occa.NewError("driver memory", occa.ErrCodeBoundsCheck, "offset+bytes exceeds buffer size")
	}
	return nil
}

// CopyFromHost implements interfaces.Memory with a blocking
// cuMemcpyHtoD.
func (m *Memory) CopyFromHost(source []byte, bytes uint64, dstOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyHtoD(m.ptr+C.CUdeviceptr(dstOffset), unsafe.Pointer(&source[0]), C.size_t(bytes))
	return statusError("CopyFromHost", status)
}

// CopyFromDevice implements interfaces.Memory with a blocking
// cuMemcpyDtoD.
func (m *Memory) CopyFromDevice(source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	src, ok := source.(*Memory)
	if !ok {
		return occa.NewError("CopyFromDevice", occa.ErrCodeUnsupported, "not a driver Memory")
	}
	if err := src.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyDtoD(m.ptr+C.CUdeviceptr(dstOffset), src.ptr+C.CUdeviceptr(srcOffset), C.size_t(bytes))
	return statusError("CopyFromDevice", status)
}

// CopyToHost implements interfaces.Memory with a blocking cuMemcpyDtoH.
func (m *Memory) CopyToHost(dest []byte, bytes uint64, srcOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyDtoH(unsafe.Pointer(&dest[0]), m.ptr+C.CUdeviceptr(srcOffset), C.size_t(bytes))
	return statusError("CopyToHost", status)
}

// CopyToDevice implements interfaces.Memory.
func (m *Memory) CopyToDevice(dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*Memory)
	if !ok {
		return occa.NewError("CopyToDevice", occa.ErrCodeUnsupported, "not a driver Memory")
	}
	return d.CopyFromDevice(m, bytes, dstOffset, srcOffset)
}

// AsyncCopyFromHost implements interfaces.Memory with a non-blocking
// cuMemcpyHtoDAsync on the given stream.
func (m *Memory) AsyncCopyFromHost(s interfaces.Stream, source []byte, bytes uint64, dstOffset uint64) error {
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyFromHost", occa.ErrCodeUnsupported, "not a driver Stream")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyHtoDAsync(m.ptr+C.CUdeviceptr(dstOffset), unsafe.Pointer(&source[0]), C.size_t(bytes), ds.stream)
	return statusError("AsyncCopyFromHost", status)
}

// AsyncCopyFromDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyFromDevice(s interfaces.Stream, source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyFromDevice", occa.ErrCodeUnsupported, "not a driver Stream")
	}
	src, ok := source.(*Memory)
	if !ok {
		return occa.NewError("AsyncCopyFromDevice", occa.ErrCodeUnsupported, "not a driver Memory")
	}
	if err := src.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyDtoDAsync(m.ptr+C.CUdeviceptr(dstOffset), src.ptr+C.CUdeviceptr(srcOffset), C.size_t(bytes), ds.stream)
	return statusError("AsyncCopyFromDevice", status)
}

// AsyncCopyToHost implements interfaces.Memory.
func (m *Memory) AsyncCopyToHost(s interfaces.Stream, dest []byte, bytes uint64, srcOffset uint64) error {
	ds, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyToHost", occa.ErrCodeUnsupported, "not a driver Stream")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.cuMemcpyDtoHAsync(unsafe.Pointer(&dest[0]), m.ptr+C.CUdeviceptr(srcOffset), C.size_t(bytes), ds.stream)
	return statusError("AsyncCopyToHost", status)
}

// AsyncCopyToDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyToDevice(s interfaces.Stream, dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*Memory)
	if !ok {
		return occa.NewError("AsyncCopyToDevice", occa.ErrCodeUnsupported, "not a driver Memory")
	}
	return d.AsyncCopyFromDevice(s, m, bytes, dstOffset, srcOffset)
}

// Free implements interfaces.Memory. Safe to call once.
func (m *Memory) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.free {
		return nil
	}
	m.free = true
	C.cuMemFree(m.ptr)
	return nil
}

var _ interfaces.Memory = (*Memory)(nil)
