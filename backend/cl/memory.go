package cl

// #include <CL/cl.h>
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/interfaces"
)

// Memory wraps a cl_mem buffer as an implementation of
// interfaces.Memory.
type Memory struct {
	mu     sync.Mutex
	buf    C.cl_mem
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
		return occa.NewError("opencl memory", occa.ErrCodeBoundsCheck, "offset+bytes exceeds buffer size")
	}
	return nil
}

func (m *Memory) currentQueue() C.cl_command_queue {
	m.device.mu.Lock()
	defer m.device.mu.Unlock()
	return m.device.current.queue
}

// CopyFromHost implements interfaces.Memory with a blocking
// clEnqueueWriteBuffer on the device's current queue.
func (m *Memory) CopyFromHost(source []byte, bytes uint64, dstOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.clEnqueueWriteBuffer(m.currentQueue(), m.buf, C.CL_TRUE, C.size_t(dstOffset), C.size_t(bytes), unsafe.Pointer(&source[0]), 0, nil, nil)
	return statusError("CopyFromHost", status)
}

// CopyFromDevice implements interfaces.Memory with a blocking
// clEnqueueCopyBuffer.
func (m *Memory) CopyFromDevice(source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	src, ok := source.(*Memory)
	if !ok {
		return occa.NewError("CopyFromDevice", occa.ErrCodeUnsupported, "not an OpenCL Memory")
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
	var event C.cl_event
	queue := m.currentQueue()
	status := C.clEnqueueCopyBuffer(queue, src.buf, m.buf, C.size_t(srcOffset), C.size_t(dstOffset), C.size_t(bytes), 0, nil, &event)
	if status != C.CL_SUCCESS {
		return statusError("CopyFromDevice", status)
	}
	C.clWaitForEvents(1, &event)
	C.clReleaseEvent(event)
	return nil
}

// CopyToHost implements interfaces.Memory with a blocking
// clEnqueueReadBuffer.
func (m *Memory) CopyToHost(dest []byte, bytes uint64, srcOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.clEnqueueReadBuffer(m.currentQueue(), m.buf, C.CL_TRUE, C.size_t(srcOffset), C.size_t(bytes), unsafe.Pointer(&dest[0]), 0, nil, nil)
	return statusError("CopyToHost", status)
}

// CopyToDevice implements interfaces.Memory.
func (m *Memory) CopyToDevice(dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*Memory)
	if !ok {
		return occa.NewError("CopyToDevice", occa.ErrCodeUnsupported, "not an OpenCL Memory")
	}
	return d.CopyFromDevice(m, bytes, dstOffset, srcOffset)
}

// AsyncCopyFromHost implements interfaces.Memory with a non-blocking
// clEnqueueWriteBuffer on the given stream's queue.
func (m *Memory) AsyncCopyFromHost(s interfaces.Stream, source []byte, bytes uint64, dstOffset uint64) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyFromHost", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.clEnqueueWriteBuffer(cs.queue, m.buf, C.CL_FALSE, C.size_t(dstOffset), C.size_t(bytes), unsafe.Pointer(&source[0]), 0, nil, nil)
	return statusError("AsyncCopyFromHost", status)
}

// AsyncCopyFromDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyFromDevice(s interfaces.Stream, source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyFromDevice", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}
	src, ok := source.(*Memory)
	if !ok {
		return occa.NewError("AsyncCopyFromDevice", occa.ErrCodeUnsupported, "not an OpenCL Memory")
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
	status := C.clEnqueueCopyBuffer(cs.queue, src.buf, m.buf, C.size_t(srcOffset), C.size_t(dstOffset), C.size_t(bytes), 0, nil, nil)
	return statusError("AsyncCopyFromDevice", status)
}

// AsyncCopyToHost implements interfaces.Memory.
func (m *Memory) AsyncCopyToHost(s interfaces.Stream, dest []byte, bytes uint64, srcOffset uint64) error {
	cs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopyToHost", occa.ErrCodeUnsupported, "not an OpenCL Stream")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	status := C.clEnqueueReadBuffer(cs.queue, m.buf, C.CL_FALSE, C.size_t(srcOffset), C.size_t(bytes), unsafe.Pointer(&dest[0]), 0, nil, nil)
	return statusError("AsyncCopyToHost", status)
}

// AsyncCopyToDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyToDevice(s interfaces.Stream, dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*Memory)
	if !ok {
		return occa.NewError("AsyncCopyToDevice", occa.ErrCodeUnsupported, "not an OpenCL Memory")
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
	C.clReleaseMemObject(m.buf)
	return nil
}

var _ interfaces.Memory = (*Memory)(nil)
