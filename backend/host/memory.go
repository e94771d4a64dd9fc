package host

// #include <string.h>
// #include <stdlib.h>
import "C"

import (
	"sync"
	"unsafe"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// Memory is a C-heap-backed implementation of interfaces.Memory: every
// allocation is a real pointer obtained from malloc, so host-backend
// buffers behave like device pointers rather than plain Go slices that
// the garbage collector could move or reclaim out from under a kernel.
type Memory struct {
	mu   sync.Mutex
	ptr  unsafe.Pointer
	size uint64
	free bool
}

// Size implements interfaces.Memory.
func (m *Memory) Size() uint64 {
	return m.size
}

// Handle exposes the raw C pointer backing this buffer, for callers
// building a kernel launch's argument list via argpack.Buffer.
func (m *Memory) Handle() unsafe.Pointer {
	return m.ptr
}

func (m *Memory) bounds(bytes, offset uint64) error {
	if offset+bytes > m.size {
		return occa.NewError("host memory", occa.ErrCodeBoundsCheck, "offset+bytes exceeds buffer size")
	}
	return nil
}

// CopyFromHost implements interfaces.Memory.
func (m *Memory) CopyFromHost(source []byte, bytes uint64, dstOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	dst := unsafe.Add(m.ptr, dstOffset)
	C.memcpy(dst, unsafe.Pointer(&source[0]), C.size_t(bytes))
	return nil
}

// CopyFromDevice implements interfaces.Memory.
func (m *Memory) CopyFromDevice(source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	src, ok := source.(*Memory)
	if !ok {
		return occa.NewError("CopyFromDevice", occa.ErrCodeUnsupported, "not a host Memory")
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
	if bytes == 0 {
		return nil
	}
	dst := unsafe.Add(m.ptr, dstOffset)
	s := unsafe.Add(src.ptr, srcOffset)
	C.memcpy(dst, s, C.size_t(bytes))
	return nil
}

// CopyToHost implements interfaces.Memory.
func (m *Memory) CopyToHost(dest []byte, bytes uint64, srcOffset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	src := unsafe.Add(m.ptr, srcOffset)
	C.memcpy(unsafe.Pointer(&dest[0]), src, C.size_t(bytes))
	return nil
}

// CopyToDevice implements interfaces.Memory.
func (m *Memory) CopyToDevice(dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	d, ok := dest.(*Memory)
	if !ok {
		return occa.NewError("CopyToDevice", occa.ErrCodeUnsupported, "not a host Memory")
	}
	return d.CopyFromDevice(m, bytes, dstOffset, srcOffset)
}

// AsyncCopyFromHost implements interfaces.Memory, running the copy on
// stream's Sequencer so it stays ordered with kernel launches queued on
// the same stream.
func (m *Memory) AsyncCopyFromHost(s interfaces.Stream, source []byte, bytes uint64, dstOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyFromHost(source, bytes, dstOffset) })
}

// AsyncCopyFromDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyFromDevice(s interfaces.Stream, source interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyFromDevice(source, bytes, dstOffset, srcOffset) })
}

// AsyncCopyToHost implements interfaces.Memory.
func (m *Memory) AsyncCopyToHost(s interfaces.Stream, dest []byte, bytes uint64, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyToHost(dest, bytes, srcOffset) })
}

// AsyncCopyToDevice implements interfaces.Memory.
func (m *Memory) AsyncCopyToDevice(s interfaces.Stream, dest interfaces.Memory, bytes, dstOffset, srcOffset uint64) error {
	return m.runOn(s, func() error { return m.CopyToDevice(dest, bytes, dstOffset, srcOffset) })
}

func (m *Memory) runOn(s interfaces.Stream, fn func() error) error {
	hs, ok := s.(*Stream)
	if !ok {
		return occa.NewError("AsyncCopy", occa.ErrCodeUnsupported, "not a host Stream")
	}
	var err error
	tag := hs.seq.Enqueue(func() { err = fn() })
	stream.WaitFor(tag)
	return err
}

// Free implements interfaces.Memory. Safe to call once; a second call
// is a no-op.
func (m *Memory) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.free {
		return nil
	}
	m.free = true
	C.free(m.ptr)
	m.ptr = nil
	return nil
}

var _ interfaces.Memory = (*Memory)(nil)
