package occa

import "github.com/occa-go/occa/internal/interfaces"

// Memory is the public facade over a device-allocated buffer.
type Memory struct {
	backend interfaces.Memory
	size    uint64
	device  *Device
	freed   bool
}

// Size returns the buffer's size in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Device returns the Device this Memory was allocated on.
func (m *Memory) Device() *Device {
	return m.device
}

// Native exposes the backend-specific buffer handle this Memory wraps,
// for callers building a kernel launch's argument list via
// argpack.Buffer. The concrete type is backend-dependent; each
// backend's Kernel.Run type-asserts it to its own Memory type.
func (m *Memory) Native() any {
	return m.backend
}

func (m *Memory) checkRange(bytes, offset uint64) error {
	if bytes == 0 {
		bytes = m.size
	}
	if offset+bytes > m.size {
		return NewError("Memory", ErrCodeBoundsCheck, "offset+bytes exceeds buffer size")
	}
	return nil
}

// CopyFrom copies bytes from source into this Memory at dstOffset. A
// zero bytes means "the entire buffer."
func (m *Memory) CopyFrom(source []byte, bytes uint64, dstOffset uint64) error {
	if err := m.checkRange(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		bytes = m.size
	}
	if err := m.backend.CopyFromHost(source, bytes, dstOffset); err != nil {
		return WrapError("CopyFrom", err)
	}
	return nil
}

// CopyFromDevice copies bytes from src into this Memory. Parameter
// order is (dest_offset, src_offset), pinned per the runtime's resolved
// copy-to convention.
func (m *Memory) CopyFromDevice(src *Memory, bytes, dstOffset, srcOffset uint64) error {
	if err := m.checkRange(bytes, dstOffset); err != nil {
		return err
	}
	if err := src.checkRange(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		bytes = m.size
	}
	if err := m.backend.CopyFromDevice(src.backend, bytes, dstOffset, srcOffset); err != nil {
		return WrapError("CopyFromDevice", err)
	}
	return nil
}

// CopyTo copies bytes from this Memory into dest, starting at
// srcOffset. A zero bytes means "the entire buffer."
func (m *Memory) CopyTo(dest []byte, bytes uint64, srcOffset uint64) error {
	if err := m.checkRange(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		bytes = m.size
	}
	if err := m.backend.CopyToHost(dest, bytes, srcOffset); err != nil {
		return WrapError("CopyTo", err)
	}
	return nil
}

// CopyToDevice copies bytes from this Memory into dest. Parameter
// order is (dest_offset, src_offset).
func (m *Memory) CopyToDevice(dest *Memory, bytes, dstOffset, srcOffset uint64) error {
	return dest.CopyFromDevice(m, bytes, dstOffset, srcOffset)
}

// AsyncCopyFrom enqueues a host-to-device copy on stream. The host
// backend and MockDevice return only after the copy has run.
func (m *Memory) AsyncCopyFrom(s *Stream, source []byte, bytes uint64, dstOffset uint64) error {
	if err := m.checkRange(bytes, dstOffset); err != nil {
		return err
	}
	if bytes == 0 {
		bytes = m.size
	}
	if err := m.backend.AsyncCopyFromHost(s.backend, source, bytes, dstOffset); err != nil {
		return WrapError("AsyncCopyFrom", err)
	}
	return nil
}

// AsyncCopyTo enqueues a device-to-host copy on stream. The host
// backend and MockDevice return only after the copy has run.
func (m *Memory) AsyncCopyTo(s *Stream, dest []byte, bytes uint64, srcOffset uint64) error {
	if err := m.checkRange(bytes, srcOffset); err != nil {
		return err
	}
	if bytes == 0 {
		bytes = m.size
	}
	if err := m.backend.AsyncCopyToHost(s.backend, dest, bytes, srcOffset); err != nil {
		return WrapError("AsyncCopyTo", err)
	}
	return nil
}

// Free releases the underlying device allocation. Safe to call once;
// a Memory value's lifetime ends here even though the Go value itself
// may still be shared (shallow-copy-with-explicit-free semantics).
func (m *Memory) Free() error {
	if m.freed {
		return nil
	}
	m.freed = true
	if m.device != nil {
		m.device.mu.Lock()
		m.device.bytesAllocated -= m.size
		m.device.mu.Unlock()
	}
	if err := m.backend.Free(); err != nil {
		return WrapError("Free", err)
	}
	return nil
}
