package occa

import "github.com/occa-go/occa/internal/interfaces"

// Stream is the public facade over a backend queue: operations enqueued
// on the same Stream execute in FIFO order.
type Stream struct {
	backend interfaces.Stream
	device  *Device
}

// Native exposes the backend-specific handle, for callers that need to
// pass it to vendor APIs outside this package.
func (s *Stream) Native() any {
	return s.backend.Native()
}

// Device returns the Device this Stream belongs to.
func (s *Stream) Device() *Device {
	return s.device
}

// Event is a recorded position in a Stream, consumed exactly once by
// Device.TimeBetween.
type Event struct {
	backend interfaces.Event
}

// Native exposes the backend-specific handle.
func (e *Event) Native() any {
	return e.backend.Native()
}
