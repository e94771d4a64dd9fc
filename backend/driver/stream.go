package driver

// #include <cuda.h>
import "C"

import (
	"time"

	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// Stream wraps a CUstream as an implementation of interfaces.Stream.
type Stream struct {
	id     int
	stream C.CUstream
	seq    *stream.Sequencer
}

// Native implements interfaces.Stream.
func (s *Stream) Native() any { return s.stream }

var _ interfaces.Stream = (*Stream)(nil)

// Event wraps a CUevent as an implementation of interfaces.Event.
type Event struct {
	event C.CUevent
	tag   stream.Tag
	at    *time.Time
}

// Native implements interfaces.Event.
func (e *Event) Native() any { return e.event }

var _ interfaces.Event = (*Event)(nil)
