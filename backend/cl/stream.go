package cl

// #include <CL/cl.h>
import "C"

import (
	"time"

	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// Stream wraps a cl_command_queue as an implementation of
// interfaces.Stream. Kernel launches and copies go to the
// cl_command_queue only; the Sequencer carries just the markers
// TagStream enqueues, which TimeBetween waits on with WaitFor.
type Stream struct {
	id    int
	queue C.cl_command_queue
	seq   *stream.Sequencer
}

// Native implements interfaces.Stream, exposing the cl_command_queue
// handle for callers that need to pass it to vendor APIs directly.
func (s *Stream) Native() any { return s.queue }

var _ interfaces.Stream = (*Stream)(nil)

// Event wraps a cl_event as an implementation of interfaces.Event.
type Event struct {
	event C.cl_event
	tag   stream.Tag
	at    *time.Time
}

// Native implements interfaces.Event.
func (e *Event) Native() any { return e.event }

var _ interfaces.Event = (*Event)(nil)
