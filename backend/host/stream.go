package host

import (
	"time"

	"github.com/occa-go/occa/internal/interfaces"
	"github.com/occa-go/occa/internal/stream"
)

// Stream is a Sequencer-backed implementation of interfaces.Stream: work
// enqueued onto it runs FIFO on a single goroutine, simulating the
// ordering guarantee a real hardware queue provides.
type Stream struct {
	id  int
	seq *stream.Sequencer
}

// Native implements interfaces.Stream. The host backend has no vendor
// queue handle, so the Sequencer's ordinal is reported instead.
func (s *Stream) Native() any { return s.id }

var _ interfaces.Stream = (*Stream)(nil)

// Event wraps a stream.Tag as an implementation of interfaces.Event.
type Event struct {
	tag stream.Tag
	at  *time.Time
}

// Native implements interfaces.Event.
func (e *Event) Native() any { return e.tag }

// recordedAt returns the time the tag's marker ran on its stream,
// waiting for the marker first.
func (e *Event) recordedAt() time.Time {
	stream.WaitFor(e.tag)
	return *e.at
}

var _ interfaces.Event = (*Event)(nil)
