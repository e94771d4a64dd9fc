package stream

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequencerRunsJobsInFIFOOrder(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		tag := s.Enqueue(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
		_ = tag
	}
	<-done

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWaitForBlocksUntilJobDone(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var ran int32
	tag := s.Enqueue(func() {
		time.Sleep(10 * time.Millisecond)
		atomic.StoreInt32(&ran, 1)
	})

	WaitFor(tag)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestFinishWaitsForAllQueuedJobs(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var count int32
	for i := 0; i < 10; i++ {
		s.Enqueue(func() {
			atomic.AddInt32(&count, 1)
		})
	}
	s.Finish()

	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestSequencerNeverOverlapsJobs(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var active int32
	var maxActive int32
	for i := 0; i < 20; i++ {
		s.Enqueue(func() {
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
	}
	s.Finish()

	assert.Equal(t, int32(1), maxActive, "no two jobs on one sequencer should overlap")
}
