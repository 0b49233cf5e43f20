// framebuffer decouples the render loop (producer) from the stream encoder
// (consumer) with a bounded FIFO of frames. The producer never blocks: at
// capacity the single oldest frame is evicted before appending. Overflow is
// expected steady-state behavior under a slow consumer, counted and logged
// at debug level, never treated as a fault. This drop-oldest policy is the
// sole backpressure mechanism between rendering and streaming.
package framebuffer

import (
	"log"
	"sync"
	"time"

	"mariorl/atomicflag"
	"mariorl/shader"
)

// DefaultCapacity matches the streaming queue bound the app has always used.
const DefaultCapacity = 50

// Buffer is a bounded drop-oldest FIFO of frames, safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	frames   []*shader.Frame
	capacity int
	dropped  atomicflag.Counter
	// wake is a capacity-1 signal channel for blocked consumers; sends
	// never block the producer.
	wake chan struct{}
	log  *log.Logger
}

// New returns a buffer bounded to the given capacity; non-positive
// capacities fall back to the default.
func New(capacity int, logger *log.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		frames:   make([]*shader.Frame, 0, capacity),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		log:      logger,
	}
}

// Push appends a frame, evicting the oldest first when at capacity.
// Never blocks and never fails; the frame is owned by the buffer once
// enqueued.
func (b *Buffer) Push(frame *shader.Frame) {
	b.mu.Lock()
	if len(b.frames) >= b.capacity {
		// Drop-oldest: shift off the head. Cheap relative to frame size.
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
		n := b.dropped.Add(1)
		if b.log != nil && n%uint64(b.capacity) == 1 {
			b.log.Printf("frame buffer overflow, %d frames dropped so far", n)
		}
	}
	b.frames = append(b.frames, frame)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest frame, blocking up to timeout when
// empty. Returns ok=false on timeout; the caller decides whether to retry
// or emit a keep-alive.
func (b *Buffer) Pop(timeout time.Duration) (*shader.Frame, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.mu.Lock()
		if len(b.frames) > 0 {
			frame := b.frames[0]
			copy(b.frames, b.frames[1:])
			b.frames = b.frames[:len(b.frames)-1]
			b.mu.Unlock()
			return frame, true
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
			// Re-check; another consumer may have won the frame.
		case <-deadline.C:
			return nil, false
		}
	}
}

// Clear drains all buffered frames, returning the count discarded. Used on
// shutdown to prevent stale frames leaking into a subsequent run.
func (b *Buffer) Clear() int {
	b.mu.Lock()
	n := len(b.frames)
	b.frames = b.frames[:0]
	b.mu.Unlock()
	if b.log != nil && n > 0 {
		b.log.Printf("frame buffer cleared, %d frames discarded", n)
	}
	return n
}

// Len reports the current number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Dropped reports the total frames evicted by overflow since construction.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Count()
}
