package engine

import (
	"sync"

	"github.com/roach88/sweeptrace/internal/ir"
)

// IngestBuffer accumulates samples between frames.
//
// Push is a pure append: no backpressure, no deduplication, no ordering
// checks. The producer is trusted to emit time-ordered samples.
//
// Thread-safety is provided for producers pushing from their own goroutine
// while the Scope's Run loop drains.
//
// The buffer exposes a pending signal with a buffer of one. A push while a
// signal is already pending does not add another one, so any number of
// pushes between two frames schedule exactly one processing pass.
type IngestBuffer struct {
	mu      sync.Mutex
	pending []ir.Sample
	closed  bool
	signal  chan struct{} // pending frame request (buffered, size 1)
	done    chan struct{} // closed on Close
}

// NewIngestBuffer creates an empty buffer.
func NewIngestBuffer() *IngestBuffer {
	return &IngestBuffer{
		pending: make([]ir.Sample, 0, 256),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Push appends a sample.
// Thread-safe: may be called from any goroutine.
// Returns false if the buffer is closed.
func (b *IngestBuffer) Push(s ir.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.pending = append(b.pending, s)
	b.notify()
	return true
}

// PushBatch appends samples in order under a single lock.
// Returns false if the buffer is closed.
func (b *IngestBuffer) PushBatch(samples []ir.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if len(samples) == 0 {
		return true
	}
	b.pending = append(b.pending, samples...)
	b.notify()
	return true
}

// notify requests a frame. Non-blocking: the one-slot buffer coalesces
// requests while one is pending. Caller holds b.mu.
func (b *IngestBuffer) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// DrainAll returns every pending sample and empties the buffer.
// Returns nil when nothing is pending.
func (b *IngestBuffer) DrainAll() []ir.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	batch := b.pending
	// Hand the backing array to the caller; start a fresh one sized for a
	// similar burst.
	b.pending = make([]ir.Sample, 0, cap(batch))
	return batch
}

// Wait returns a channel that receives when a frame has been requested.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-buf.Wait():
//	    // schedule a frame
//	}
func (b *IngestBuffer) Wait() <-chan struct{} {
	return b.signal
}

// Done returns a channel closed when the buffer is closed.
func (b *IngestBuffer) Done() <-chan struct{} {
	return b.done
}

// Len returns the number of pending samples.
func (b *IngestBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close rejects further pushes and discards pending samples.
// Safe to call more than once.
func (b *IngestBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.pending = nil
	close(b.done)
}
