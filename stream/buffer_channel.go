package stream

import (
	"log/slog"

	"github.com/kstaniek/go-u3v-stream/internal/logging"
	"github.com/kstaniek/go-u3v-stream/internal/metrics"
)

// Result is what StreamingLoop emits to the consumer: either a fully
// reconstructed Payload, or the error encountered while assembling one.
type Result struct {
	Payload Payload
	Err     error
}

// BufferChannel is the bidirectional handoff between StreamingLoop and its
// consumer: results flow worker->consumer, recycled Payload buffers flow
// consumer->worker for reuse. Both directions are non-blocking from the
// worker's perspective — a full results channel drops the newest result
// (with a warning) rather than stall the loop, and a consumer that never
// recycles simply costs the worker an allocation per frame, never a
// block. Capacity, construction and backpressure policy are the
// consumer's concern (§4.6); BufferChannel only guarantees per-direction
// FIFO order and non-blocking try-send/try-receive.
type BufferChannel struct {
	results chan Result
	recycle chan Payload
	logger  *slog.Logger
}

// NewBufferChannel creates a BufferChannel with the given per-direction
// capacities. A recycleCap of 0 is valid; the worker will simply allocate
// a fresh payload buffer every iteration.
func NewBufferChannel(resultsCap, recycleCap int) *BufferChannel {
	return &BufferChannel{
		results: make(chan Result, resultsCap),
		recycle: make(chan Payload, recycleCap),
		logger:  logging.L(),
	}
}

// Results returns the channel the consumer reads emitted Results from.
func (b *BufferChannel) Results() <-chan Result {
	return b.results
}

// Recycle returns a Payload's buffer to the worker for reuse. It never
// blocks: if the recycle channel is full, the buffer is dropped and
// Recycle reports false.
func (b *BufferChannel) Recycle(p Payload) bool {
	select {
	case b.recycle <- p:
		return true
	default:
		return false
	}
}

// trySend is the worker-side, non-blocking emit used by StreamingLoop. A
// full channel drops the result and logs a warning rather than block the
// transport mutex the worker holds.
func (b *BufferChannel) trySend(r Result) {
	select {
	case b.results <- r:
	default:
		metrics.IncBufferChannelDrop()
		b.logger.Warn("buffer_channel_send_dropped", "consumer_lagging", true)
	}
}

// tryRecvRecycled is the worker-side, non-blocking receive used by
// StreamingLoop to prefer a recycled buffer over a fresh allocation.
func (b *BufferChannel) tryRecvRecycled() (Payload, bool) {
	select {
	case p := <-b.recycle:
		return p, true
	default:
		return Payload{}, false
	}
}
