package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-u3v-stream/internal/logging"
	"github.com/kstaniek/go-u3v-stream/internal/metrics"
)

// Handle owns a Transport and arbitrates between direct one-shot reads and
// a background streaming-loop worker. Exactly one of those two modes may
// use the transport at a time (invariant I3); the worker, once started,
// holds the transport mutex for its entire run rather than re-acquiring it
// per frame, so a caller never contends with the worker for the lock — it
// is turned away by the running check instead.
type Handle struct {
	mu        sync.Mutex
	transport Transport
	poisoned  atomic.Bool
	logger    *slog.Logger

	paramsMu sync.Mutex
	params   Params

	runMu  sync.Mutex
	cancel chan struct{}
	done   chan struct{}
}

// NewHandle wraps a Transport. The returned Handle is not yet open.
func NewHandle(t Transport, params Params) *Handle {
	return &Handle{
		transport: t,
		params:    params,
		logger:    logging.L(),
	}
}

// Params returns a copy of the current parameters.
func (h *Handle) Params() Params {
	h.paramsMu.Lock()
	defer h.paramsMu.Unlock()
	return h.params
}

// SetParams replaces the current parameters.
func (h *Handle) SetParams(p Params) {
	h.paramsMu.Lock()
	defer h.paramsMu.Unlock()
	h.params = p
}

func (h *Handle) isRunning() bool {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.cancel != nil
}

// Open forwards to the underlying Transport. Idempotent.
func (h *Handle) Open() error {
	if h.poisoned.Load() {
		return ErrDevice
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.transport.Open(); err != nil {
		return fmt.Errorf("open transport: %w: %w", err, ErrDevice)
	}
	return nil
}

// Close stops a running worker, if any, then forwards to the underlying
// Transport. Idempotent. Callers are responsible for invoking Close; Go has
// no destructor to do it for them.
func (h *Handle) Close() error {
	if err := h.StopStreamingLoop(); err != nil {
		h.logger.Warn("stop_streaming_loop_failed_during_close", "error", err)
	}
	if h.poisoned.Load() {
		return ErrDevice
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w: %w", err, ErrDevice)
	}
	return nil
}

// ReadLeader performs a direct, one-shot leader read. It fails with
// ErrInStreaming while a streaming-loop worker is running.
func (h *Handle) ReadLeader(buf []byte) (int, error) {
	p := h.Params()
	if h.isRunning() {
		return 0, ErrInStreaming
	}
	if uint(len(buf)) < p.LeaderSize {
		return 0, ErrBufferTooSmall
	}
	return h.directRecv(buf[:p.LeaderSize], p.Timeout)
}

// ReadPayload performs a direct, one-shot payload read sized to the
// current maximum payload size.
func (h *Handle) ReadPayload(buf []byte) (int, error) {
	p := h.Params()
	if h.isRunning() {
		return 0, ErrInStreaming
	}
	size := p.MaximumPayloadSize()
	if uint(len(buf)) < size {
		return 0, ErrBufferTooSmall
	}
	return h.directRecv(buf[:size], p.Timeout)
}

// ReadTrailer performs a direct, one-shot trailer read.
func (h *Handle) ReadTrailer(buf []byte) (int, error) {
	p := h.Params()
	if h.isRunning() {
		return 0, ErrInStreaming
	}
	if uint(len(buf)) < p.TrailerSize {
		return 0, ErrBufferTooSmall
	}
	return h.directRecv(buf[:p.TrailerSize], p.Timeout)
}

func (h *Handle) directRecv(buf []byte, timeout time.Duration) (int, error) {
	if h.poisoned.Load() {
		return 0, ErrDevice
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.transport.Recv(buf, timeout)
	if err != nil {
		metrics.IncError(metrics.ErrTransportRecv)
		return n, fmt.Errorf("%w: %w", err, ErrDevice)
	}
	return n, nil
}

// RunStreamingLoop starts a background worker that owns the transport and
// emits assembled Payloads (or per-frame errors) on bc. It fails with
// ErrInStreaming if a worker is already running, or ErrDevice if the Handle
// was poisoned by a previous worker's panic.
func (h *Handle) RunStreamingLoop(bc *BufferChannel, params Params) error {
	if h.poisoned.Load() {
		return ErrDevice
	}
	h.runMu.Lock()
	if h.cancel != nil {
		h.runMu.Unlock()
		return ErrInStreaming
	}
	h.SetParams(params)
	cancel := make(chan struct{})
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	h.runMu.Unlock()

	metrics.IncStreamingLoopStart()
	h.logger.Info("streaming_loop_start")
	go h.runWorker(bc, params, cancel, done)
	return nil
}

// StopStreamingLoop fires cancellation and blocks until the worker observes
// it and signals completion. It is a no-op if no worker is running.
func (h *Handle) StopStreamingLoop() error {
	h.runMu.Lock()
	cancel := h.cancel
	done := h.done
	h.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	close(cancel)
	<-done

	h.runMu.Lock()
	h.cancel = nil
	h.done = nil
	h.runMu.Unlock()
	h.logger.Info("streaming_loop_stop")
	return nil
}

// runWorker is the streaming-loop worker goroutine. It holds h.mu for its
// entire lifetime; a panic anywhere in the loop body poisons the Handle
// instead of leaving the mutex silently unrecoverable (Go mutexes do not
// poison on panic the way Rust's do).
func (h *Handle) runWorker(bc *BufferChannel, params Params, cancel, done chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			h.poisoned.Store(true)
			metrics.IncDeviceError()
			h.logger.Error("streaming_loop_panic", "panic", r)
		}
		close(done)
		metrics.IncStreamingLoopStop()
	}()

	runStreamingLoop(h.transport, params, bc, cancel)
}
