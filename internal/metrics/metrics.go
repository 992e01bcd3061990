package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-u3v-stream/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	PayloadsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payloads_emitted_total",
		Help: "Total payloads successfully assembled and emitted by the streaming loop, by kind.",
	}, []string{"kind"})
	PayloadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payload_errors_total",
		Help: "Total payload assembly failures by pipeline stage.",
	}, []string{"stage"})
	BufferChannelDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buffer_channel_drops_total",
		Help: "Total results dropped because the consumer's BufferChannel was full.",
	})
	BufferPoolAllocs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buffer_pool_allocs_total",
		Help: "Total payload buffers freshly allocated because none was recycled in time.",
	})
	BufferPoolRecycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buffer_pool_recycles_total",
		Help: "Total payload buffers returned by the consumer and reused by the streaming loop.",
	})
	StreamingLoopStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streaming_loop_starts_total",
		Help: "Total times RunStreamingLoop was started.",
	})
	StreamingLoopStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streaming_loop_stops_total",
		Help: "Total times the streaming loop stopped.",
	})
	DeviceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_errors_total",
		Help: "Total streaming-loop worker panics that poisoned a Handle.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Payload kind label constants (stable label values to bound cardinality)
const (
	KindImage              = "image"
	KindImageExtendedChunk = "image_extended_chunk"
	KindChunk              = "chunk"
)

// Pipeline stage label constants used with PayloadErrors.
const (
	StageLeader  = "leader"
	StagePayload = "payload"
	StageTrailer = "trailer"
	StageBuild   = "build"
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTransportRecv = "transport_recv"
	ErrDeviceRegRead = "device_register_read"
)

// StartHTTP serves Prometheus metrics at /metrics on the given address.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localEmitted   uint64
	localErrors    uint64
	localDrops     uint64
	localAllocs    uint64
	localRecycles  uint64
	localLoopStart uint64
	localLoopStop  uint64
	localDevErrs   uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	PayloadsEmitted     uint64
	PayloadErrors       uint64
	BufferChannelDrops  uint64
	BufferPoolAllocs    uint64
	BufferPoolRecycles  uint64
	StreamingLoopStarts uint64
	StreamingLoopStops  uint64
	DeviceErrors        uint64
}

func Snap() Snapshot {
	return Snapshot{
		PayloadsEmitted:     atomic.LoadUint64(&localEmitted),
		PayloadErrors:       atomic.LoadUint64(&localErrors),
		BufferChannelDrops:  atomic.LoadUint64(&localDrops),
		BufferPoolAllocs:    atomic.LoadUint64(&localAllocs),
		BufferPoolRecycles:  atomic.LoadUint64(&localRecycles),
		StreamingLoopStarts: atomic.LoadUint64(&localLoopStart),
		StreamingLoopStops:  atomic.LoadUint64(&localLoopStop),
		DeviceErrors:        atomic.LoadUint64(&localDevErrs),
	}
}

// IncPayloadEmitted records a successfully assembled payload of the given kind.
func IncPayloadEmitted(kind string) {
	PayloadsEmitted.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localEmitted, 1)
}

// IncPayloadError records an assembly failure at the given pipeline stage.
func IncPayloadError(stage string) {
	PayloadErrors.WithLabelValues(stage).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// IncBufferChannelDrop records a result dropped because the consumer's
// BufferChannel results channel was full.
func IncBufferChannelDrop() {
	BufferChannelDrops.Inc()
	atomic.AddUint64(&localDrops, 1)
}

// IncBufferPoolAlloc records a fresh payload buffer allocation.
func IncBufferPoolAlloc() {
	BufferPoolAllocs.Inc()
	atomic.AddUint64(&localAllocs, 1)
}

// IncBufferPoolRecycle records a payload buffer reused from the recycle channel.
func IncBufferPoolRecycle() {
	BufferPoolRecycles.Inc()
	atomic.AddUint64(&localRecycles, 1)
}

// IncStreamingLoopStart records a RunStreamingLoop invocation.
func IncStreamingLoopStart() {
	StreamingLoopStarts.Inc()
	atomic.AddUint64(&localLoopStart, 1)
}

// IncStreamingLoopStop records a streaming loop exit.
func IncStreamingLoopStop() {
	StreamingLoopStops.Inc()
	atomic.AddUint64(&localLoopStop, 1)
}

// IncDeviceError records a streaming-loop worker panic that poisoned a Handle.
func IncDeviceError() {
	DeviceErrors.Inc()
	atomic.AddUint64(&localDevErrs, 1)
}

// IncError increments a generic, subsystem-labelled error counter.
func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTransportRecv, ErrDeviceRegRead} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
