// Package telemetry provides Prometheus metrics, tracing and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesHandled      prometheus.Counter
	ReferencesScanned    *prometheus.CounterVec // kind=replay|unit
	ReferencesSuppressed *prometheus.CounterVec // kind, reason=recent|too_many
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
	CacheWriteFailures   prometheus.Counter
	FetchFailures        *prometheus.CounterVec // class
	NotificationFailures *prometheus.CounterVec // op=post|update|retract|send

	// Histograms (seconds)
	ResolveDuration prometheus.Observer

	// Gauges
	ChatConnectedGauge prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "replaybot_messages_handled_total", Help: "Number of chat messages handed to the orchestrator"})
		ReferencesScanned = promauto.NewCounterVec(prometheus.CounterOpts{Name: "replaybot_references_scanned_total", Help: "References extracted from chat messages"}, []string{"kind"})
		ReferencesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "replaybot_references_suppressed_total", Help: "References dropped before notification"}, []string{"kind", "reason"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "replaybot_cache_hits_total", Help: "Replay cache hits"})
		CacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "replaybot_cache_misses_total", Help: "Replay cache misses"})
		CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "replaybot_cache_write_failures_total", Help: "Failed write-behind cache writes"})
		FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "replaybot_fetch_failures_total", Help: "Failed replay resolutions by class"}, []string{"class"})
		NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "replaybot_notification_failures_total", Help: "Failed notification sink operations"}, []string{"op"})
		ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "replaybot_resolve_duration_seconds", Help: "Replay resolve duration seconds", Buckets: prometheus.DefBuckets})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "replaybot_chat_connected", Help: "Chat connection up=1 down=0"})
	})
}

// The helpers below are no-ops until Init has run, so library code and tests
// can call them unconditionally.

// MessageHandled counts one orchestrated message.
func MessageHandled() {
	if MessagesHandled != nil {
		MessagesHandled.Inc()
	}
}

// ReferenceScanned adds n scanned references of kind.
func ReferenceScanned(kind string, n int) {
	if ReferencesScanned != nil && n > 0 {
		ReferencesScanned.WithLabelValues(kind).Add(float64(n))
	}
}

// ReferenceSuppressed adds n references of kind dropped for reason.
func ReferenceSuppressed(kind, reason string, n int) {
	if ReferencesSuppressed != nil && n > 0 {
		ReferencesSuppressed.WithLabelValues(kind, reason).Add(float64(n))
	}
}

// CacheHit counts a replay served from the cache.
func CacheHit() {
	if CacheHits != nil {
		CacheHits.Inc()
	}
}

// CacheMiss counts a replay that had to be fetched.
func CacheMiss() {
	if CacheMisses != nil {
		CacheMisses.Inc()
	}
}

// CacheWriteFailed counts a failed write-behind.
func CacheWriteFailed() {
	if CacheWriteFailures != nil {
		CacheWriteFailures.Inc()
	}
}

// FetchFailed counts a failed resolution of the given class.
func FetchFailed(class string) {
	if FetchFailures != nil {
		FetchFailures.WithLabelValues(class).Inc()
	}
}

// NotificationFailed counts a failed sink operation.
func NotificationFailed(op string) {
	if NotificationFailures != nil {
		NotificationFailures.WithLabelValues(op).Inc()
	}
}

// ObserveResolve records a resolve duration.
func ObserveResolve(d time.Duration) {
	if ResolveDuration != nil {
		ResolveDuration.Observe(d.Seconds())
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(up bool) {
	if ChatConnectedGauge == nil {
		return
	}
	if up {
		ChatConnectedGauge.Set(1)
	} else {
		ChatConnectedGauge.Set(0)
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// NewCorrelation embeds a fresh random correlation id and returns it with the context.
func NewCorrelation(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithCorrelation(ctx, id), id
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
