// Package perfsink adapts engine.PerfHook to OpenTelemetry metrics,
// grounded on intelligencedev-manifold's internal/rag/obs.OtelMetrics
// instrument-caching pattern.
package perfsink

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wingman-run/wingman/internal/engine"
)

// OtelPerfHook records request counts and latencies against an
// OpenTelemetry meter named "wingman".
type OtelPerfHook struct {
	meter metric.Meter

	mu          sync.Mutex
	requests    metric.Int64Counter
	latency     metric.Float64Histogram
	initialized bool
}

// NewOtelPerfHook builds a hook using the global otel MeterProvider. Callers
// configure that provider (e.g. via an otel/sdk/metric.MeterProvider)
// before scenarios start running.
func NewOtelPerfHook() *OtelPerfHook {
	return &OtelPerfHook{meter: otel.Meter("wingman")}
}

func (h *OtelPerfHook) ensureInstruments() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return
	}
	// Errors here mean the instrument is unusable; OnRequest simply skips
	// recording rather than failing a scenario over telemetry plumbing.
	if c, err := h.meter.Int64Counter("wingman.http.requests"); err == nil {
		h.requests = c
	}
	if hist, err := h.meter.Float64Histogram("wingman.http.latency_ms"); err == nil {
		h.latency = hist
	}
	h.initialized = true
}

// OnRequest implements engine.PerfHook.
func (h *OtelPerfHook) OnRequest(requestName string, start, end time.Time, statusCode int, ok bool, errorMessage string) {
	h.ensureInstruments()

	attrs := []attribute.KeyValue{
		attribute.String("request", requestName),
		attribute.Int("status_code", statusCode),
		attribute.Bool("ok", ok),
	}

	ctx := context.Background()
	if h.requests != nil {
		h.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if h.latency != nil {
		h.latency.Record(ctx, float64(end.Sub(start).Milliseconds()), metric.WithAttributes(attrs...))
	}
}

var _ engine.PerfHook = (*OtelPerfHook)(nil)
