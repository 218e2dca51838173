package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records client-side measurements.
//
// Implementations must be nil-safe and cheap when collection is disabled.
type Metrics interface {
	// RecordStreamTurn records one completed streaming chat turn.
	RecordStreamTurn(ctx context.Context, duration time.Duration, err error)

	// RecordEvent counts one decoded stream event by kind.
	RecordEvent(ctx context.Context, kind string)

	// RecordUnknownEvent counts one skipped event of an unrecognized kind.
	RecordUnknownEvent(ctx context.Context, kind string)

	// RecordRequest records one non-streaming API call.
	RecordRequest(ctx context.Context, operation string, duration time.Duration, err error)

	// Handler exposes the metrics in Prometheus text format.
	Handler() http.Handler
}

// PrometheusMetrics implements Metrics on OpenTelemetry instruments backed
// by a private Prometheus registry. The zero value records nothing and
// serves 503 from Handler.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	streamDuration metric.Float64Histogram
	streamTurns    metric.Int64Counter
	streamErrors   metric.Int64Counter
	streamEvents   metric.Int64Counter
	unknownEvents  metric.Int64Counter

	requestDuration metric.Float64Histogram
	requests        metric.Int64Counter
	requestErrors   metric.Int64Counter
}

func (m *PrometheusMetrics) RecordStreamTurn(ctx context.Context, duration time.Duration, err error) {
	if m == nil || m.streamDuration == nil || m.streamTurns == nil {
		return
	}

	m.streamDuration.Record(ctx, duration.Seconds())
	m.streamTurns.Add(ctx, 1)

	if err != nil && m.streamErrors != nil {
		m.streamErrors.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordEvent(ctx context.Context, kind string) {
	if m == nil || m.streamEvents == nil {
		return
	}

	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *PrometheusMetrics) RecordUnknownEvent(ctx context.Context, kind string) {
	if m == nil || m.unknownEvents == nil {
		return
	}

	m.unknownEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *PrometheusMetrics) RecordRequest(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil || m.requestDuration == nil || m.requests == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("operation", operation))

	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requests.Add(ctx, 1, attrs)

	if err != nil && m.requestErrors != nil {
		m.requestErrors.Add(ctx, 1, attrs)
	}
}

// Handler serves the private registry, or 503 when metrics are disabled.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return metricsDisabledHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func metricsDisabledHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// SetGlobalMetrics installs the process-wide metrics sink.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics sink.
// Defaults to NoopMetrics until SetGlobalMetrics is called.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
