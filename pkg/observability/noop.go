package observability

import (
	"context"
	"net/http"
	"time"
)

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordStreamTurn(_ context.Context, _ time.Duration, _ error) {}

func (NoopMetrics) RecordEvent(_ context.Context, _ string) {}

func (NoopMetrics) RecordUnknownEvent(_ context.Context, _ string) {}

func (NoopMetrics) RecordRequest(_ context.Context, _ string, _ time.Duration, _ error) {}

// Handler returns a handler that reports metrics as unavailable.
func (NoopMetrics) Handler() http.Handler {
	return metricsDisabledHandler()
}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoopMetrics{}
)
