package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds the client metrics instruments.
// Disabled config yields nil-safe no-op metrics.
//
// Each call creates a private Prometheus registry, so repeated
// initialization never trips duplicate-registration errors.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	meter := meterProvider.Meter("agentstream")

	ns := cfg.Namespace

	streamDuration, err := meter.Float64Histogram(
		ns+"_stream_duration_seconds",
		metric.WithDescription("Streaming chat turn duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream duration histogram: %w", err)
	}

	streamTurns, err := meter.Int64Counter(
		ns+"_stream_turns_total",
		metric.WithDescription("Total streaming chat turns"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream turns counter: %w", err)
	}

	streamErrors, err := meter.Int64Counter(
		ns+"_stream_errors_total",
		metric.WithDescription("Total streaming chat turns that ended in error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream errors counter: %w", err)
	}

	streamEvents, err := meter.Int64Counter(
		ns+"_stream_events_total",
		metric.WithDescription("Total decoded stream events by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream events counter: %w", err)
	}

	unknownEvents, err := meter.Int64Counter(
		ns+"_unknown_events_total",
		metric.WithDescription("Total skipped events with unrecognized types"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unknown events counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		ns+"_request_duration_seconds",
		metric.WithDescription("Non-streaming API request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requests, err := meter.Int64Counter(
		ns+"_requests_total",
		metric.WithDescription("Total non-streaming API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	requestErrors, err := meter.Int64Counter(
		ns+"_request_errors_total",
		metric.WithDescription("Total failed non-streaming API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request errors counter: %w", err)
	}

	return &PrometheusMetrics{
		registry:        registry,
		streamDuration:  streamDuration,
		streamTurns:     streamTurns,
		streamErrors:    streamErrors,
		streamEvents:    streamEvents,
		unknownEvents:   unknownEvents,
		requestDuration: requestDuration,
		requests:        requests,
		requestErrors:   requestErrors,
	}, nil
}
