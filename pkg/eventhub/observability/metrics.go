package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event hub metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records an event entering the hub.
	RecordDispatch(ctx context.Context, eventType, source string)

	// RecordListener records one listener invocation with its duration and
	// whether it failed.
	RecordListener(ctx context.Context, component string, duration time.Duration, err error)

	// RecordSharedState records a shared state write.
	RecordSharedState(ctx context.Context, component, kind, status string)

	// RecordResponseTimeout records a response listener that expired.
	RecordResponseTimeout(ctx context.Context)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatched       metric.Int64Counter
	listenerCalls    metric.Int64Counter
	listenerLatency  metric.Float64Histogram
	listenerErrors   metric.Int64Counter
	stateWrites      metric.Int64Counter
	responseTimeouts metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventhub")

	dispatched, err := meter.Int64Counter("eventhub.events.dispatched",
		metric.WithDescription("Number of events dispatched through the hub"),
	)
	if err != nil {
		return nil, err
	}

	listenerCalls, err := meter.Int64Counter("eventhub.listener.invocations",
		metric.WithDescription("Number of listener invocations"),
	)
	if err != nil {
		return nil, err
	}

	listenerLatency, err := meter.Float64Histogram("eventhub.listener.latency_ms",
		metric.WithDescription("Listener latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	listenerErrors, err := meter.Int64Counter("eventhub.listener.errors",
		metric.WithDescription("Number of listener invocations that panicked"),
	)
	if err != nil {
		return nil, err
	}

	stateWrites, err := meter.Int64Counter("eventhub.shared_state.writes",
		metric.WithDescription("Number of shared state writes"),
	)
	if err != nil {
		return nil, err
	}

	responseTimeouts, err := meter.Int64Counter("eventhub.response.timeouts",
		metric.WithDescription("Number of response listeners that timed out"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatched:       dispatched,
		listenerCalls:    listenerCalls,
		listenerLatency:  listenerLatency,
		listenerErrors:   listenerErrors,
		stateWrites:      stateWrites,
		responseTimeouts: responseTimeouts,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType, source string) {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("event_source", source),
	))
}

func (m *otelMetrics) RecordListener(ctx context.Context, component string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("component", component))

	m.listenerCalls.Add(ctx, 1, attrs)
	m.listenerLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.listenerErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordSharedState(ctx context.Context, component, kind, status string) {
	m.stateWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *otelMetrics) RecordResponseTimeout(ctx context.Context) {
	m.responseTimeouts.Add(ctx, 1)
}
