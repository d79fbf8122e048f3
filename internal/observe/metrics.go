// Package observe provides application-wide observability primitives for the
// AI engine: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all engine metrics.
const meterName = "github.com/malangee/ai-engine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SessionDuration tracks wall-clock session length.
	SessionDuration metric.Float64Histogram

	// HintDuration tracks hint-generation latency.
	HintDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// RelayedEvents counts relayed protocol events. Use with attributes:
	//   attribute.String("direction", ...), attribute.String("type", ...)
	RelayedEvents metric.Int64Counter

	// ProtocolErrors counts recovered protocol errors by side
	// ("client" or "upstream").
	ProtocolErrors metric.Int64Counter

	// ReportSaves counts persistence handoffs by status ("ok" or "error").
	ReportSaves metric.Int64Counter

	// ActiveSessions tracks the number of live bridged sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for
// session-scale durations.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800,
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// request-scale latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionDuration, err = m.Float64Histogram("aiengine.session.duration",
		metric.WithDescription("Wall-clock length of bridged sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HintDuration, err = m.Float64Histogram("aiengine.hint.duration",
		metric.WithDescription("Latency of hint generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("aiengine.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.RelayedEvents, err = m.Int64Counter("aiengine.relay.events",
		metric.WithDescription("Relayed protocol events by direction and type."),
	); err != nil {
		return nil, err
	}
	if met.ProtocolErrors, err = m.Int64Counter("aiengine.protocol.errors",
		metric.WithDescription("Recovered protocol errors by side."),
	); err != nil {
		return nil, err
	}
	if met.ReportSaves, err = m.Int64Counter("aiengine.report.saves",
		metric.WithDescription("Session report persistence handoffs by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("aiengine.active_sessions",
		metric.WithDescription("Number of live bridged sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRelayedEvent records one relayed event with the standard attribute set.
func (m *Metrics) RecordRelayedEvent(ctx context.Context, direction, eventType string) {
	m.RelayedEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("type", eventType),
		),
	)
}

// RecordProtocolError records one recovered protocol error for the given side.
func (m *Metrics) RecordProtocolError(ctx context.Context, side string) {
	m.ProtocolErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("side", side)),
	)
}

// RecordReportSave records one persistence handoff outcome.
func (m *Metrics) RecordReportSave(ctx context.Context, status string) {
	m.ReportSaves.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
