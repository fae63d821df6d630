// Package observe provides application-wide observability primitives for
// interviewpilot: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the /metrics endpoint. Tests should use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/interviewpilot"

// Drop reasons recorded by [Metrics.RecordDrop].
const (
	DropStaleDequeue = "stale_dequeue"
	DropStaleEmit    = "stale_emit"
	DropShortAnswer  = "short_answer"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// AdapterDuration tracks remote call latency as seen by the pipeline,
	// timeouts included. Attributes: adapter, status.
	AdapterDuration metric.Float64Histogram

	// ProviderDuration tracks raw provider latency. Attributes: provider, kind.
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts utterances flushed by the aggregator.
	Utterances metric.Int64Counter

	// Results counts results delivered to the sink.
	Results metric.Int64Counter

	// Drops counts tasks and results discarded by the pipeline. Attribute: reason.
	Drops metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// Listening is 1 while audio is forwarded to the recognizer.
	Listening metric.Int64UpDownCounter

	// FeedClients tracks connected result feed websocket clients.
	FeedClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// translation and LLM round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 7, 10, 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AdapterDuration, err = m.Float64Histogram("interviewpilot.adapter.duration",
		metric.WithDescription("Latency of translation and answer calls including timeouts."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("interviewpilot.provider.duration",
		metric.WithDescription("Latency of provider API calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("interviewpilot.utterances",
		metric.WithDescription("Total utterances flushed by the aggregator."),
	); err != nil {
		return nil, err
	}
	if met.Results, err = m.Int64Counter("interviewpilot.results",
		metric.WithDescription("Total results delivered to the sink."),
	); err != nil {
		return nil, err
	}
	if met.Drops, err = m.Int64Counter("interviewpilot.drops",
		metric.WithDescription("Total tasks or results discarded by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("interviewpilot.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("interviewpilot.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.Listening, err = m.Int64UpDownCounter("interviewpilot.listening",
		metric.WithDescription("1 while audio is forwarded to the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.FeedClients, err = m.Int64UpDownCounter("interviewpilot.feed.clients",
		metric.WithDescription("Number of connected result feed clients."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("interviewpilot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAdapterCall records one pipeline adapter call.
func (m *Metrics) RecordAdapterCall(ctx context.Context, adapter, status string, d time.Duration) {
	m.AdapterDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(Attr("adapter", adapter), Attr("status", status)),
	)
}

// RecordUtterance increments the utterance counter.
func (m *Metrics) RecordUtterance(ctx context.Context) {
	m.Utterances.Add(ctx, 1)
}

// RecordResult increments the delivered result counter.
func (m *Metrics) RecordResult(ctx context.Context) {
	m.Results.Add(ctx, 1)
}

// RecordDrop increments the drop counter for reason.
func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.Drops.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordProviderRequest records a provider request with its outcome and
// latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, d time.Duration) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
			Attr("status", status),
		),
	)
	m.ProviderDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)),
	)
}

// SetListening adjusts the listening gauge by the change from was to now.
func (m *Metrics) SetListening(ctx context.Context, was, now bool) {
	switch {
	case !was && now:
		m.Listening.Add(ctx, 1)
	case was && !now:
		m.Listening.Add(ctx, -1)
	}
}
