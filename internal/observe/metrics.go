// Package observe provides application-wide observability primitives for the
// Omi pipeline: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/k00jax/omi"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// DecodeDuration tracks packet decode latency.
	DecodeDuration metric.Float64Histogram

	// DispatchDuration tracks action dispatch latency, including command
	// launch and memory writes.
	DispatchDuration metric.Float64Histogram

	// MemoryWriteDuration tracks memory backend write latency.
	MemoryWriteDuration metric.Float64Histogram

	// --- Counters ---

	// FramesDecoded counts decoded audio frames. Use with attribute:
	//   attribute.String("mode", ...) ("native" or "fallback")
	FramesDecoded metric.Int64Counter

	// FramesDropped counts frames dropped at the queue boundary.
	FramesDropped metric.Int64Counter

	// Transcripts counts transcripts received from the STT stream. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("final", ...)
	Transcripts metric.Int64Counter

	// DispatchOutcomes counts dispatch results. Use with attribute:
	//   attribute.String("outcome", ...)
	DispatchOutcomes metric.Int64Counter

	// MemoryWrites counts memory write attempts. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	MemoryWrites metric.Int64Counter

	// STTReconnects counts stream (re)connection attempts. Use with
	// attribute:
	//   attribute.String("status", ...)
	STTReconnects metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of frames waiting in the frame queue.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DecodeDuration, err = m.Float64Histogram("omi.decode.duration",
		metric.WithDescription("Latency of audio packet decoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("omi.dispatch.duration",
		metric.WithDescription("Latency of action dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MemoryWriteDuration, err = m.Float64Histogram("omi.memory.write.duration",
		metric.WithDescription("Latency of memory backend writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesDecoded, err = m.Int64Counter("omi.frames.decoded",
		metric.WithDescription("Total decoded audio frames by codec mode."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("omi.frames.dropped",
		metric.WithDescription("Total frames dropped because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("omi.transcripts",
		metric.WithDescription("Total transcripts received by provider and finality."),
	); err != nil {
		return nil, err
	}
	if met.DispatchOutcomes, err = m.Int64Counter("omi.dispatch.outcomes",
		metric.WithDescription("Total dispatch results by outcome kind."),
	); err != nil {
		return nil, err
	}
	if met.MemoryWrites, err = m.Int64Counter("omi.memory.writes",
		metric.WithDescription("Total memory write attempts by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.STTReconnects, err = m.Int64Counter("omi.stt.reconnects",
		metric.WithDescription("Total STT stream connection attempts by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("omi.queue.depth",
		metric.WithDescription("Number of frames waiting in the frame queue."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("omi.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordFrameDecoded records a decoded frame with its codec mode.
func (m *Metrics) RecordFrameDecoded(ctx context.Context, mode string) {
	m.FramesDecoded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// RecordTranscript records a received transcript with the standard
// attribute set.
func (m *Metrics) RecordTranscript(ctx context.Context, provider string, final bool) {
	finality := "interim"
	if final {
		finality = "final"
	}
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("final", finality),
		),
	)
}

// RecordDispatchOutcome records a dispatch result counter increment.
func (m *Metrics) RecordDispatchOutcome(ctx context.Context, outcome string) {
	m.DispatchOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordMemoryWrite records a memory write attempt with the standard
// attribute set.
func (m *Metrics) RecordMemoryWrite(ctx context.Context, backend, status string) {
	m.MemoryWrites.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// RecordSTTReconnect records a stream connection attempt by status.
func (m *Metrics) RecordSTTReconnect(ctx context.Context, status string) {
	m.STTReconnects.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
