// Package observe provides application-wide observability primitives for
// Clarivox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Clarivox metrics.
const meterName = "github.com/clarivox/clarivox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks per-stage correction latency. Use with attributes:
	//   attribute.String("stage", ...), attribute.Bool("applied", ...)
	StageDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end pipeline run latency. Use with
	// attribute: attribute.Bool("learned", ...)
	PipelineDuration metric.Float64Histogram

	// SuggestDuration tracks auto-improve model call latency.
	SuggestDuration metric.Float64Histogram

	// --- Counters ---

	// CacheLookups counts exact-match store lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// RuleActivations counts rewrite rules crossing the activation threshold.
	RuleActivations metric.Int64Counter

	// FeedbackVerdicts counts approve/reject/correct events. Use with attributes:
	//   attribute.String("verdict", ...), attribute.String("tone", ...)
	FeedbackVerdicts metric.Int64Counter

	// Suggestions counts auto-improve responses. Use with attribute:
	//   attribute.String("source", "model"|"fallback"|"manual_required")
	Suggestions metric.Int64Counter

	// --- Error counters ---

	// StageErrors counts stage failures. Use with attribute:
	//   attribute.String("stage", ...)
	StageErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live recording sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for dictation-pipeline latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("clarivox.stage.duration",
		metric.WithDescription("Latency of one correction stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("clarivox.pipeline.duration",
		metric.WithDescription("End-to-end pipeline run latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SuggestDuration, err = m.Float64Histogram("clarivox.suggest.duration",
		metric.WithDescription("Latency of auto-improve model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CacheLookups, err = m.Int64Counter("clarivox.cache.lookups",
		metric.WithDescription("Exact-match store lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.RuleActivations, err = m.Int64Counter("clarivox.rule.activations",
		metric.WithDescription("Rewrite rules crossing the activation threshold."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackVerdicts, err = m.Int64Counter("clarivox.feedback.verdicts",
		metric.WithDescription("User feedback events by verdict and tone mode."),
	); err != nil {
		return nil, err
	}
	if met.Suggestions, err = m.Int64Counter("clarivox.suggestions",
		metric.WithDescription("Auto-improve responses by source."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StageErrors, err = m.Int64Counter("clarivox.stage.errors",
		metric.WithDescription("Correction stage failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("clarivox.active_sessions",
		metric.WithDescription("Number of live recording sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("clarivox.http.request.duration",
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

// RecordStage records one stage execution with its latency in seconds.
func (m *Metrics) RecordStage(ctx context.Context, stage string, applied bool, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.Bool("applied", applied),
		),
	)
}

// RecordCacheLookup records one exact-match lookup outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordVerdict records one feedback event with the standard attribute set.
func (m *Metrics) RecordVerdict(ctx context.Context, verdict, toneMode string) {
	m.FeedbackVerdicts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("verdict", verdict),
			attribute.String("tone", toneMode),
		),
	)
}

// RecordSuggestion records one auto-improve response by source.
func (m *Metrics) RecordSuggestion(ctx context.Context, source string) {
	m.Suggestions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordPipeline records one end-to-end pipeline run.
func (m *Metrics) RecordPipeline(ctx context.Context, seconds float64, learned bool) {
	m.PipelineDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.Bool("learned", learned)),
	)
}

// RecordSuggestLatency records one auto-improve round trip.
func (m *Metrics) RecordSuggestLatency(ctx context.Context, seconds float64) {
	m.SuggestDuration.Record(ctx, seconds)
}

// RecordStageError counts one stage failure.
func (m *Metrics) RecordStageError(ctx context.Context, stage string) {
	m.StageErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordRuleActivation counts one rewrite rule crossing its threshold.
func (m *Metrics) RecordRuleActivation(ctx context.Context) {
	m.RuleActivations.Add(ctx, 1)
}
