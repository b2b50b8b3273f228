// Package observe holds Sooshi's telemetry: OpenTelemetry instruments, spans,
// request-scoped logging and the HTTP middleware that ties them together.
//
// Instruments are created from any [metric.MeterProvider] with [NewMetrics];
// tests pass an SDK provider with a manual reader. [InitProvider] installs the
// global providers and the Prometheus bridge used in production.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by Sooshi.
type Metrics struct {
	// ProviderDuration is the latency of one backend call, labelled with
	// provider, capability and status.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts backend calls by provider, capability and
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed backend calls by provider and error kind.
	ProviderErrors metric.Int64Counter

	// StageDuration is the latency of one voice conversation stage.
	StageDuration metric.Float64Histogram

	// ConversationDuration is the end-to-end latency of a voice conversation.
	ConversationDuration metric.Float64Histogram

	// Conversations counts finished voice conversations by status and the
	// stage that failed, if any.
	Conversations metric.Int64Counter

	// ActiveConversations is the number of voice conversations in flight.
	ActiveConversations metric.Int64UpDownCounter

	// ExtractionFallbacks counts extractions answered with the default
	// profile, by age group.
	ExtractionFallbacks metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by breaker
	// and target state.
	BreakerTransitions metric.Int64Counter

	// HTTPRequestDuration is the API latency by route and status class.
	HTTPRequestDuration metric.Float64Histogram
}

// Local generation on CPU can take minutes.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// builder collects instrument creation errors so NewMetrics can report them
// all at once.
type builder struct {
	meter metric.Meter
	errs  []error
}

func (b *builder) histogram(name, desc string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &builder{meter: mp.Meter(scope)}
	m := &Metrics{
		ProviderDuration: b.histogram("sooshi.provider.duration",
			"Latency of one AI backend call.", latencyBuckets),
		ProviderRequests: b.counter("sooshi.provider.requests",
			"AI backend calls by provider, capability and status."),
		ProviderErrors: b.counter("sooshi.provider.errors",
			"Failed AI backend calls by provider and error kind."),
		StageDuration: b.histogram("sooshi.conversation.stage.duration",
			"Latency of one voice conversation stage.", latencyBuckets),
		ConversationDuration: b.histogram("sooshi.conversation.duration",
			"End-to-end latency of a voice conversation.", latencyBuckets),
		Conversations: b.counter("sooshi.conversations",
			"Voice conversations by status and failing stage."),
		ExtractionFallbacks: b.counter("sooshi.persona.extraction_fallbacks",
			"Profile extractions answered with the default profile."),
		BreakerTransitions: b.counter("sooshi.resilience.breaker_transitions",
			"Circuit breaker state changes by breaker and target state."),
		HTTPRequestDuration: b.histogram("sooshi.http.request.duration",
			"API request latency by route and status class.", nil),
	}
	var err error
	m.ActiveConversations, err = b.meter.Int64UpDownCounter("sooshi.active_conversations",
		metric.WithDescription("Voice conversations in flight."))
	b.errs = append(b.errs, err)

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments on the global meter provider, created
// on first use. Call it after [InitProvider] so they are exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderCall records the latency and outcome of one backend call.
// errKind is empty for a successful call.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, capability, errKind string, elapsed time.Duration) {
	status := "ok"
	if errKind != "" {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", errKind),
		))
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("capability", capability),
		attribute.String("status", status),
	)
	m.ProviderDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.ProviderRequests.Add(ctx, 1, attrs)
}

// RecordStage records the latency of one conversation stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.StageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordConversation records the outcome of one voice conversation. stage is
// empty for successful conversations.
func (m *Metrics) RecordConversation(ctx context.Context, status, stage string) {
	m.Conversations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("stage", stage),
	))
}

// RecordExtractionFallback records one default-profile substitution.
func (m *Metrics) RecordExtractionFallback(ctx context.Context, ageGroup string) {
	m.ExtractionFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("age_group", ageGroup)))
}

// RecordBreakerTransition records a circuit breaker entering state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("to", to),
	))
}
