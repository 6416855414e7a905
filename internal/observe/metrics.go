// Package observe provides application-wide observability primitives:
// OpenTelemetry metric instruments for the voice pipeline and the SDK
// provider setup with a Prometheus exporter bridge.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/Zeyadelgabbas/speech-speech-ai-assistant"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics holds all OpenTelemetry metric instruments for the assistant. All
// fields are safe for concurrent use — the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// TurnDuration tracks end-to-end turn latency, utterance close to reply.
	TurnDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks a single completion call's latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ToolDuration tracks tool execution latency. Attribute: tool.
	ToolDuration metric.Float64Histogram

	// Tokens counts model tokens. Attribute: direction (prompt/completion).
	Tokens metric.Int64Counter

	// ToolCalls counts tool invocations. Attributes: tool, status.
	ToolCalls metric.Int64Counter

	// TurnErrors counts failed turns. Attribute: stage.
	TurnErrors metric.Int64Counter

	// TruncatedTurns counts turns that hit the dispatch round cap.
	TruncatedTurns metric.Int64Counter

	// DroppedEvents counts analytics events dropped on buffer overflow.
	DroppedEvents metric.Int64Counter
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = m.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	met.TurnDuration = histogram("assistant.turn.duration", "End-to-end turn latency from utterance close to reply.")
	met.STTDuration = histogram("assistant.stt.duration", "Latency of speech-to-text transcription.")
	met.LLMDuration = histogram("assistant.llm.duration", "Latency of a single model completion call.")
	met.TTSDuration = histogram("assistant.tts.duration", "Latency of text-to-speech synthesis.")
	met.ToolDuration = histogram("assistant.tool.duration", "Latency of tool execution by tool name.")

	met.Tokens = counter("assistant.tokens", "Model tokens consumed by direction (prompt/completion).")
	met.ToolCalls = counter("assistant.tool.calls", "Total tool invocations by tool name and status.")
	met.TurnErrors = counter("assistant.turn.errors", "Failed turns by pipeline stage.")
	met.TruncatedTurns = counter("assistant.turn.truncated", "Turns that hit the dispatch round cap.")
	met.DroppedEvents = counter("assistant.analytics.dropped", "Analytics events dropped on buffer overflow.")

	if err != nil {
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
// fails (should not happen with the global provider).
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

// RecordTokens records prompt and completion token usage for one model call.
func (m *Metrics) RecordTokens(ctx context.Context, prompt, completion int) {
	m.Tokens.Add(ctx, int64(prompt),
		metric.WithAttributes(attribute.String("direction", "prompt")))
	m.Tokens.Add(ctx, int64(completion),
		metric.WithAttributes(attribute.String("direction", "completion")))
}

// RecordToolCall records a tool invocation with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordTurnError records a failed turn attributed to a pipeline stage.
func (m *Metrics) RecordTurnError(ctx context.Context, stage string) {
	m.TurnErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)))
}
