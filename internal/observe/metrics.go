// Package observe provides application-wide observability primitives for
// Voxloop: OpenTelemetry metrics plus the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxloop metrics.
const meterName = "github.com/voxloop/voxloop"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per request phase ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// AgentDuration tracks agent response-generation latency.
	AgentDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// RequestDuration tracks end-to-end utterance-to-playback latency.
	RequestDuration metric.Float64Histogram

	// --- Counters ---

	// Requests counts voice requests. Use with attribute:
	//   attribute.String("status", "completed"|"recovered"|"error")
	Requests metric.Int64Counter

	// ProviderErrors counts collaborator failures. Use with attribute:
	//   attribute.String("phase", "stt"|"agent"|"tts")
	ProviderErrors metric.Int64Counter

	// AdmissionRejects counts session starts rejected at the concurrency
	// ceiling.
	AdmissionRejects metric.Int64Counter

	// FramesDecoded counts decoded inbound frames across all sessions.
	FramesDecoded metric.Int64Counter

	// FramesConcealed counts loss-concealed frames across all sessions.
	FramesConcealed metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
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
	if met.STTDuration, err = m.Float64Histogram("voxloop.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AgentDuration, err = m.Float64Histogram("voxloop.agent.duration",
		metric.WithDescription("Latency of agent response generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("voxloop.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RequestDuration, err = m.Float64Histogram("voxloop.request.duration",
		metric.WithDescription("End-to-end utterance-to-playback latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Requests, err = m.Int64Counter("voxloop.requests",
		metric.WithDescription("Total voice requests by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxloop.provider.errors",
		metric.WithDescription("Collaborator failures by phase."),
	); err != nil {
		return nil, err
	}
	if met.AdmissionRejects, err = m.Int64Counter("voxloop.admission.rejects",
		metric.WithDescription("Session starts rejected at the concurrency ceiling."),
	); err != nil {
		return nil, err
	}
	if met.FramesDecoded, err = m.Int64Counter("voxloop.frames.decoded",
		metric.WithDescription("Decoded inbound frames across all sessions."),
	); err != nil {
		return nil, err
	}
	if met.FramesConcealed, err = m.Int64Counter("voxloop.frames.concealed",
		metric.WithDescription("Loss-concealed frames across all sessions."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxloop.sessions.active",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
