// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_command"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted     prometheus.Counter
	SessionsActive      prometheus.Gauge
	SessionsEnded       *prometheus.CounterVec
	SessionsUnsupported prometheus.Counter
	SessionsRejected    prometheus.Counter
	SessionDuration     prometheus.Histogram

	// Matching metrics
	TranscriptsReceived prometheus.Counter
	CommandsDetected    *prometheus.CounterVec
	CommandsSuppressed  *prometheus.CounterVec
	NoMatch             prometheus.Counter
	ActionErrors        *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Recognizer metrics
	RecognizerErrors *prometheus.CounterVec

	// Transport metrics
	GRPCRequests    *prometheus.CounterVec
	GRPCLatency     *prometheus.HistogramVec
	StatusListeners prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recognition sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active recognition sessions",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of recognition sessions ended",
		}, []string{"reason"}),
		SessionsUnsupported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_unsupported_total",
			Help:      "Total number of start attempts without a recognition capability",
		}),
		SessionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rejected_total",
			Help:      "Total number of start attempts rejected because a session was active",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recognition sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		TranscriptsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_received_total",
			Help:      "Total number of transcript events processed",
		}),
		CommandsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_detected_total",
			Help:      "Total number of commands detected and dispatched",
		}, []string{"key"}),
		CommandsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_suppressed_total",
			Help:      "Total number of repeated commands suppressed",
		}, []string{"key"}),
		NoMatch: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_no_match_total",
			Help:      "Total number of transcripts whose last word matched no command",
		}),
		ActionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Total number of command actions that returned an error",
		}, []string{"key"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		RecognizerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_errors_total",
			Help:      "Total number of recognizer errors",
		}, []string{"provider"}),

		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),
		GRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_latency_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
		StatusListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_listeners",
			Help:      "Number of connected status subscribers (WebSocket and gRPC)",
		}),
	}
}

// RecordSessionStart records a new recognition session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending with the given reason (ended, error).
func (m *Metrics) RecordSessionEnd(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordUnsupported records a start attempt without recognition capability.
func (m *Metrics) RecordUnsupported() {
	m.SessionsUnsupported.Inc()
}

// RecordRejected records a re-entrant start attempt.
func (m *Metrics) RecordRejected() {
	m.SessionsRejected.Inc()
}

// RecordTranscript records a processed transcript event.
func (m *Metrics) RecordTranscript() {
	m.TranscriptsReceived.Inc()
}

// RecordCommand records a dispatched command.
func (m *Metrics) RecordCommand(key string) {
	m.CommandsDetected.WithLabelValues(key).Inc()
}

// RecordSuppressed records a debounced repeat of key.
func (m *Metrics) RecordSuppressed(key string) {
	m.CommandsSuppressed.WithLabelValues(key).Inc()
}

// RecordNoMatch records a transcript that matched no command.
func (m *Metrics) RecordNoMatch() {
	m.NoMatch.Inc()
}

// RecordActionError records a failed command action.
func (m *Metrics) RecordActionError(key string) {
	m.ActionErrors.WithLabelValues(key).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRecognizerError records a mid-session recognizer error.
func (m *Metrics) RecordRecognizerError(provider string) {
	m.RecognizerErrors.WithLabelValues(provider).Inc()
}

// RecordGRPC records a completed gRPC call.
func (m *Metrics) RecordGRPC(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}
