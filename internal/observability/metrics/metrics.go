// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_practice"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamDuration prometheus.Histogram

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	PlaybackFrames      prometheus.Counter
	PlaybackDropped     prometheus.Counter

	// Turn-taking metrics
	SpeechSegments prometheus.Counter
	TurnsCompleted prometheus.Counter
	TurnsRejected  *prometheus.CounterVec
	ReplyLatency   prometheus.Histogram

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Assessment metrics
	AssessmentsCompleted prometheus.Counter
	AssessmentsFailed    *prometheus.CounterVec
	AssessmentLatency    prometheus.Histogram

	// Feedback metrics
	FeedbackDelivered *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Adapter error metrics
	AdapterErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of media streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active media streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of completed media streams",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total inbound audio payload bytes",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total inbound media frames",
		}),
		PlaybackFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_frames_total",
			Help:      "Total outbound synthesized media frames",
		}),
		PlaybackDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_dropped_total",
			Help:      "Playback requests dropped because playback was already active",
		}),
		SpeechSegments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_segments_total",
			Help:      "Voice-activity speech segments detected",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Conversation turns completed (reply played back)",
		}),
		TurnsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_rejected_total",
			Help:      "Conversation turns rejected before generation",
		}, []string{"reason"}),
		ReplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_seconds",
			Help:      "Latency from speech end to playback start",
			Buckets:   prometheus.DefBuckets,
		}),
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total final transcripts received",
		}),
		AssessmentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_completed_total",
			Help:      "Pronunciation assessments completed",
		}),
		AssessmentsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_failed_total",
			Help:      "Pronunciation assessments failed",
		}, []string{"reason"}),
		AssessmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_latency_seconds",
			Help:      "Latency of one pronunciation assessment round trip",
			Buckets:   prometheus.DefBuckets,
		}),
		FeedbackDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_delivered_total",
			Help:      "Coaching feedback deliveries by mechanism",
		}, []string{"via"}),
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Kafka publish attempts",
		}, []string{"topic"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Kafka publish failures",
		}, []string{"topic"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		AdapterErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_errors_total",
			Help:      "External capability errors by adapter",
		}, []string{"adapter"}),
	}
}

// RecordStreamStart increments stream counters.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd decrements the active gauge and observes duration.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordAudioReceived records one inbound media frame.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioFramesReceived.Inc()
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordTranscript records a partial or final transcript.
func (m *Metrics) RecordTranscript(isFinal bool) {
	if isFinal {
		m.TranscriptsFinal.Inc()
	} else {
		m.TranscriptsPartial.Inc()
	}
}

// RecordAssessment records one assessment outcome.
func (m *Metrics) RecordAssessment(err error, latencySeconds float64) {
	if err != nil {
		m.AssessmentsFailed.WithLabelValues("provider").Inc()
		return
	}
	m.AssessmentsCompleted.Inc()
	m.AssessmentLatency.Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}

// RecordAdapterError records an external capability failure.
func (m *Metrics) RecordAdapterError(adapter string) {
	m.AdapterErrors.WithLabelValues(adapter).Inc()
}
