package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the sales coach service
type Metrics struct {
	// Audio ingest metrics
	ChunksReceived prometheus.Counter
	BytesReceived  prometheus.Counter
	WindowsFlushed prometheus.Counter
	WindowSize     prometheus.Histogram

	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Analysis cycle metrics
	AnalysisCycles        prometheus.Counter
	AnalysisCycleDuration prometheus.Histogram
	ClassifierErrors      prometheus.Counter
	ItemsCompleted        prometheus.Counter
	ItemsRejected         *prometheus.CounterVec
	StageTransitions      prometheus.Counter
	FieldsPopulated       prometheus.Counter
	FieldsRejected        *prometheus.CounterVec

	// Broadcast metrics
	SnapshotsPublished prometheus.Counter
	CoachSubscribers   prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_audio_chunks_received_total",
			Help: "Total number of audio chunks received over websocket",
		}),
		BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_audio_bytes_received_total",
			Help: "Total audio bytes received over websocket",
		}),
		WindowsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_audio_windows_flushed_total",
			Help: "Total number of buffered audio windows sent to transcription",
		}),
		WindowSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_audio_window_size_bytes",
			Help:    "Size of flushed audio windows in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "coach_active_sessions",
			Help: "Current number of active coaching sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_session_duration_seconds",
			Help:    "Duration of coaching sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(30, 2, 8), // 30s to ~1 hour
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		AnalysisCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_analysis_cycles_total",
			Help: "Total number of analysis cycles run",
		}),
		AnalysisCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_analysis_cycle_duration_seconds",
			Help:    "Duration of full analysis cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		ClassifierErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_classifier_errors_total",
			Help: "Total number of classifier request failures",
		}),
		ItemsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_checklist_items_completed_total",
			Help: "Total number of checklist items marked completed",
		}),
		ItemsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_checklist_items_rejected_total",
			Help: "Total number of checklist completions rejected by a guard",
		}, []string{"reason"}),
		StageTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_stage_transitions_total",
			Help: "Total number of call stage transitions",
		}),
		FieldsPopulated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_client_card_fields_populated_total",
			Help: "Total number of client card fields populated",
		}),
		FieldsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_client_card_fields_rejected_total",
			Help: "Total number of client card extractions rejected by a guard",
		}, []string{"reason"}),

		SnapshotsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coach_snapshots_published_total",
			Help: "Total number of state snapshots published to subscribers",
		}),
		CoachSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "coach_subscribers",
			Help: "Current number of connected coaching UI subscribers",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coach_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordChunkReceived records one ingested audio chunk
func (m *Metrics) RecordChunkReceived(sizeBytes int) {
	m.ChunksReceived.Inc()
	m.BytesReceived.Add(float64(sizeBytes))
}

// RecordWindowFlushed records a buffered window handed to transcription
func (m *Metrics) RecordWindowFlushed(sizeBytes int) {
	m.WindowsFlushed.Inc()
	m.WindowSize.Observe(float64(sizeBytes))
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed increments the sessions destroyed counter and records duration
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordAnalysisCycle records one completed analysis cycle
func (m *Metrics) RecordAnalysisCycle(durationSeconds float64) {
	m.AnalysisCycles.Inc()
	m.AnalysisCycleDuration.Observe(durationSeconds)
}

// RecordClassifierError increments the classifier error counter
func (m *Metrics) RecordClassifierError() {
	m.ClassifierErrors.Inc()
}

// RecordItemCompleted increments the completed items counter
func (m *Metrics) RecordItemCompleted() {
	m.ItemsCompleted.Inc()
}

// RecordItemRejected records a checklist completion rejected by a guard
func (m *Metrics) RecordItemRejected(reason string) {
	m.ItemsRejected.WithLabelValues(reason).Inc()
}

// RecordStageTransition increments the stage transition counter
func (m *Metrics) RecordStageTransition() {
	m.StageTransitions.Inc()
}

// RecordFieldPopulated increments the populated fields counter
func (m *Metrics) RecordFieldPopulated() {
	m.FieldsPopulated.Inc()
}

// RecordFieldRejected records a client card extraction rejected by a guard
func (m *Metrics) RecordFieldRejected(reason string) {
	m.FieldsRejected.WithLabelValues(reason).Inc()
}

// RecordSnapshotPublished increments the published snapshots counter
func (m *Metrics) RecordSnapshotPublished() {
	m.SnapshotsPublished.Inc()
}

// SetCoachSubscribers sets the current subscriber count
func (m *Metrics) SetCoachSubscribers(count int) {
	m.CoachSubscribers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
