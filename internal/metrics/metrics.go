// Package metrics holds the Prometheus collectors for the analysis service.
// All collectors are created through promauto against an injectable registry
// so tests can run with an isolated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the service exposes.
type Metrics struct {
	AssessmentsTotal   prometheus.Counter
	AssessmentErrors   prometheus.Counter
	AssessmentDuration prometheus.Histogram
	BatchStudents      prometheus.Histogram

	ClassifierPredictions prometheus.Counter
	ClassifierFailures    prometheus.Counter
	ClassifierTimeouts    prometheus.Counter
	ClassifierLatency     prometheus.Histogram
	ClassifierConfidence  prometheus.Histogram
	FallbackUse           prometheus.Counter
	ModelAccuracy         prometheus.Gauge

	CaptureEventsReceived prometheus.Counter
	IngestErrors          prometheus.Counter
	FaceServiceCalls      prometheus.Counter
	FaceServiceFailures   prometheus.Counter
	StreamReconnects      prometheus.Counter

	ErrorsTotal *prometheus.CounterVec
}

// New creates the metrics against the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the metrics against the given registerer.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AssessmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_assessments_total",
			Help: "Completed risk assessments",
		}),
		AssessmentErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_assessment_errors_total",
			Help: "Assessments that failed with a computation error",
		}),
		AssessmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_assessment_duration_seconds",
			Help:    "Wall time of a single student assessment",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BatchStudents: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_batch_students",
			Help:    "Students per class-wide assessment batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ClassifierPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_predictions_total",
			Help: "Successful classifier predictions",
		}),
		ClassifierFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_failures_total",
			Help: "Classifier invocations that returned an error",
		}),
		ClassifierTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_timeouts_total",
			Help: "Classifier invocations killed by the inference timeout",
		}),
		ClassifierLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_latency_seconds",
			Help:    "Classifier inference latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		ClassifierConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_confidence",
			Help:    "Winning-label probability per prediction",
			Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),
		FallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_fallback_total",
			Help: "Predictions served by the heuristic fallback classifier",
		}),
		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classifier_model_accuracy",
			Help: "Test accuracy reported by the loaded model manifest",
		}),
		CaptureEventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_events_received_total",
			Help: "Face-capture events received from the recognition stream",
		}),
		IngestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_ingest_errors_total",
			Help: "Capture events dropped due to parse or storage errors",
		}),
		FaceServiceCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "face_service_calls_total",
			Help: "REST calls to the face-recognition service",
		}),
		FaceServiceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "face_service_failures_total",
			Help: "Failed REST calls to the face-recognition service",
		}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "face_stream_reconnects_total",
			Help: "Reconnect attempts on the capture websocket stream",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_errors_total",
			Help: "Errors by component",
		}, []string{"component"}),
	}
}
