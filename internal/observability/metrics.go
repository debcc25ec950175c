// Package observability provides Prometheus metrics for the transcription
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded on chunks_dropped_total.
const (
	DropReasonVAD         = "vad"
	DropReasonFingerprint = "fingerprint"
	DropReasonCalibration = "calibration"
	DropReasonInference   = "inference-error"
	DropReasonDecode      = "decode-error"
	DropReasonSaturation  = "queue-saturation"
)

// Metrics holds all pipeline metrics registered on a single registry.
type Metrics struct {
	registry *prometheus.Registry

	ChunksProcessed    prometheus.Counter
	ChunksDropped      *prometheus.CounterVec
	WordsEmitted       prometheus.Counter
	RecordsBroadcast   prometheus.Counter
	BroadcastDropped   prometheus.Counter
	FilteredByEvent    prometheus.Counter
	DuplicateSuppressed prometheus.Counter
	EncoderErrors      prometheus.Counter
	ConsecutiveErrors  prometheus.Gauge
	NoiseFloor         prometheus.Gauge
	InferenceDuration  prometheus.Histogram
	DecodeDuration     prometheus.Histogram
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.ChunksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_chunks_processed_total",
		Help: "Total number of audio chunks run through the inference pipeline",
	})
	m.ChunksDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensestream_chunks_dropped_total",
		Help: "Total number of audio chunks dropped before emission, by reason",
	}, []string{"reason"})
	m.WordsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_words_emitted_total",
		Help: "Total number of words appended to the global timeline",
	})
	m.RecordsBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_records_broadcast_total",
		Help: "Total number of transcription records handed to the broadcast sink",
	})
	m.BroadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_broadcast_dropped_total",
		Help: "Total number of records dropped by the best-effort broadcast sink",
	})
	m.FilteredByEvent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_filtered_by_event_total",
		Help: "Total number of chunks suppressed by audio event filters",
	})
	m.DuplicateSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_duplicates_suppressed_total",
		Help: "Total number of emissions suppressed by the text duplicate suppressor",
	})
	m.EncoderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensestream_encoder_errors_total",
		Help: "Total number of per-chunk encoder inference errors",
	})
	m.ConsecutiveErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensestream_encoder_consecutive_errors",
		Help: "Current run of consecutive encoder inference errors",
	})
	m.NoiseFloor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensestream_noise_floor_rms",
		Help: "Current adaptive noise floor RMS estimate",
	})
	m.InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensestream_inference_duration_seconds",
		Help:    "Encoder inference latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.DecodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensestream_decode_duration_seconds",
		Help:    "CTC decode latency",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	collectors := []prometheus.Collector{
		m.ChunksProcessed, m.ChunksDropped, m.WordsEmitted,
		m.RecordsBroadcast, m.BroadcastDropped, m.FilteredByEvent,
		m.DuplicateSuppressed, m.EncoderErrors, m.ConsecutiveErrors,
		m.NoiseFloor, m.InferenceDuration, m.DecodeDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the backing registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDrop increments the drop counter for the given reason.
func (m *Metrics) RecordDrop(reason string) {
	m.ChunksDropped.WithLabelValues(reason).Inc()
}
