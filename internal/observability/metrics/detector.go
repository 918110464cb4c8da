package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics tracks model loading and inference.
type DetectorMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	InferenceErrors   *prometheus.CounterVec
	MalformedOutputs  *prometheus.CounterVec
	DetectionsByClass *prometheus.CounterVec
	ModelLoadedGauge  prometheus.Gauge
	ModelLoadDuration prometheus.Gauge
}

// NewDetectorMetrics creates and registers detector collectors.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ppe_inference_duration_seconds",
			Help:    "Time taken to run detection on one frame",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"model"},
	)
	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_inference_total",
			Help: "Total number of inference requests",
		},
		[]string{"model", "status"},
	)
	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_inference_errors_total",
			Help: "Total number of inference errors",
		},
		[]string{"model", "error_type"},
	)
	m.MalformedOutputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_inference_malformed_outputs_total",
			Help: "Model outputs that could not be parsed and were treated as empty",
		},
		[]string{"model"},
	)
	m.DetectionsByClass = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_detections_total",
			Help: "Total detections partitioned by class name",
		},
		[]string{"class"},
	)
	m.ModelLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ppe_model_loaded",
		Help: "Whether the detection model is loaded (1) or not (0)",
	})
	m.ModelLoadDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ppe_model_load_duration_seconds",
		Help: "Time taken by the most recent model load",
	})
}

// RecordInference records one detector call.
func (m *DetectorMetrics) RecordInference(model string, durationSeconds float64, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(model, statusError).Inc()
		m.InferenceErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(model, statusSuccess).Inc()
	m.InferenceDuration.WithLabelValues(model).Observe(durationSeconds)
}

func (m *DetectorMetrics) RecordMalformedOutput(model string) {
	m.MalformedOutputs.WithLabelValues(model).Inc()
}

func (m *DetectorMetrics) RecordDetection(className string) {
	m.DetectionsByClass.WithLabelValues(className).Inc()
}

// RecordModelLoad sets the loaded gauge and load time.
func (m *DetectorMetrics) RecordModelLoad(durationSeconds float64, err error) {
	if err != nil {
		m.ModelLoadedGauge.Set(0)
		return
	}
	m.ModelLoadedGauge.Set(1)
	m.ModelLoadDuration.Set(durationSeconds)
}

func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tensor"):
		return "tensor_error"
	case strings.Contains(msg, "invoke"):
		return "invoke_error"
	case strings.Contains(msg, "context"):
		return "cancelled"
	case strings.Contains(msg, "decode"):
		return "decode_error"
	}
	return "unknown"
}

func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.MalformedOutputs.Describe(ch)
	m.DetectionsByClass.Describe(ch)
	ch <- m.ModelLoadedGauge.Desc()
	ch <- m.ModelLoadDuration.Desc()
}

func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.MalformedOutputs.Collect(ch)
	m.DetectionsByClass.Collect(ch)
	ch <- m.ModelLoadedGauge
	ch <- m.ModelLoadDuration
}
