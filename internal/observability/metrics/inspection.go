package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// InspectionMetrics tracks compliance outcomes and the side effects of each
// inspection (persistence, MQTT publish, alerts).
type InspectionMetrics struct {
	InspectionsTotal *prometheus.CounterVec
	LastScore        *prometheus.GaugeVec
	LastWorkers      *prometheus.GaugeVec
	FlagsTotal       *prometheus.CounterVec
	SinkOperations   *prometheus.CounterVec
}

// NewInspectionMetrics creates and registers inspection collectors.
func NewInspectionMetrics(registry *prometheus.Registry) (*InspectionMetrics, error) {
	m := &InspectionMetrics{
		InspectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppe_inspections_total",
			Help: "Inspected frames partitioned by source and compliance state",
		}, []string{"source", "state"}),
		LastScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ppe_compliance_score",
			Help: "Compliance score of the most recent frame per source",
		}, []string{"source"}),
		LastWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ppe_workers_detected",
			Help: "Workers detected in the most recent frame per source",
		}, []string{"source"}),
		FlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppe_noncompliance_flags_total",
			Help: "Missing PPE flags partitioned by item",
		}, []string{"item"}),
		SinkOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppe_sink_operations_total",
			Help: "Persistence, publish and alert operations by sink and status",
		}, []string{"sink", "status"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register inspection metrics: %w", err)
	}
	return m, nil
}

// RecordInspection records the outcome of one frame.
func (m *InspectionMetrics) RecordInspection(source, state string, score, workers, noHardhat, noVest, noGloves int) {
	m.InspectionsTotal.WithLabelValues(source, state).Inc()
	m.LastScore.WithLabelValues(source).Set(float64(score))
	m.LastWorkers.WithLabelValues(source).Set(float64(workers))
	m.FlagsTotal.WithLabelValues("hardhat").Add(float64(noHardhat))
	m.FlagsTotal.WithLabelValues("vest").Add(float64(noVest))
	m.FlagsTotal.WithLabelValues("gloves").Add(float64(noGloves))
}

// RecordSink records one side-effect operation.
func (m *InspectionMetrics) RecordSink(sink string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.SinkOperations.WithLabelValues(sink, status).Inc()
}

func (m *InspectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InspectionsTotal.Describe(ch)
	m.LastScore.Describe(ch)
	m.LastWorkers.Describe(ch)
	m.FlagsTotal.Describe(ch)
	m.SinkOperations.Describe(ch)
}

func (m *InspectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InspectionsTotal.Collect(ch)
	m.LastScore.Collect(ch)
	m.LastWorkers.Collect(ch)
	m.FlagsTotal.Collect(ch)
	m.SinkOperations.Collect(ch)
}
