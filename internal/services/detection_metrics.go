package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics holds the detection engine's Prometheus collectors.
// A nil *DetectionMetrics is valid and records nothing.
type DetectionMetrics struct {
	Anomalies     *prometheus.CounterVec
	CheckErrors   *prometheus.CounterVec
	GateDecisions *prometheus.CounterVec
}

// NewDetectionMetrics constructs the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Already registered collectors are reused.
func NewDetectionMetrics(reg prometheus.Registerer) (*DetectionMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	anomalies, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "detection",
		Name:      "anomalies_total",
		Help:      "Login anomalies detected, partitioned by check and severity.",
	}, []string{"check", "severity"})
	if err != nil {
		return nil, err
	}

	checkErrors, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "detection",
		Name:      "check_errors_total",
		Help:      "Detector checks that failed open, partitioned by check.",
	}, []string{"check"})
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "detection",
		Name:      "gate_decisions_total",
		Help:      "Security gate outcomes, partitioned by decision.",
	}, []string{"decision"})
	if err != nil {
		return nil, err
	}

	return &DetectionMetrics{
		Anomalies:     anomalies,
		CheckErrors:   checkErrors,
		GateDecisions: decisions,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

func (m *DetectionMetrics) observeAnomaly(check, severity string) {
	if m == nil {
		return
	}
	m.Anomalies.WithLabelValues(check, severity).Inc()
}

func (m *DetectionMetrics) observeCheckError(check string) {
	if m == nil {
		return
	}
	m.CheckErrors.WithLabelValues(check).Inc()
}

func (m *DetectionMetrics) observeDecision(decision Decision) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(string(decision)).Inc()
}
