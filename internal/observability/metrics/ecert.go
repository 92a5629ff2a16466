package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeProcessed = "processed"
	OutcomeBlocked   = "blocked"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// ECertMetrics counts calculation outcomes per intensity.
type ECertMetrics struct {
	disbursements *prometheus.CounterVec
	blocked       *prometheus.CounterVec
	studentTime   *prometheus.HistogramVec
}

var (
	ecertMetricsOnce sync.Once
	ecertMetrics     *ECertMetrics
)

func ECert() *ECertMetrics {
	return ECertWithConfig(Config{})
}

func ECertWithConfig(cfg Config) *ECertMetrics {
	ecertMetricsOnce.Do(func() {
		ecertMetrics = newECertMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ecertMetrics
}

// ResetECertMetricsForTest resets the E-Cert metrics singleton for tests.
func ResetECertMetricsForTest() {
	ecertMetricsOnce = sync.Once{}
	ecertMetrics = nil
}

func newECertMetrics(registerer prometheus.Registerer, cfg Config) *ECertMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	disbursements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_ecert_disbursements_total",
		Help:        "Disbursements run through the E-Cert calculation by outcome.",
		ConstLabels: labels,
	}, []string{"intensity", "outcome"})
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_ecert_blocked_total",
		Help:        "Disbursements stopped by a calculation step.",
		ConstLabels: labels,
	}, []string{"intensity", "step"})
	studentTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "sims_ecert_student_duration_seconds",
		Help:        "Time spent calculating all eligible disbursements of one student.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: labels,
	}, []string{"intensity"})

	registerer.MustRegister(disbursements, blocked, studentTime)
	return &ECertMetrics{disbursements: disbursements, blocked: blocked, studentTime: studentTime}
}

func (m *ECertMetrics) IncDisbursement(intensity, outcome string) {
	if m == nil {
		return
	}
	m.disbursements.WithLabelValues(intensity, outcome).Inc()
}

func (m *ECertMetrics) IncBlocked(intensity, step string) {
	if m == nil {
		return
	}
	m.blocked.WithLabelValues(intensity, step).Inc()
}

func (m *ECertMetrics) ObserveStudent(intensity string, seconds float64) {
	if m == nil {
		return
	}
	m.studentTime.WithLabelValues(intensity).Observe(seconds)
}
