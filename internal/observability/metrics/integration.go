package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	FileOutcomeProcessed = "processed"
	FileOutcomeFailed    = "failed"
	FileOutcomeUploaded  = "uploaded"
)

// IntegrationMetrics tracks file exchange with the partners.
type IntegrationMetrics struct {
	files          *prometheus.CounterVec
	envelopeErrors *prometheus.CounterVec
	recordsSkipped *prometheus.CounterVec
	records        *prometheus.CounterVec
}

var (
	integrationMetricsOnce sync.Once
	integrationMetrics     *IntegrationMetrics
)

func Integration() *IntegrationMetrics {
	return IntegrationWithConfig(Config{})
}

func IntegrationWithConfig(cfg Config) *IntegrationMetrics {
	integrationMetricsOnce.Do(func() {
		integrationMetrics = newIntegrationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return integrationMetrics
}

// ResetIntegrationMetricsForTest resets the integration metrics singleton for tests.
func ResetIntegrationMetricsForTest() {
	integrationMetricsOnce = sync.Once{}
	integrationMetrics = nil
}

func newIntegrationMetrics(registerer prometheus.Registerer, cfg Config) *IntegrationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	files := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_integration_files_total",
		Help:        "Files exchanged per integration by outcome.",
		ConstLabels: labels,
	}, []string{"integration", "outcome"})
	envelopeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_integration_envelope_errors_total",
		Help:        "Inbound files rejected by header, footer, count or checksum validation.",
		ConstLabels: labels,
	}, []string{"integration", "kind"})
	recordsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_integration_records_skipped_total",
		Help:        "Detail records skipped because a field failed validation.",
		ConstLabels: labels,
	}, []string{"integration"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sims_integration_records_total",
		Help:        "Detail records written or read.",
		ConstLabels: labels,
	}, []string{"integration"})

	registerer.MustRegister(files, envelopeErrors, recordsSkipped, records)
	return &IntegrationMetrics{
		files:          files,
		envelopeErrors: envelopeErrors,
		recordsSkipped: recordsSkipped,
		records:        records,
	}
}

func (m *IntegrationMetrics) IncFile(integration, outcome string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(integration, outcome).Inc()
}

func (m *IntegrationMetrics) IncEnvelopeError(integration, kind string) {
	if m == nil {
		return
	}
	m.envelopeErrors.WithLabelValues(integration, kind).Inc()
}

func (m *IntegrationMetrics) AddRecordsSkipped(integration string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsSkipped.WithLabelValues(integration).Add(float64(count))
}

func (m *IntegrationMetrics) AddRecords(integration string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(integration).Add(float64(count))
}
