package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for the emission console.
type Metrics struct {
	recordMutations     *prometheus.CounterVec
	importFiles         *prometheus.CounterVec
	workflowTransitions *prometheus.CounterVec
	referenceFetches    *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics for telemetry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	recordMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emissiondesk_record_mutations_total",
		Help: "Counts emission record mutations by operation and status.",
	}, []string{"op", "status"})

	importFiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emissiondesk_import_files_total",
		Help: "Counts bulk import attempts by format and outcome.",
	}, []string{"format", "outcome"})

	workflowTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emissiondesk_workflow_transitions_total",
		Help: "Counts workflow controller intents.",
	}, []string{"intent"})

	referenceFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emissiondesk_reference_fetches_total",
		Help: "Counts reference dataset fetches by dataset and status.",
	}, []string{"dataset", "status"})

	reg.MustRegister(recordMutations, importFiles, workflowTransitions, referenceFetches)

	return &Metrics{
		recordMutations:     recordMutations,
		importFiles:         importFiles,
		workflowTransitions: workflowTransitions,
		referenceFetches:    referenceFetches,
	}
}

func (m *Metrics) ObserveRecordMutation(op, status string) {
	if m == nil {
		return
	}
	m.recordMutations.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveImport(format, outcome string) {
	if m == nil {
		return
	}
	m.importFiles.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) ObserveWorkflowIntent(intent string) {
	if m == nil {
		return
	}
	m.workflowTransitions.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveReferenceFetch(dataset, status string) {
	if m == nil {
		return
	}
	m.referenceFetches.WithLabelValues(dataset, status).Inc()
}
