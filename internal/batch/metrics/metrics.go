// Package metrics exposes Prometheus instrumentation for the custody core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters the batch service increments. A nil *Metrics
// is safe to call, so tests can skip registration entirely.
type Metrics struct {
	BatchesCreated    prometheus.Counter
	StagesAppended    prometheus.Counter
	CustodyTransfers  prometheus.Counter
	BatchesFinalized  prometheus.Counter
	CASConflicts      prometheus.Counter
	LedgerCommitFails prometheus.Counter
}

// New creates and registers all batch metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		BatchesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_batches_created_total",
			Help: "Total number of batches created.",
		}),
		StagesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_stages_appended_total",
			Help: "Total number of stage records appended.",
		}),
		CustodyTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_custody_transfers_total",
			Help: "Total number of successful custody transfers.",
		}),
		BatchesFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_batches_finalized_total",
			Help: "Total number of batches finalized.",
		}),
		CASConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_batch_cas_conflicts_total",
			Help: "Total number of lost per-batch version races.",
		}),
		LedgerCommitFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_ledger_commit_failures_total",
			Help: "Total number of failed durable-ledger commits.",
		}),
	}
}

func (m *Metrics) IncBatchesCreated() {
	if m != nil {
		m.BatchesCreated.Inc()
	}
}

func (m *Metrics) IncStagesAppended() {
	if m != nil {
		m.StagesAppended.Inc()
	}
}

func (m *Metrics) IncCustodyTransfers() {
	if m != nil {
		m.CustodyTransfers.Inc()
	}
}

func (m *Metrics) IncBatchesFinalized() {
	if m != nil {
		m.BatchesFinalized.Inc()
	}
}

func (m *Metrics) IncCASConflicts() {
	if m != nil {
		m.CASConflicts.Inc()
	}
}

func (m *Metrics) IncLedgerCommitFails() {
	if m != nil {
		m.LedgerCommitFails.Inc()
	}
}
