/*
Package metrics exports ledger activity to Prometheus.

Collector implements ledger.Observer, so wiring it into the service is
enough:

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := ledger.NewService(store, ledger.WithObserver(m))
	http.Handle("/metrics", m.Handler())

METRICS:
  party_ledger_events_applied_total{kind}
  party_ledger_documents_reversed_total{kind}
  party_ledger_conflict_retries_total
  party_ledger_audits_total{result}      result = consistent | drift
  party_ledger_last_audit_drift_parties  parties with drift in the last sweep
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/party-ledger/ledger"
)

const namespace = "party_ledger"

type Collector struct {
	gatherer prometheus.Gatherer

	eventsApplied     *prometheus.CounterVec
	documentsReversed *prometheus.CounterVec
	conflictRetries   prometheus.Counter
	audits            *prometheus.CounterVec
	driftParties      prometheus.Gauge
}

var _ ledger.Observer = (*Collector)(nil)

// New registers the ledger metrics on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		gatherer: reg,
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Economic events applied to party balances.",
		}, []string{"kind"}),
		documentsReversed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_reversed_total",
			Help:      "Compensating entries appended for edited or deleted documents.",
		}, []string{"kind"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Operations re-run after a concurrent modification.",
		}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audits_total",
			Help:      "Party audits by result.",
		}, []string{"result"}),
		driftParties: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_audit_drift_parties",
			Help:      "Parties whose stored balance disagreed with replay in the last audit sweep.",
		}),
	}
	reg.MustRegister(c.eventsApplied, c.documentsReversed, c.conflictRetries, c.audits, c.driftParties)
	return c
}

func (c *Collector) EventApplied(e ledger.Entry) {
	c.eventsApplied.WithLabelValues(e.Kind.String()).Inc()
}

func (c *Collector) DocumentReversed(e ledger.Entry) {
	c.documentsReversed.WithLabelValues(e.Kind.String()).Inc()
}

func (c *Collector) ConflictRetried(ledger.PartyID, int) {
	c.conflictRetries.Inc()
}

func (c *Collector) AuditCompleted(r ledger.AuditReport) {
	result := "consistent"
	if !r.Consistent() {
		result = "drift"
	}
	c.audits.WithLabelValues(result).Inc()
}

// SweepCompleted records how many parties drifted in one audit sweep.
func (c *Collector) SweepCompleted(reports []ledger.AuditReport) {
	n := 0
	for _, r := range reports {
		if !r.Consistent() {
			n++
		}
	}
	c.driftParties.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
