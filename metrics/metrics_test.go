package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/party-ledger/ledger"
	"github.com/warp/party-ledger/metrics"
)

// gather flattens reg into "name" or "name/label" keys.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			if len(m.GetLabel()) > 0 {
				key += "/" + m.GetLabel()[0].GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestCollector_CountsLedgerActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	c.EventApplied(ledger.Entry{Kind: ledger.KindSale})
	c.EventApplied(ledger.Entry{Kind: ledger.KindSale})
	c.EventApplied(ledger.Entry{Kind: ledger.KindPaymentIn})
	c.DocumentReversed(ledger.Entry{Kind: ledger.KindPurchase, Reversal: true})
	c.ConflictRetried("p-1", 1)
	c.ConflictRetried("p-1", 2)

	got := gather(t, reg)
	assert.Equal(t, 2.0, got["party_ledger_events_applied_total/SALE"])
	assert.Equal(t, 1.0, got["party_ledger_events_applied_total/PAYMENT_IN"])
	assert.Equal(t, 1.0, got["party_ledger_documents_reversed_total/PURCHASE"])
	assert.Equal(t, 2.0, got["party_ledger_conflict_retries_total"])
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "party_ledger_events_applied_total"))
}

func TestCollector_AuditResults(t *testing.T) {
	// GIVEN: One consistent and one drifting report
	// WHEN: Both are observed and a sweep completes
	// THEN: Each result is counted and the drift gauge shows one party

	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	ok := ledger.AuditReport{PartyID: "p-1"}
	drift := ledger.AuditReport{PartyID: "p-2", Stored: ledger.NewBalance(decimal.NewFromInt(30))}
	c.AuditCompleted(ok)
	c.AuditCompleted(drift)
	c.SweepCompleted([]ledger.AuditReport{ok, drift})

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["party_ledger_audits_total/consistent"])
	assert.Equal(t, 1.0, got["party_ledger_audits_total/drift"])
	assert.Equal(t, 1.0, got["party_ledger_last_audit_drift_parties"])

	c.SweepCompleted([]ledger.AuditReport{ok})
	assert.Zero(t, gather(t, reg)["party_ledger_last_audit_drift_parties"])
}

func TestCollector_Handler_ServesTextFormat(t *testing.T) {
	c := metrics.New(nil)
	c.EventApplied(ledger.Entry{Kind: ledger.KindAdjustment})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `party_ledger_events_applied_total{kind="ADJUSTMENT"} 1`)
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
