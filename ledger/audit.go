package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditReport compares a party's stored balance with the balance obtained by
// replaying its entries from the opening balance.
type AuditReport struct {
	PartyID  PartyID
	Stored   Balance
	Replayed Balance
	Entries  int

	// BrokenChain lists entries whose BalanceAfter does not follow from the
	// previous entry, or whose Delta does not match their kind and amount.
	BrokenChain []EntryID
}

func (r AuditReport) Consistent() bool {
	return r.Stored.Equal(r.Replayed) && len(r.BrokenChain) == 0
}

// Drift is stored minus replayed.
func (r AuditReport) Drift() decimal.Decimal {
	return r.Stored.Signed().Sub(r.Replayed.Signed())
}

// Audit replays one party under its lock so that the balance and entries
// come from the same committed state.
func (s *Service) Audit(ctx context.Context, id PartyID) (AuditReport, error) {
	var report AuditReport
	err := s.runLocked(ctx, []PartyID{id}, func(tx Store) error {
		var err error
		report, err = auditParty(ctx, tx, id)
		return err
	})
	if err != nil {
		return AuditReport{}, err
	}

	if !report.Consistent() {
		s.log.Warn("balance drift detected",
			zap.String("party_id", string(id)),
			zap.Stringer("stored", report.Stored),
			zap.Stringer("replayed", report.Replayed),
			zap.Int("broken_entries", len(report.BrokenChain)))
	}
	s.observer.AuditCompleted(report)
	return report, nil
}

// AuditAll audits every party of a merchant, or every party when merchantID
// is empty.
func (s *Service) AuditAll(ctx context.Context, merchantID MerchantID) ([]AuditReport, error) {
	parties, err := s.store.ListParties(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	reports := make([]AuditReport, 0, len(parties))
	for _, p := range parties {
		r, err := s.Audit(ctx, p.ID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func auditParty(ctx context.Context, st Store, id PartyID) (AuditReport, error) {
	party, err := st.GetParty(ctx, id)
	if err != nil {
		return AuditReport{}, err
	}
	entries, err := st.ListEntries(ctx, EntryQuery{PartyID: id})
	if err != nil {
		return AuditReport{}, err
	}

	r := AuditReport{PartyID: id, Stored: party.Balance, Entries: len(entries)}
	b := party.OpeningBalance
	// entries come most recent first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.BalanceBefore().Equal(b) || !e.Delta.Equal(expectedDelta(e)) {
			r.BrokenChain = append(r.BrokenChain, e.ID)
		}
		b = b.add(e.Delta)
	}
	r.Replayed = b
	return r, nil
}

func expectedDelta(e Entry) decimal.Decimal {
	d := e.Amount.Mul(decimal.NewFromInt(e.Kind.sign()))
	if e.Reversal {
		return d.Neg()
	}
	return d
}
