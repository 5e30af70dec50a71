/*
ledger.go - Append-only transaction ledger

PURPOSE:
  Records one entry per applied economic event, each carrying the balance
  immediately after the event. The party's stored balance is the fast path;
  the ledger is the history that explains it.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete.
  2. ONE ENTRY PER APPLICATION: appended after the balance write succeeded,
     inside the same store transaction.
  3. ORDERED: Sequence is the application order of a party's entries, so
     BalanceAfter of consecutive entries differs by exactly Delta.

CORRECTIONS:
  A deleted or edited document is never removed from history. The reversal
  coordinator appends a compensating entry (Reversal = true) instead.

  SALE 1000            balance_after  1000 TO_RECEIVE
  SALE 1000 reversal   balance_after     0 SETTLED
  SALE  800            balance_after   800 TO_RECEIVE

DOCUMENT BALANCE:
  DocumentBalance (what is still owed on one sale or purchase) is computed by
  the caller when the entry is recorded and stored as is, so old rows keep
  showing what was true then.

SEE ALSO:
  - store.go: EntryStore
  - reversal.go: compensating entries
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Append-only entry log
// =============================================================================

type Ledger interface {
	// Append validates and persists an entry. This is the ONLY write.
	Append(ctx context.Context, e Entry) (Entry, error)

	// ListByParty returns every entry of a party, most recent first.
	ListByParty(ctx context.Context, partyID PartyID) ([]Entry, error)

	// ListInRange returns entries with TransactionDate in [from, to].
	ListInRange(ctx context.Context, partyID PartyID, from, to time.Time) ([]Entry, error)

	// SumByKinds totals entry amounts of the given kinds.
	SumByKinds(ctx context.Context, partyID PartyID, kinds ...EventKind) (decimal.Decimal, error)

	// Latest returns the most recently applied entry, or nil.
	Latest(ctx context.Context, partyID PartyID) (*Entry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using EntryStore
// =============================================================================

type DefaultLedger struct {
	Store EntryStore
}

func NewLedger(store EntryStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}
	if e.IdempotencyKey != "" {
		exists, err := l.Store.IdempotencyKeyExists(ctx, e.IdempotencyKey)
		if err != nil {
			return Entry{}, err
		}
		if exists {
			return Entry{}, ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendEntry(ctx, e)
}

func (l *DefaultLedger) ListByParty(ctx context.Context, partyID PartyID) ([]Entry, error) {
	return l.Store.ListEntries(ctx, EntryQuery{PartyID: partyID})
}

func (l *DefaultLedger) ListInRange(ctx context.Context, partyID PartyID, from, to time.Time) ([]Entry, error) {
	return l.Store.ListEntries(ctx, EntryQuery{PartyID: partyID, From: &from, To: &to})
}

func (l *DefaultLedger) SumByKinds(ctx context.Context, partyID PartyID, kinds ...EventKind) (decimal.Decimal, error) {
	for _, k := range kinds {
		if !k.IsValid() {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidEventKind, k)
		}
	}
	return l.Store.SumByKinds(ctx, partyID, kinds)
}

func (l *DefaultLedger) Latest(ctx context.Context, partyID PartyID) (*Entry, error) {
	entries, err := l.Store.ListEntries(ctx, EntryQuery{PartyID: partyID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func validateEntry(e Entry) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("entry has no id")
	case e.PartyID == "":
		return fmt.Errorf("entry %s has no party", e.ID)
	case !e.Kind.IsValid():
		return fmt.Errorf("%w: entry %s has kind %q", ErrInvalidEventKind, e.ID, e.Kind)
	case e.Reversal && e.Document.ID != "" && e.ReversesID == "":
		return fmt.Errorf("reversal entry %s does not name the entry it reverses", e.ID)
	}
	return nil
}
