/*
reversal.go - Undoing recorded documents

PURPOSE:
  A sale, purchase or payment that is edited or deleted after it was applied
  must take its effect back out of the party balance. The coordinator applies
  the inverse event and appends a compensating entry. Nothing is deleted.

DOCUMENT STATE (per party, kind, document id):

  NONE --apply--> APPLIED --reverse--> REVERSED --apply--> APPLIED ...

  reverse in NONE      -> ErrDocumentNotApplied
  reverse in REVERSED  -> ErrAlreadyReversed
  apply   in APPLIED   -> ErrDocumentAlreadyApplied
  reverse with another amount than the applied one -> ErrDocumentMismatch

  The state is derived from the document's entries: the last one decides.
  A reversal without a document id is a plain compensating entry and does
  not touch the state machine.

EDITS:
  ReplaceDocument is REVERSED then APPLIED in one store transaction. If the
  reversal fails the new values are never applied; if the new application
  fails the reversal is rolled back too. The party balance is left exactly
  as it was before the call.

SEE ALSO:
  - engine.go: Inverse
  - service.go: applyTx
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// DOCUMENT STATE
// =============================================================================

type docStatus int

const (
	docNone docStatus = iota
	docApplied
	docReversed
)

func (s docStatus) String() string {
	switch s {
	case docApplied:
		return "APPLIED"
	case docReversed:
		return "REVERSED"
	default:
		return "NONE"
	}
}

// documentState derives the lifecycle state of a document on a party and
// returns the entry currently in effect when it is APPLIED.
func documentState(ctx context.Context, s EntryStore, partyID PartyID, kind EventKind, documentID string) (docStatus, *Entry, error) {
	entries, err := s.DocumentEntries(ctx, partyID, kind, documentID)
	if err != nil {
		return docNone, nil, err
	}
	if len(entries) == 0 {
		return docNone, nil, nil
	}
	last := entries[len(entries)-1]
	if last.Reversal {
		return docReversed, nil, nil
	}
	return docApplied, &last, nil
}

// =============================================================================
// REVERSE
// =============================================================================

// ReverseRequest names what was applied and must now be taken back.
type ReverseRequest struct {
	PartyID         PartyID
	Kind            EventKind
	Amount          decimal.Decimal
	Document        DocumentRef
	TransactionDate time.Time // defaults to now
	Description     string    // defaults to "Reversed <kind>"
}

func (r ReverseRequest) event() Event { return Event{Kind: r.Kind, Amount: r.Amount} }

// ReverseDocument applies the inverse of a previously applied event and
// appends a compensating entry. The entry keeps the original kind and amount;
// its Delta is the negated original delta.
func (s *Service) ReverseDocument(ctx context.Context, req ReverseRequest) (Entry, error) {
	if err := req.event().Validate(); err != nil {
		return Entry{}, err
	}

	var reversal Entry
	err := s.withParties(ctx, "reverse", []PartyID{req.PartyID}, func(tx Store) error {
		var err error
		reversal, err = s.reverseTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return Entry{}, err
	}

	s.logReversal(reversal)
	s.observer.DocumentReversed(reversal)
	return reversal, nil
}

func (s *Service) reverseTx(ctx context.Context, tx Store, req ReverseRequest) (Entry, error) {
	party, err := tx.GetParty(ctx, req.PartyID)
	if err != nil {
		return Entry{}, err
	}

	var reverses EntryID
	if req.Document.ID != "" {
		status, applied, err := documentState(ctx, tx, party.ID, req.Kind, req.Document.ID)
		if err != nil {
			return Entry{}, err
		}
		switch status {
		case docNone:
			return Entry{}, fmt.Errorf("%w: %s %s", ErrDocumentNotApplied, req.Kind, req.Document.ID)
		case docReversed:
			return Entry{}, fmt.Errorf("%w: %s %s", ErrAlreadyReversed, req.Kind, req.Document.ID)
		}
		if !applied.Amount.Equal(req.Amount) {
			return Entry{}, fmt.Errorf("%w: %s %s applied with %s, reversing %s",
				ErrDocumentMismatch, req.Kind, req.Document.ID, applied.Amount, req.Amount)
		}
		reverses = applied.ID
		if req.Document.Number == "" {
			req.Document.Number = applied.Document.Number
		}
	}

	inverse, err := Inverse(req.event())
	if err != nil {
		return Entry{}, err
	}
	next, err := Apply(party.Balance, inverse)
	if err != nil {
		return Entry{}, err
	}

	now := s.now().UTC()
	if _, err := tx.SetBalance(ctx, party.ID, party.Version, next, now); err != nil {
		return Entry{}, err
	}

	txDate := req.TransactionDate
	if txDate.IsZero() {
		txDate = now
	}
	desc := req.Description
	if desc == "" {
		desc = reversalDescription(req.Kind)
	}
	return NewLedger(tx).Append(ctx, Entry{
		ID:              EntryID(uuid.NewString()),
		MerchantID:      party.MerchantID,
		PartyID:         party.ID,
		Kind:            req.Kind,
		Amount:          req.Amount,
		Delta:           inverse.Amount,
		BalanceAfter:    next,
		TransactionDate: txDate.UTC(),
		Document:        req.Document,
		Description:     desc,
		Reversal:        true,
		ReversesID:      reverses,
		CreatedAt:       now,
	})
}

// reversalDescription renders "Reversed Sale", "Reversed Payment In", ...
func reversalDescription(k EventKind) string {
	words := strings.Split(strings.ToLower(string(k)), "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "Reversed " + strings.Join(words, " ")
}

// =============================================================================
// REPLACE (edit)
// =============================================================================

// ReplaceRequest edits a document: Original is reversed, then Replacement is
// applied. A Replacement without a document takes the Original's, and one
// for the same document without a number keeps the applied number.
type ReplaceRequest struct {
	Original    ReverseRequest
	Replacement ApplyRequest
}

func (s *Service) ReplaceDocument(ctx context.Context, req ReplaceRequest) (Entry, Entry, error) {
	if err := req.Original.event().Validate(); err != nil {
		return Entry{}, Entry{}, err
	}
	if err := req.Replacement.event().Validate(); err != nil {
		return Entry{}, Entry{}, err
	}
	if req.Replacement.Document.IsZero() {
		req.Replacement.Document = req.Original.Document
	}

	var reversal, applied Entry
	ids := []PartyID{req.Original.PartyID, req.Replacement.PartyID}
	err := s.withParties(ctx, "replace", ids, func(tx Store) error {
		var err error
		if reversal, err = s.reverseTx(ctx, tx, req.Original); err != nil {
			return err
		}
		rep := req.Replacement
		if rep.Document.Number == "" && rep.Document.ID == reversal.Document.ID {
			rep.Document.Number = reversal.Document.Number
		}
		applied, err = s.applyTx(ctx, tx, rep)
		return err
	})
	if err != nil {
		return Entry{}, Entry{}, err
	}

	s.logReversal(reversal)
	s.observer.DocumentReversed(reversal)
	s.observer.EventApplied(applied)
	return reversal, applied, nil
}

func (s *Service) logReversal(e Entry) {
	s.log.Debug("document reversed",
		zap.String("party_id", string(e.PartyID)),
		zap.String("kind", e.Kind.String()),
		zap.String("document_id", e.Document.ID),
		zap.String("amount", e.Amount.String()),
		zap.Stringer("balance_after", e.BalanceAfter))
}
