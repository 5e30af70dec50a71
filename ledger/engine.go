/*
engine.go - Balance update engine

PURPOSE:
  Computes the new balance of a party from its current balance and one
  economic event. Pure: no I/O, no clocks, no shared state.

ALGORITHM:
  1. delta = sign(kind) * amount        (ADJUSTMENT: amount is already signed)
  2. next  = current.signed + delta
  3. direction/magnitude are derived from next on demand (Balance.View)

SIGN TABLE:
  SALE         +amount
  PURCHASE     -amount
  PAYMENT_IN   -amount
  PAYMENT_OUT  +amount
  ADJUSTMENT   +amount (signed)

PROPERTIES:
  - Settled iff zero holds for every result, because direction is derived.
  - Exact: decimal addition, amounts limited to CurrencyScale digits.
  - Sequential application sums deltas, so the final signed balance does not
    depend on order. Intermediate directions do.
  - Apply(Apply(b, e), Inverse(e)) == b for every valid e.

SEE ALSO:
  - reversal.go: uses Inverse
  - service.go: the only caller that persists results
*/
package ledger

import "github.com/shopspring/decimal"

// Validate checks the event without applying it.
func (e Event) Validate() error {
	if !e.Kind.IsValid() {
		return ErrInvalidEventKind
	}
	if e.Kind != KindAdjustment && e.Amount.IsNegative() {
		return &InvalidAmountError{Kind: e.Kind, Amount: e.Amount, Reason: "must not be negative"}
	}
	if !e.Amount.Round(CurrencyScale).Equal(e.Amount) {
		return &InvalidAmountError{Kind: e.Kind, Amount: e.Amount, Reason: "too many fractional digits"}
	}
	return nil
}

// Delta returns the signed change this event makes to a balance.
func (e Event) Delta() (decimal.Decimal, error) {
	if err := e.Validate(); err != nil {
		return decimal.Zero, err
	}
	return e.Amount.Mul(decimal.NewFromInt(e.Kind.sign())), nil
}

// Apply returns the balance after applying ev to current.
func Apply(current Balance, ev Event) (Balance, error) {
	delta, err := ev.Delta()
	if err != nil {
		return current, err
	}
	if delta.IsZero() {
		return current, nil
	}
	return current.add(delta), nil
}

// Inverse returns the event that undoes ev.
// It is an ADJUSTMENT carrying the negated delta.
func Inverse(ev Event) (Event, error) {
	delta, err := ev.Delta()
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: KindAdjustment, Amount: delta.Neg()}, nil
}

// ApplyAll folds events over a starting balance, stopping at the first
// invalid event.
func ApplyAll(start Balance, events ...Event) (Balance, error) {
	b := start
	for _, ev := range events {
		var err error
		if b, err = Apply(b, ev); err != nil {
			return start, err
		}
	}
	return b, nil
}
