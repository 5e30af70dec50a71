/*
Package ledger provides the party balance ledger.

PURPOSE:
  Keeps one running balance per counterparty (customer or supplier) of a
  merchant, consistent across sales, purchases, payments received, payments
  made and manual adjustments. Every applied event leaves an immutable entry
  recording the balance immediately after it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance: a single signed decimal; positive means the party owes the merchant
  - BalanceView: the {magnitude, direction} presentation of a Balance
  - EventKind / Event: what happened and by how much
  - Party: identity plus ledger state
  - Entry: immutable record of one applied event

SIGN CONVENTION:
  signed > 0  => TO_RECEIVE (party owes merchant)
  signed < 0  => TO_PAY     (merchant owes party)
  signed == 0 => SETTLED

DESIGN PRINCIPLES:
  1. One number: all update logic works on the signed balance. Direction is
     derived, never stored as independent state.
  2. Precision: decimal.Decimal, never float64.
  3. Closed enums: kinds, directions and party types are validated at the
     boundary with Parse* functions.
  4. Auditability: entries are never modified, only compensated.

SEE ALSO:
  - engine.go: the balance update function
  - ledger.go: append-only entry log
  - reversal.go: undoing a recorded document
  - service.go: operations exposed to calling services
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of fractional digits an amount may carry.
const CurrencyScale int32 = 2

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PartyID string
type MerchantID string
type EntryID string

// =============================================================================
// DIRECTION - Who owes whom
// =============================================================================

type Direction string

const (
	DirectionToPay     Direction = "TO_PAY"     // merchant owes the party
	DirectionToReceive Direction = "TO_RECEIVE" // party owes the merchant
	DirectionSettled   Direction = "SETTLED"    // nobody owes anything
)

// ParseDirection validates a direction received from outside the package.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case DirectionToPay, DirectionToReceive, DirectionSettled:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidBalance, s)
}

// =============================================================================
// BALANCE - Signed running balance
// =============================================================================

// Balance is the signed running balance of a party.
// The zero value is a settled balance.
type Balance struct {
	signed decimal.Decimal
}

// BalanceView is the presentation form of a Balance.
// Invariant: Direction == DirectionSettled iff Magnitude is zero.
type BalanceView struct {
	Magnitude decimal.Decimal
	Direction Direction
}

func NewBalance(signed decimal.Decimal) Balance { return Balance{signed: signed} }

// BalanceFromView converts a {magnitude, direction} pair into a Balance.
// Pairs that break the view invariant are rejected.
func BalanceFromView(v BalanceView) (Balance, error) {
	if v.Magnitude.IsNegative() {
		return Balance{}, fmt.Errorf("%w: negative magnitude %s", ErrInvalidBalance, v.Magnitude)
	}
	switch v.Direction {
	case DirectionToReceive:
		if v.Magnitude.IsZero() {
			return Balance{}, fmt.Errorf("%w: %s with zero magnitude", ErrInvalidBalance, v.Direction)
		}
		return Balance{signed: v.Magnitude}, nil
	case DirectionToPay:
		if v.Magnitude.IsZero() {
			return Balance{}, fmt.Errorf("%w: %s with zero magnitude", ErrInvalidBalance, v.Direction)
		}
		return Balance{signed: v.Magnitude.Neg()}, nil
	case DirectionSettled:
		if !v.Magnitude.IsZero() {
			return Balance{}, fmt.Errorf("%w: settled balance with magnitude %s", ErrInvalidBalance, v.Magnitude)
		}
		return Balance{}, nil
	}
	return Balance{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidBalance, v.Direction)
}

func (b Balance) Signed() decimal.Decimal { return b.signed }
func (b Balance) Magnitude() decimal.Decimal { return b.signed.Abs() }
func (b Balance) IsSettled() bool { return b.signed.IsZero() }
func (b Balance) Equal(o Balance) bool { return b.signed.Equal(o.signed) }
func (b Balance) add(delta decimal.Decimal) Balance { return Balance{signed: b.signed.Add(delta)} }

func (b Balance) Direction() Direction {
	switch b.signed.Sign() {
	case 1:
		return DirectionToReceive
	case -1:
		return DirectionToPay
	default:
		return DirectionSettled
	}
}

func (b Balance) View() BalanceView {
	return BalanceView{Magnitude: b.Magnitude(), Direction: b.Direction()}
}

func (b Balance) String() string {
	return fmt.Sprintf("%s %s", b.Magnitude().StringFixed(CurrencyScale), b.Direction())
}

// =============================================================================
// EVENTS - Economic events that move a balance
// =============================================================================

type EventKind string

const (
	KindSale       EventKind = "SALE"        // merchant delivered value: +amount
	KindPurchase   EventKind = "PURCHASE"    // party delivered value: -amount
	KindPaymentIn  EventKind = "PAYMENT_IN"  // party paid merchant: -amount
	KindPaymentOut EventKind = "PAYMENT_OUT" // merchant paid party: +amount
	KindAdjustment EventKind = "ADJUSTMENT"  // manual correction, amount already signed
)

// AllKinds lists every event kind in a stable order.
var AllKinds = []EventKind{KindSale, KindPurchase, KindPaymentIn, KindPaymentOut, KindAdjustment}

// CreditKinds and DebitKinds group entries for party summaries.
var (
	CreditKinds = []EventKind{KindSale, KindPaymentIn}
	DebitKinds  = []EventKind{KindPurchase, KindPaymentOut}
)

// ParseEventKind validates a kind received from outside the package.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
	}
	return k, nil
}

func (k EventKind) IsValid() bool {
	switch k {
	case KindSale, KindPurchase, KindPaymentIn, KindPaymentOut, KindAdjustment:
		return true
	}
	return false
}

// sign is the direction an event of this kind moves the signed balance.
func (k EventKind) sign() int64 {
	switch k {
	case KindSale, KindPaymentOut, KindAdjustment:
		return 1
	case KindPurchase, KindPaymentIn:
		return -1
	}
	return 0
}

func (k EventKind) String() string { return string(k) }

// Event is a tagged economic value applied to a party balance.
type Event struct {
	Kind   EventKind
	Amount decimal.Decimal
}

// =============================================================================
// PARTY - Counterparty identity and ledger state
// =============================================================================

type PartyType string

const (
	PartyCustomer PartyType = "CUSTOMER"
	PartySupplier PartyType = "SUPPLIER"
	PartyBoth     PartyType = "BOTH"
)

func ParsePartyType(s string) (PartyType, error) {
	switch t := PartyType(strings.ToUpper(strings.TrimSpace(s))); t {
	case PartyCustomer, PartySupplier, PartyBoth:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown party type %q", ErrInvalidParty, s)
}

type Party struct {
	ID         PartyID
	MerchantID MerchantID
	Name       string
	Phone      string
	Email      string
	Address    string
	GSTNumber  string
	PANNumber  string
	Type       PartyType

	OpeningBalance Balance
	Balance        Balance

	// Version increments on every balance write; SetBalance compares it.
	Version int64

	// Active is false once the party is deactivated. Inactive parties keep
	// their entries but are invisible to lookups and take no new events.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// ENTRY - Immutable record of one applied event
// =============================================================================

// DocumentRef links an entry to the sale, purchase or payment that produced it.
type DocumentRef struct {
	ID     string
	Number string // human-facing invoice/bill/receipt number
}

func (d DocumentRef) IsZero() bool { return d.ID == "" && d.Number == "" }

type Entry struct {
	ID         EntryID
	Sequence   int64 // application order, assigned by the store
	MerchantID MerchantID
	PartyID    PartyID

	Kind   EventKind
	Amount decimal.Decimal
	Delta  decimal.Decimal // signed effect on the balance

	BalanceAfter    Balance
	TransactionDate time.Time

	Document DocumentRef
	// DocumentBalance is what is still outstanding on the linked document
	// when this entry was recorded. Stored, never recomputed.
	DocumentBalance *decimal.Decimal
	Description     string

	Reversal   bool
	ReversesID EntryID

	IdempotencyKey string
	CreatedAt      time.Time
}

// BalanceBefore is the balance the entry was applied to.
func (e Entry) BalanceBefore() Balance {
	return NewBalance(e.BalanceAfter.Signed().Sub(e.Delta))
}
