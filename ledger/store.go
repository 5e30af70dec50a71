/*
store.go - Persistence interfaces for parties and entries

PURPOSE:
  Defines the boundary between ledger logic and the database. The ledger
  never talks SQL; it talks to these interfaces.

KEY INTERFACES:
  PartyStore: party identity + signed balance, guarded by a version number
  EntryStore: append-only ledger entries
  Store:      both of the above
  TxStore:    Store with atomic multi-write transactions

APPEND-ONLY CONTRACT:
  EntryStore has AppendEntry and reads. There is no update or delete.
  Corrections are compensating entries (see reversal.go).

ONE MUTATOR:
  SetBalance is the only way a party balance changes. It compares the
  caller's expected version with the stored one and fails with
  ErrConcurrentModification on mismatch, so a stale read can never be
  written back.

SOFT DELETE:
  Parties are never removed. DeactivateParty hides a party from GetParty,
  ListParties and SearchParties; its entries stay for audit.

UNIQUENESS:
  Among the active parties of one merchant, name, phone and email are
  unique. CreateParty and UpdateParty return ErrDuplicateParty otherwise.
  Empty phone and email are not compared.

ATOMICITY:
  The service writes the balance and appends the entry inside one WithTx
  call. If either fails, neither is committed.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory for tests and the demo server
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL with row locks

SEE ALSO:
  - service.go: the only writer
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARTY STORE
// =============================================================================

type PartyStore interface {
	// CreateParty persists a new active party with Version 1.
	CreateParty(ctx context.Context, p Party) error

	// GetParty returns ErrPartyNotFound for unknown or inactive ids. Inside
	// WithTx, implementations lock the row until the transaction ends where
	// the database supports it.
	GetParty(ctx context.Context, id PartyID) (Party, error)

	// ListParties returns the active parties of a merchant, or of every
	// merchant when merchantID is empty, ordered by name.
	ListParties(ctx context.Context, merchantID MerchantID) ([]Party, error)

	// SearchParties returns the active parties of a merchant whose name,
	// phone or email contains term, ignoring case, ordered by name.
	SearchParties(ctx context.Context, merchantID MerchantID, term string) ([]Party, error)

	// UpdateParty rewrites the identity fields of an active party (name,
	// phone, email, address, GST, PAN, type) and UpdatedAt. Balance and
	// Version are left alone.
	UpdateParty(ctx context.Context, p Party) error

	// DeactivateParty marks an active party inactive.
	DeactivateParty(ctx context.Context, id PartyID, at time.Time) error

	// SetBalance writes a new balance if the stored version equals
	// expectedVersion and returns the new version.
	SetBalance(ctx context.Context, id PartyID, expectedVersion int64, balance Balance, at time.Time) (int64, error)
}

// =============================================================================
// ENTRY STORE - Append-only
// =============================================================================

// EntryQuery filters entries of one party. Zero fields do not filter.
type EntryQuery struct {
	PartyID PartyID
	From    *time.Time // inclusive, on TransactionDate
	To      *time.Time // inclusive, on TransactionDate
	Kinds   []EventKind
	Limit   int
}

type EntryStore interface {
	// AppendEntry persists an entry and returns it with Sequence assigned.
	// Returns ErrDuplicateIdempotencyKey if the key is taken.
	AppendEntry(ctx context.Context, e Entry) (Entry, error)

	// ListEntries returns matching entries, most recent application first.
	ListEntries(ctx context.Context, q EntryQuery) ([]Entry, error)

	// DocumentEntries returns the entries of one document on one party in
	// application order.
	DocumentEntries(ctx context.Context, partyID PartyID, kind EventKind, documentID string) ([]Entry, error)

	// SumByKinds adds up entry amounts of the given kinds. Reversal entries
	// subtract their amount.
	SumByKinds(ctx context.Context, partyID PartyID, kinds []EventKind) (decimal.Decimal, error)

	// IdempotencyKeyExists reports whether an entry already uses key.
	IdempotencyKeyExists(ctx context.Context, key string) (bool, error)
}

type Store interface {
	PartyStore
	EntryStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, every write made through the given Store is
	// rolled back. Otherwise the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
