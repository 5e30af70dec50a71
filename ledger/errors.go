/*
errors.go - Error types for the party ledger

ERROR CATEGORIES:
  1. Input errors     - invalid amount, kind, party or balance view
  2. Lookup errors    - unknown party
  3. Document errors  - reversal/apply state machine violations
  4. Conflict errors  - concurrent modification, duplicate idempotency key,
                        duplicate party identity
  5. Store errors     - persistence failures

Nothing in this package swallows an error. Everything propagates to the
calling business operation, which owns rollback of its own side effects.

USAGE:
  if errors.Is(err, ledger.ErrConcurrentModification) {
      // re-run the whole read-compute-write sequence
  }

SEE ALSO:
  - service.go: retries on ErrConcurrentModification
  - api/handlers.go: maps these to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for a negative amount on a kind that
	// requires a non-negative one, or for excess fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidEventKind is returned for a kind outside the closed set.
	ErrInvalidEventKind = errors.New("invalid event kind")

	// ErrInvalidBalance is returned when a {magnitude, direction} pair
	// breaks the settled-iff-zero invariant.
	ErrInvalidBalance = errors.New("invalid balance")

	// ErrInvalidParty is returned when party identity fields are missing or
	// malformed.
	ErrInvalidParty = errors.New("invalid party")

	// ErrPartyNotFound is returned for an unknown or deactivated party id.
	ErrPartyNotFound = errors.New("party not found")

	// ErrDuplicateParty is returned when another active party of the same
	// merchant already uses the name, phone or email.
	ErrDuplicateParty = errors.New("duplicate party")

	// ErrConcurrentModification is returned when a version check or lock
	// acquisition fails. Retry the whole sequence, never resume.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPersistenceFailure is returned when the underlying store fails.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrDuplicateIdempotencyKey is returned when an event with the same
	// idempotency key has already been applied.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDocumentAlreadyApplied is returned when a document is applied while
	// its previous application has not been reversed.
	ErrDocumentAlreadyApplied = errors.New("document already applied")

	// ErrDocumentNotApplied is returned when reversing a document that was
	// never applied to the party.
	ErrDocumentNotApplied = errors.New("document not applied")

	// ErrAlreadyReversed is returned when reversing a document twice.
	ErrAlreadyReversed = errors.New("document already reversed")

	// ErrDocumentMismatch is returned when a reversal's amount does not
	// match what was applied for the document.
	ErrDocumentMismatch = errors.New("reversal does not match applied document")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError explains why an amount was rejected.
type InvalidAmountError struct {
	Kind   EventKind
	Amount decimal.Decimal
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s for %s: %s", e.Amount, e.Kind, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// PersistenceError wraps a store failure. It matches both
// ErrPersistenceFailure and the underlying driver error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}

// Persistence wraps err as a PersistenceError unless it is nil or already
// one of this package's errors.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if isLedgerError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isLedgerError(err error) bool {
	return IsClientError(err) || IsNotFound(err) || IsConflict(err) ||
		errors.Is(err, ErrPersistenceFailure)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-running the whole operation might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidEventKind) ||
		errors.Is(err, ErrInvalidBalance) ||
		errors.Is(err, ErrInvalidParty) ||
		errors.Is(err, ErrDocumentMismatch)
}

// IsNotFound returns true if the error indicates a missing party or document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPartyNotFound) ||
		errors.Is(err, ErrDocumentNotApplied)
}

// IsConflict returns true if the request clashes with current ledger state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateParty) ||
		errors.Is(err, ErrDocumentAlreadyApplied) ||
		errors.Is(err, ErrAlreadyReversed)
}
