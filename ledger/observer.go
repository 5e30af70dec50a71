package ledger

//go:generate mockgen -source=observer.go -destination=observer_mock.go -package=ledger

// Observer receives notifications after ledger state changes are committed.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	// EventApplied is called once per committed forward entry.
	EventApplied(e Entry)

	// DocumentReversed is called once per committed compensating entry.
	DocumentReversed(e Entry)

	// ConflictRetried is called before the service re-runs an operation
	// that failed with ErrConcurrentModification.
	ConflictRetried(partyID PartyID, attempt int)

	// AuditCompleted is called for every party audit.
	AuditCompleted(r AuditReport)
}

type nopObserver struct{}

func (nopObserver) EventApplied(Entry) {}
func (nopObserver) DocumentReversed(Entry) {}
func (nopObserver) ConflictRetried(PartyID, int) {}
func (nopObserver) AuditCompleted(AuditReport) {}
