/*
service.go - Party ledger operations for calling services

PURPOSE:
  The in-process entry point used by sales, purchases and payments. Every
  balance change goes through here so that the engine, the party store and
  the ledger stay in step.

WRITE PATH (one application):
  1. lock the party (per-party semaphore, in-process)
  2. begin store transaction
  3. read party (row lock where the store supports it)
  4. Apply(balance, event) -> next
  5. SetBalance(id, version, next)     version CAS
  6. Append entry with BalanceAfter = next
  7. commit, unlock, notify observer

  Any failure in 3-6 rolls the transaction back, so a balance is never
  written without its entry and an entry never exists without its balance.

RETRIES:
  ErrConcurrentModification from the CAS or from a lock timeout re-runs
  steps 1-7 from scratch, up to MaxAttempts. Stale reads are never resumed.

READS:
  GetParty, GetBalance, GetHistory and Summary read committed state without
  taking the party lock.

PARTY LIFECYCLE:
  CreateParty, UpdateParty (identity only) and DeactivateParty (soft delete,
  under the party lock so no write is in flight). A deactivated party is not
  found by any later operation.

SEE ALSO:
  - engine.go: balance arithmetic
  - reversal.go: ReverseDocument, ReplaceDocument
  - audit.go: replay checks
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

const (
	DefaultMaxAttempts = 3
	DefaultLockTimeout = 2 * time.Second
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store       TxStore
	locks       *partyLocks
	log         *zap.Logger
	observer    Observer
	maxAttempts int
	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMaxAttempts bounds how often a conflicting operation is run.
// Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithLockTimeout bounds the wait for a party lock. Zero waits until ctx ends.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.lockTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		locks:       newPartyLocks(),
		log:         zap.NewNop(),
		observer:    nopObserver{},
		maxAttempts: DefaultMaxAttempts,
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// PARTIES
// =============================================================================

// NewParty is the input to CreateParty. OpeningBalance uses the
// presentation form; a zero magnitude with no direction means settled.
type NewParty struct {
	MerchantID     MerchantID
	Name           string
	Phone          string
	Email          string
	Address        string
	GSTNumber      string
	PANNumber      string
	Type           PartyType
	OpeningBalance BalanceView
}

func (s *Service) CreateParty(ctx context.Context, in NewParty) (Party, error) {
	if in.MerchantID == "" {
		return Party{}, fmt.Errorf("%w: merchant is required", ErrInvalidParty)
	}
	if strings.TrimSpace(in.Name) == "" {
		return Party{}, fmt.Errorf("%w: name is required", ErrInvalidParty)
	}
	typ := PartyCustomer
	if in.Type != "" {
		var err error
		if typ, err = ParsePartyType(string(in.Type)); err != nil {
			return Party{}, err
		}
	}

	view := in.OpeningBalance
	if view.Direction == "" && view.Magnitude.IsZero() {
		view.Direction = DirectionSettled
	}
	opening, err := BalanceFromView(view)
	if err != nil {
		return Party{}, err
	}
	if !opening.Magnitude().Round(CurrencyScale).Equal(opening.Magnitude()) {
		return Party{}, &InvalidAmountError{Kind: KindAdjustment, Amount: opening.Magnitude(), Reason: "too many fractional digits"}
	}

	now := s.now().UTC()
	p := Party{
		ID:             PartyID(uuid.NewString()),
		MerchantID:     in.MerchantID,
		Name:           strings.TrimSpace(in.Name),
		Phone:          strings.TrimSpace(in.Phone),
		Email:          strings.TrimSpace(in.Email),
		Address:        in.Address,
		GSTNumber:      in.GSTNumber,
		PANNumber:      in.PANNumber,
		Type:           typ,
		OpeningBalance: opening,
		Balance:        opening,
		Version:        1,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateParty(ctx, p); err != nil {
		return Party{}, err
	}
	s.log.Info("party created",
		zap.String("party_id", string(p.ID)),
		zap.String("merchant_id", string(p.MerchantID)),
		zap.Stringer("opening_balance", p.OpeningBalance))
	return p, nil
}

func (s *Service) GetParty(ctx context.Context, id PartyID) (Party, error) {
	return s.store.GetParty(ctx, id)
}

func (s *Service) ListParties(ctx context.Context, merchantID MerchantID) ([]Party, error) {
	return s.store.ListParties(ctx, merchantID)
}

// SearchParties matches term against name, phone and email, ignoring case.
// A blank term lists every active party of the merchant.
func (s *Service) SearchParties(ctx context.Context, merchantID MerchantID, term string) ([]Party, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.store.ListParties(ctx, merchantID)
	}
	return s.store.SearchParties(ctx, merchantID, term)
}

// PartyUpdate replaces the identity fields of a party. An empty Type keeps
// the current one. Balances are only changed through events.
type PartyUpdate struct {
	Name      string
	Phone     string
	Email     string
	Address   string
	GSTNumber string
	PANNumber string
	Type      PartyType
}

func (s *Service) UpdateParty(ctx context.Context, id PartyID, in PartyUpdate) (Party, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Party{}, fmt.Errorf("%w: name is required", ErrInvalidParty)
	}
	var typ PartyType
	if in.Type != "" {
		var err error
		if typ, err = ParsePartyType(string(in.Type)); err != nil {
			return Party{}, err
		}
	}

	var updated Party
	err := s.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetParty(ctx, id)
		if err != nil {
			return err
		}
		p.Name = name
		p.Phone = strings.TrimSpace(in.Phone)
		p.Email = strings.TrimSpace(in.Email)
		p.Address = in.Address
		p.GSTNumber = in.GSTNumber
		p.PANNumber = in.PANNumber
		if typ != "" {
			p.Type = typ
		}
		p.UpdatedAt = s.now().UTC()
		if err := tx.UpdateParty(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Party{}, err
	}
	s.log.Info("party updated",
		zap.String("party_id", string(updated.ID)),
		zap.String("merchant_id", string(updated.MerchantID)))
	return updated, nil
}

// DeactivateParty soft-deletes a party. Its entries are kept; the party
// disappears from lookups and takes no further events.
func (s *Service) DeactivateParty(ctx context.Context, id PartyID) error {
	err := s.withParties(ctx, "deactivate", []PartyID{id}, func(tx Store) error {
		return tx.DeactivateParty(ctx, id, s.now().UTC())
	})
	if err != nil {
		return err
	}
	s.log.Info("party deactivated", zap.String("party_id", string(id)))
	return nil
}

// =============================================================================
// BALANCE READS
// =============================================================================

func (s *Service) GetBalance(ctx context.Context, id PartyID) (BalanceView, error) {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return BalanceView{}, err
	}
	return p.Balance.View(), nil
}

func (s *Service) SignedBalance(ctx context.Context, id PartyID) (decimal.Decimal, error) {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Balance.Signed(), nil
}

// =============================================================================
// APPLY
// =============================================================================

// ApplyRequest describes one economic event on one party.
type ApplyRequest struct {
	PartyID PartyID
	Kind    EventKind
	Amount  decimal.Decimal

	Document        DocumentRef
	TransactionDate time.Time // defaults to now
	DocumentBalance *decimal.Decimal
	Description     string
	IdempotencyKey  string
}

func (r ApplyRequest) event() Event { return Event{Kind: r.Kind, Amount: r.Amount} }

// ApplyEconomicEvent applies one event and records it. The returned entry
// carries the balance immediately after the event.
func (s *Service) ApplyEconomicEvent(ctx context.Context, req ApplyRequest) (Entry, error) {
	if err := req.event().Validate(); err != nil {
		return Entry{}, err
	}

	var applied Entry
	err := s.withParties(ctx, "apply", []PartyID{req.PartyID}, func(tx Store) error {
		var err error
		applied, err = s.applyTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return Entry{}, err
	}

	s.log.Debug("event applied",
		zap.String("party_id", string(applied.PartyID)),
		zap.String("kind", applied.Kind.String()),
		zap.String("amount", applied.Amount.String()),
		zap.Stringer("balance_after", applied.BalanceAfter))
	s.observer.EventApplied(applied)
	return applied, nil
}

// applyTx runs steps 3-6 of the write path inside an open transaction.
func (s *Service) applyTx(ctx context.Context, tx Store, req ApplyRequest) (Entry, error) {
	party, err := tx.GetParty(ctx, req.PartyID)
	if err != nil {
		return Entry{}, err
	}

	if req.Document.ID != "" {
		status, _, err := documentState(ctx, tx, party.ID, req.Kind, req.Document.ID)
		if err != nil {
			return Entry{}, err
		}
		if status == docApplied {
			return Entry{}, fmt.Errorf("%w: %s %s", ErrDocumentAlreadyApplied, req.Kind, req.Document.ID)
		}
	}

	ev := req.event()
	next, err := Apply(party.Balance, ev)
	if err != nil {
		return Entry{}, err
	}
	delta, _ := ev.Delta()

	now := s.now().UTC()
	if _, err := tx.SetBalance(ctx, party.ID, party.Version, next, now); err != nil {
		return Entry{}, err
	}

	txDate := req.TransactionDate
	if txDate.IsZero() {
		txDate = now
	}
	return NewLedger(tx).Append(ctx, Entry{
		ID:              EntryID(uuid.NewString()),
		MerchantID:      party.MerchantID,
		PartyID:         party.ID,
		Kind:            req.Kind,
		Amount:          req.Amount,
		Delta:           delta,
		BalanceAfter:    next,
		TransactionDate: txDate.UTC(),
		Document:        req.Document,
		DocumentBalance: req.DocumentBalance,
		Description:     req.Description,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
	})
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryQuery selects entries of one party. Zero fields do not filter.
type HistoryQuery struct {
	PartyID PartyID
	From    *time.Time
	To      *time.Time
	Kinds   []EventKind
	Limit   int
}

// GetHistory returns entries most recent first.
func (s *Service) GetHistory(ctx context.Context, q HistoryQuery) ([]Entry, error) {
	for _, k := range q.Kinds {
		if !k.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEventKind, k)
		}
	}
	if _, err := s.store.GetParty(ctx, q.PartyID); err != nil {
		return nil, err
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return []Entry{}, nil
	}
	return s.store.ListEntries(ctx, EntryQuery{
		PartyID: q.PartyID,
		From:    q.From,
		To:      q.To,
		Kinds:   q.Kinds,
		Limit:   q.Limit,
	})
}

// PartySummary totals what a party has been billed and paid.
type PartySummary struct {
	PartyID     PartyID
	TotalCredit decimal.Decimal // SALE + PAYMENT_IN
	TotalDebit  decimal.Decimal // PURCHASE + PAYMENT_OUT
	Balance     Balance
	Latest      *Entry
}

func (s *Service) Summary(ctx context.Context, id PartyID) (PartySummary, error) {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return PartySummary{}, err
	}
	l := NewLedger(s.store)
	credit, err := l.SumByKinds(ctx, id, CreditKinds...)
	if err != nil {
		return PartySummary{}, err
	}
	debit, err := l.SumByKinds(ctx, id, DebitKinds...)
	if err != nil {
		return PartySummary{}, err
	}
	latest, err := l.Latest(ctx, id)
	if err != nil {
		return PartySummary{}, err
	}
	return PartySummary{
		PartyID:     id,
		TotalCredit: credit,
		TotalDebit:  debit,
		Balance:     p.Balance,
		Latest:      latest,
	}, nil
}

// =============================================================================
// LOCKING + RETRY
// =============================================================================

// withParties runs fn in a store transaction while holding the locks of
// every party in ids, re-running it on ErrConcurrentModification.
func (s *Service) withParties(ctx context.Context, op string, ids []PartyID, fn func(Store) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runLocked(ctx, ids, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= s.maxAttempts {
			s.log.Warn("giving up after conflicts",
				zap.String("op", op),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return err
		}
		s.log.Warn("conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		for _, id := range uniqueSorted(ids) {
			s.observer.ConflictRetried(id, attempt)
		}
	}
}

func (s *Service) runLocked(ctx context.Context, ids []PartyID, fn func(Store) error) error {
	release, err := s.locks.acquire(ctx, s.lockTimeout, ids...)
	if err != nil {
		return err
	}
	defer release()
	return s.store.WithTx(ctx, fn)
}
