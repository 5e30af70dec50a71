// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/party-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	parties     map[ledger.PartyID]ledger.Party
	entries     map[ledger.PartyID][]ledger.Entry // application order
	idempotency map[string]bool
	seq         int64
}

func NewMemory() *Memory {
	return &Memory{
		parties:     make(map[ledger.PartyID]ledger.Party),
		entries:     make(map[ledger.PartyID][]ledger.Entry),
		idempotency: make(map[string]bool),
	}
}

func (m *Memory) CreateParty(_ context.Context, p ledger.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPartyLocked(p)
}

func (m *Memory) GetParty(_ context.Context, id ledger.PartyID) (ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPartyLocked(id)
}

func (m *Memory) ListParties(_ context.Context, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPartiesLocked(merchantID), nil
}

func (m *Memory) SearchParties(_ context.Context, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchPartiesLocked(merchantID, term), nil
}

func (m *Memory) UpdateParty(_ context.Context, p ledger.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePartyLocked(p)
}

func (m *Memory) DeactivateParty(_ context.Context, id ledger.PartyID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivatePartyLocked(id, at)
}

func (m *Memory) SetBalance(_ context.Context, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBalanceLocked(id, expectedVersion, b, at)
}

// AppendEntry adds a single entry. Append-only.
func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *Memory) ListEntries(_ context.Context, q ledger.EntryQuery) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(q), nil
}

func (m *Memory) DocumentEntries(_ context.Context, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documentEntriesLocked(partyID, kind, documentID), nil
}

func (m *Memory) SumByKinds(_ context.Context, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumLocked(partyID, kinds), nil
}

func (m *Memory) IdempotencyKeyExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[key], nil
}

// =============================================================================
// LOCKED HELPERS - caller holds mu
// =============================================================================

func (m *Memory) createPartyLocked(p ledger.Party) error {
	if _, ok := m.parties[p.ID]; ok {
		return fmt.Errorf("%w: party %s already exists", ledger.ErrInvalidParty, p.ID)
	}
	if err := m.checkUniqueLocked(p); err != nil {
		return err
	}
	if p.Version == 0 {
		p.Version = 1
	}
	p.Active = true
	m.parties[p.ID] = p
	return nil
}

func (m *Memory) getPartyLocked(id ledger.PartyID) (ledger.Party, error) {
	p, ok := m.parties[id]
	if !ok || !p.Active {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	return p, nil
}

func (m *Memory) listPartiesLocked(merchantID ledger.MerchantID) []ledger.Party {
	return m.filterPartiesLocked(func(p ledger.Party) bool {
		return merchantID == "" || p.MerchantID == merchantID
	})
}

func (m *Memory) searchPartiesLocked(merchantID ledger.MerchantID, term string) []ledger.Party {
	term = strings.ToLower(term)
	return m.filterPartiesLocked(func(p ledger.Party) bool {
		if merchantID != "" && p.MerchantID != merchantID {
			return false
		}
		return strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Phone), term) ||
			strings.Contains(strings.ToLower(p.Email), term)
	})
}

// filterPartiesLocked returns the active parties keep accepts, by name.
func (m *Memory) filterPartiesLocked(keep func(ledger.Party) bool) []ledger.Party {
	result := make([]ledger.Party, 0, len(m.parties))
	for _, p := range m.parties {
		if p.Active && keep(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) updatePartyLocked(u ledger.Party) error {
	p, err := m.getPartyLocked(u.ID)
	if err != nil {
		return err
	}
	u.MerchantID = p.MerchantID
	if err := m.checkUniqueLocked(u); err != nil {
		return err
	}
	p.Name = u.Name
	p.Phone = u.Phone
	p.Email = u.Email
	p.Address = u.Address
	p.GSTNumber = u.GSTNumber
	p.PANNumber = u.PANNumber
	p.Type = u.Type
	p.UpdatedAt = u.UpdatedAt
	m.parties[p.ID] = p
	return nil
}

func (m *Memory) deactivatePartyLocked(id ledger.PartyID, at time.Time) error {
	p, err := m.getPartyLocked(id)
	if err != nil {
		return err
	}
	p.Active = false
	p.UpdatedAt = at
	m.parties[id] = p
	return nil
}

// checkUniqueLocked rejects p when another active party of its merchant
// has the same name, phone or email.
func (m *Memory) checkUniqueLocked(p ledger.Party) error {
	for _, o := range m.parties {
		if o.ID == p.ID || !o.Active || o.MerchantID != p.MerchantID {
			continue
		}
		switch {
		case o.Name == p.Name:
			return fmt.Errorf("%w: name %q is taken", ledger.ErrDuplicateParty, p.Name)
		case p.Phone != "" && o.Phone == p.Phone:
			return fmt.Errorf("%w: phone %q is taken", ledger.ErrDuplicateParty, p.Phone)
		case p.Email != "" && o.Email == p.Email:
			return fmt.Errorf("%w: email %q is taken", ledger.ErrDuplicateParty, p.Email)
		}
	}
	return nil
}

func (m *Memory) setBalanceLocked(id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	p, ok := m.parties[id]
	if !ok || !p.Active {
		return 0, ledger.ErrPartyNotFound
	}
	if p.Version != expectedVersion {
		return 0, ledger.ErrConcurrentModification
	}
	p.Balance = b
	p.Version++
	p.UpdatedAt = at
	m.parties[id] = p
	return p.Version, nil
}

func (m *Memory) appendLocked(e ledger.Entry) (ledger.Entry, error) {
	if _, ok := m.parties[e.PartyID]; !ok {
		return ledger.Entry{}, ledger.ErrPartyNotFound
	}
	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
	}
	m.seq++
	e.Sequence = m.seq
	m.entries[e.PartyID] = append(m.entries[e.PartyID], e)
	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	return e, nil
}

func (m *Memory) listEntriesLocked(q ledger.EntryQuery) []ledger.Entry {
	all := m.entries[q.PartyID]
	result := make([]ledger.Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if !matches(e, q) {
			continue
		}
		result = append(result, e)
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result
}

func (m *Memory) documentEntriesLocked(partyID ledger.PartyID, kind ledger.EventKind, documentID string) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range m.entries[partyID] {
		if e.Kind == kind && e.Document.ID == documentID {
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) sumLocked(partyID ledger.PartyID, kinds []ledger.EventKind) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.entries[partyID] {
		if !containsKind(kinds, e.Kind) {
			continue
		}
		if e.Reversal {
			total = total.Sub(e.Amount)
		} else {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func matches(e ledger.Entry, q ledger.EntryQuery) bool {
	if q.From != nil && e.TransactionDate.Before(*q.From) {
		return false
	}
	if q.To != nil && e.TransactionDate.After(*q.To) {
		return false
	}
	return len(q.Kinds) == 0 || containsKind(q.Kinds, e.Kind)
}

func containsKind(kinds []ledger.EventKind, k ledger.EventKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized by the store mutex.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	parties := make(map[ledger.PartyID]ledger.Party, len(tm.parties))
	for k, v := range tm.parties {
		parties[k] = v
	}
	entries := make(map[ledger.PartyID][]ledger.Entry, len(tm.entries))
	for k, v := range tm.entries {
		entries[k] = append([]ledger.Entry{}, v...)
	}
	idemp := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idemp[k] = v
	}
	return memorySnapshot{parties: parties, entries: entries, idempotency: idemp, seq: tm.seq}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.parties = s.parties
	tm.entries = s.entries
	tm.idempotency = s.idempotency
	tm.seq = s.seq
}

type memorySnapshot struct {
	parties     map[ledger.PartyID]ledger.Party
	entries     map[ledger.PartyID][]ledger.Entry
	idempotency map[string]bool
	seq         int64
}

// txMemoryView is the Store handed to WithTx callbacks. The parent mutex is
// already held, so it calls the locked helpers directly.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreateParty(_ context.Context, p ledger.Party) error {
	return tv.parent.createPartyLocked(p)
}

func (tv *txMemoryView) GetParty(_ context.Context, id ledger.PartyID) (ledger.Party, error) {
	return tv.parent.getPartyLocked(id)
}

func (tv *txMemoryView) ListParties(_ context.Context, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	return tv.parent.listPartiesLocked(merchantID), nil
}

func (tv *txMemoryView) SearchParties(_ context.Context, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	return tv.parent.searchPartiesLocked(merchantID, term), nil
}

func (tv *txMemoryView) UpdateParty(_ context.Context, p ledger.Party) error {
	return tv.parent.updatePartyLocked(p)
}

func (tv *txMemoryView) DeactivateParty(_ context.Context, id ledger.PartyID, at time.Time) error {
	return tv.parent.deactivatePartyLocked(id, at)
}

func (tv *txMemoryView) SetBalance(_ context.Context, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	return tv.parent.setBalanceLocked(id, expectedVersion, b, at)
}

func (tv *txMemoryView) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	return tv.parent.appendLocked(e)
}

func (tv *txMemoryView) ListEntries(_ context.Context, q ledger.EntryQuery) ([]ledger.Entry, error) {
	return tv.parent.listEntriesLocked(q), nil
}

func (tv *txMemoryView) DocumentEntries(_ context.Context, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	return tv.parent.documentEntriesLocked(partyID, kind, documentID), nil
}

func (tv *txMemoryView) SumByKinds(_ context.Context, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	return tv.parent.sumLocked(partyID, kinds), nil
}

func (tv *txMemoryView) IdempotencyKeyExists(_ context.Context, key string) (bool, error) {
	return tv.parent.idempotency[key], nil
}
