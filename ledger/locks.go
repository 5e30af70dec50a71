package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// partyLocks serializes the read-compute-write-append sequence per party.
// Entries are created on first use and dropped when nobody holds or waits
// for them.
type partyLocks struct {
	mu    sync.Mutex
	locks map[PartyID]*partyLock
}

type partyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newPartyLocks() *partyLocks {
	return &partyLocks{locks: make(map[PartyID]*partyLock)}
}

// acquire locks every distinct id in sorted order and returns a release func
// that must be called exactly once. If timeout is positive and elapses before
// all locks are held, ErrConcurrentModification is returned and nothing stays
// locked.
func (l *partyLocks) acquire(ctx context.Context, timeout time.Duration, ids ...PartyID) (func(), error) {
	ids = uniqueSorted(ids)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	held := make([]PartyID, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, id := range ids {
		if err := l.lock(waitCtx, id); err != nil {
			release()
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrConcurrentModification
			}
			return nil, err
		}
		held = append(held, id)
	}
	return release, nil
}

func (l *partyLocks) lock(ctx context.Context, id PartyID) error {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &partyLock{sem: semaphore.NewWeighted(1)}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	if err := pl.sem.Acquire(ctx, 1); err != nil {
		l.deref(id, pl)
		return err
	}
	return nil
}

func (l *partyLocks) unlock(id PartyID) {
	l.mu.Lock()
	pl := l.locks[id]
	l.mu.Unlock()
	pl.sem.Release(1)
	l.deref(id, pl)
}

func (l *partyLocks) deref(id PartyID, pl *partyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, id)
	}
}

// size reports how many parties currently have a lock entry.
func (l *partyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func uniqueSorted(ids []PartyID) []PartyID {
	out := make([]PartyID, 0, len(ids))
	seen := make(map[PartyID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
