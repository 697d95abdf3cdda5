package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLockTimeout = errors.New("timed out waiting for item lock")

// lockTable hands out one exclusive lock per item id. Entries are created on
// first use and removed once nobody holds or waits for them, so the table does
// not grow with the item catalog.
type lockTable struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[int64]*lockEntry)}
}

// Acquire blocks until the lock for key is held, ctx is cancelled, or timeout
// elapses. On success the returned release func must be called exactly once.
func (t *lockTable) Acquire(ctx context.Context, key int64, timeout time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			t.unref(key, e)
		}, nil
	case <-ctx.Done():
		t.unref(key, e)
		return nil, ctx.Err()
	case <-timer.C:
		t.unref(key, e)
		return nil, ErrLockTimeout
	}
}

func (t *lockTable) unref(key int64, e *lockEntry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
	t.mu.Unlock()
}
