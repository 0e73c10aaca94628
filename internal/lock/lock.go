// Package lock serialises writers per ledger entity (a lot, a finished-goods lot).
// It narrows the read-check-write window that the store's compare-and-swap closes.
package lock

import (
	"context"
	"sort"
	"sync"
)

// Release frees every key taken by one Acquire call.
type Release func()

// Locker takes exclusive ownership of a set of keys.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// LotKey names the lock guarding a raw-material lot.
func LotKey(lotID string) string { return "lot:" + lotID }

// FinishedKey names the lock guarding a finished-goods lot.
func FinishedKey(batchID string) string { return "fg:" + batchID }

// normalize sorts and dedupes keys so concurrent multi-key callers cannot deadlock.
func normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Local is an in-process keyed mutex that honours context cancellation.
// A key's slot lives only while some caller holds or waits for it.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty keyed mutex.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Acquire blocks until every key is free or ctx ends.
func (l *Local) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	slots := make([]*slot, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-slots[i].ch
			l.unref(held[i], slots[i])
		}
	}

	for _, key := range keys {
		s := l.ref(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
			slots = append(slots, s)
		case <-ctx.Done():
			l.unref(key, s)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
