// Package locks provides per-key mutual exclusion for settlement flows. The
// in-process LocalLocker serves a single replica; RedisLocker (redsync) makes
// the same guarantee across replicas sharing one database.
package locks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tbourn/go-chat-ledger/internal/observability"
)

// Locker acquires an exclusive lock on key. The returned unlock func must be
// called exactly once; calling it more than once is a no-op.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockAll acquires every distinct key in sorted order, so two callers locking
// overlapping sets cannot deadlock. On failure the locks taken so far are
// released.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	start := time.Now()
	unlocks := make([]func(), 0, len(uniq))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range uniq {
		u, err := l.Lock(ctx, k)
		if err != nil {
			release()
			observability.ObserveLock(err, start)
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	observability.ObserveLock(nil, start)
	return release, nil
}

type entry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is a keyed mutex. Entries are reference counted and removed
// when no goroutine holds or waits on them.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e := l.keys[key]
	if e == nil {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

// held reports how many keys are tracked; tests use it to check cleanup.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
