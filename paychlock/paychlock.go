// Package paychlock provides the two fair FIFO lock tables the Channel
// Manager serializes its operations through: one keyed by a
// (sender, receiver) pair, one keyed by a channelId. Both are built on
// the same primitive, a ticket-queue mutex per key.
//
// The teacher's locking.LockNode is built on
// github.com/viney-shih/go-lock's CAS mutex, which is a spinlock with no
// ordering guarantee among waiters. This package keeps LockNode's
// acquire/release-handle API shape but replaces the primitive with a
// channel-ticket queue, because the spec this serves requires waiters be
// granted the lock in arrival order.
package paychlock

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"context"
	"fmt"
	"sync"
)

// ticketMutex is a FIFO mutex: Lock requests are granted in the order
// they call Lock, never reordered even under contention.
type ticketMutex struct {
	mutex  sync.Mutex
	queue  []chan struct{}
	locked bool
}

// Lock blocks until the mutex is acquired or ctx is cancelled, returning
// a release function to call exactly once on every exit path.
func (t *ticketMutex) Lock(ctx context.Context) (func(), error) {
	t.mutex.Lock()
	if !t.locked {
		t.locked = true
		t.mutex.Unlock()
		return t.release, nil
	}
	ticket := make(chan struct{})
	t.queue = append(t.queue, ticket)
	t.mutex.Unlock()

	select {
	case <-ticket:
		return t.release, nil
	case <-ctx.Done():
		t.cancelTicket(ticket)
		return nil, ctx.Err()
	}
}

func (t *ticketMutex) release() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if len(t.queue) == 0 {
		t.locked = false
		return
	}
	next := t.queue[0]
	t.queue = t.queue[1:]
	close(next)
}

func (t *ticketMutex) cancelTicket(ticket chan struct{}) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for i, c := range t.queue {
		if c == ticket {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			return
		}
	}
	// The ticket was already granted (removed from queue and closed)
	// concurrently with cancellation; drain to avoid leaking the lock.
	select {
	case <-ticket:
		t.release()
	default:
	}
}

// Table is a registry of one ticketMutex per string key, created
// lazily and reference-counted so idle keys don't accumulate forever.
type Table struct {
	mutex   sync.Mutex
	entries map[string]*tableEntry
}

type tableEntry struct {
	lock *ticketMutex
	refs int
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*tableEntry)}
}

// Lock acquires the FIFO mutex for key, blocking across suspension
// points until ctx is done or the lock is granted. The returned func
// must be called exactly once to release it.
func (t *Table) Lock(ctx context.Context, key string) (func(), error) {
	entry := t.acquireEntry(key)
	release, err := entry.lock.Lock(ctx)
	if err != nil {
		t.releaseEntry(key)
		return nil, fmt.Errorf("paychlock: lock %q: %w", key, err)
	}
	return func() {
		release()
		t.releaseEntry(key)
	}, nil
}

func (t *Table) acquireEntry(key string) *tableEntry {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &tableEntry{lock: &ticketMutex{}}
		t.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (t *Table) releaseEntry(key string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(t.entries, key)
	}
}
