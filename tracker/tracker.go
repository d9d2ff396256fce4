// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import (
	"sync"
	"time"
)

// DefaultTombstoneTTL is how long a deleted poll id is suppressed from
// reconciliation results.
const DefaultTombstoneTTL = 60 * time.Second

// Tracker records local mutation activity shared by the executor and the
// sync scheduler.
//
// Thread-safety: all methods are safe for concurrent use. None of them
// block on I/O; each is O(1) apart from Prune.
type Tracker struct {
	mu           sync.Mutex
	generation   uint64
	lastMutation time.Time
	tombstones   map[string]time.Time // id -> expiry
	ttl          time.Duration
	now          func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL sets the tombstone lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		tombstones: make(map[string]time.Time),
		ttl:        DefaultTombstoneTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bump increments the generation and stamps the mutation time.
// Returns the new generation.
func (t *Tracker) Bump() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.lastMutation = t.now()
	return t.generation
}

// Generation returns the current generation.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// LastMutation returns the time of the most recent Bump, or the zero time.
func (t *Tracker) LastMutation() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastMutation
}

// SinceLastMutation returns the time elapsed since the last Bump. Before
// any mutation it returns a duration larger than any cooldown.
func (t *Tracker) SinceLastMutation() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastMutation.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return t.now().Sub(t.lastMutation)
}

// Tombstone suppresses id until the TTL elapses. Re-tombstoning an id
// extends its expiry.
func (t *Tracker) Tombstone(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tombstones[id] = t.now().Add(t.ttl)
}

// IsTombstoned reports whether id is currently suppressed. Expired entries
// are dropped on read.
func (t *Tracker) IsTombstoned(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	expiry, ok := t.tombstones[id]
	if !ok {
		return false
	}
	if !t.now().Before(expiry) {
		delete(t.tombstones, id)
		return false
	}
	return true
}

// Untombstone removes id immediately. Used when a delete is rolled back.
func (t *Tracker) Untombstone(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tombstones, id)
}

// Prune drops every expired tombstone and returns how many remain.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, expiry := range t.tombstones {
		if !now.Before(expiry) {
			delete(t.tombstones, id)
		}
	}
	return len(t.tombstones)
}
