// Package visitors keeps the in-process map of client addresses used to tell
// first-time visitors from returning ones.
//
// The map lives only as long as the process and is not shared between
// instances, so behind a load balancer every instance sees a partial view.
package visitors

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/soundstats/music-api/interfaces"
)

var _ interfaces.VisitorTracker = (*Tracker)(nil)

// Tracker maps client IP to the time it was first seen. Entries are never
// refreshed; they leave the map when they expire or when the map is full and
// they are the oldest.
type Tracker struct {
	// mu makes the lookup and insert of Visit one step
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
	ttl     time.Duration
	now     func() time.Time
	onEvict func(ip string)
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithEvictHook registers fn to run for every address that leaves the map,
// whether it expired, was swept or was evicted to make room.
func WithEvictHook(fn func(ip string)) Option {
	return func(t *Tracker) {
		t.onEvict = fn
	}
}

// New creates a tracker. ttl <= 0 keeps entries forever and maxEntries <= 0
// leaves the map unbounded, which together match an unbounded first-seen map.
func New(ttl time.Duration, maxEntries int, opts ...Option) *Tracker {
	t := &Tracker{
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	var onEvict expirable.EvictCallback[string, time.Time]
	if t.onEvict != nil {
		hook := t.onEvict
		onEvict = func(ip string, _ time.Time) { hook(ip) }
	}

	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	t.entries = expirable.NewLRU[string, time.Time](maxEntries, onEvict, ttl)

	return t
}

// Visit reports whether ip was seen before and records it when it was not.
// Entries stay in first-seen order, so a full map drops the oldest in O(1).
func (t *Tracker) Visit(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if seen, ok := t.entries.Peek(ip); ok && !t.expired(seen, now) {
		return true
	}

	t.entries.Add(ip, now)
	return false
}

// FirstSeen returns when ip was first recorded
func (t *Tracker) FirstSeen(ip string) (time.Time, bool) {
	seen, ok := t.entries.Peek(ip)
	if !ok || t.expired(seen, t.now()) {
		return time.Time{}, false
	}
	return seen, true
}

// Sweep removes expired entries and returns the number removed. It walks
// from the oldest entry and stops at the first live one.
func (t *Tracker) Sweep() int {
	if t.ttl <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for {
		ip, seen, ok := t.entries.GetOldest()
		if !ok || !t.expired(seen, now) {
			return removed
		}
		if t.entries.Remove(ip) {
			removed++
		}
	}
}

// Len returns the number of tracked addresses, including expired entries not yet swept
func (t *Tracker) Len() int {
	return t.entries.Len()
}

func (t *Tracker) expired(seen, now time.Time) bool {
	return t.ttl > 0 && now.Sub(seen) >= t.ttl
}
