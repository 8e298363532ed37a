// Package cache implements an in-memory time-to-live value holder.
//
// Entries are never evicted. Freshness is computed lazily on read from
// FetchedAt + TTL, and a stale entry stays readable until a newer write
// replaces it: stale-but-present beats absent.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with its fetch time and time-to-live.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
	TTL       time.Duration
}

// ExpiresAt returns the instant the entry stops being fresh.
func (e Entry[V]) ExpiresAt() time.Time {
	return e.FetchedAt.Add(e.TTL)
}

// FreshAt reports whether the entry is still fresh at now.
func (e Entry[V]) FreshAt(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}

// Age returns how old the entry is at now.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Clock supplies the current time.
type Clock func() time.Time

// Option configures a Cache.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides the time source used for freshness checks and for
// the fetch time recorded by Put.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

// Cache is a concurrency-safe TTL cache. The zero value is not usable; use New.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]Entry[V]
	now     Clock
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		entries: make(map[K]Entry[V]),
		now:     o.now,
	}
}

// Get returns the value stored under key.
// ok is false only when nothing has ever been stored; fresh tells whether
// the value is still within its TTL.
func (c *Cache[K, V]) Get(key K) (value V, fresh bool, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return value, false, false
	}
	return e.Value, e.FreshAt(c.now()), true
}

// Entry returns the full entry stored under key.
func (c *Cache[K, V]) Entry(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores value under key, fetched now.
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	c.PutAt(key, value, ttl, c.now())
}

// PutAt stores value under key as fetched at fetchedAt. A write older than
// the entry already stored is dropped so that a slow fetch completing late
// cannot replace newer data. It reports whether the write was applied.
func (c *Cache[K, V]) PutAt(key K, value V, ttl time.Duration, fetchedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && fetchedAt.Before(cur.FetchedAt) {
		return false
	}
	c.entries[key] = Entry[V]{Value: value, FetchedAt: fetchedAt, TTL: ttl}
	return true
}

// IsExpired reports whether the entry under key is past its TTL.
// A missing key counts as expired.
func (c *Cache[K, V]) IsExpired(key K) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	return !e.FreshAt(c.now())
}
