package state

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	touched time.Time
}

// Store is a concurrency-safe in-memory map whose entries expire after TTL
// without a write. A zero TTL keeps entries forever.
type Store[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[K]entry[V]
}

// NewStore creates an empty Store.
func NewStore[K comparable, V any](ttl time.Duration) *Store[K, V] {
	return &Store[K, V]{ttl: ttl, now: time.Now, items: make(map[K]entry[V])}
}

// WithClock replaces the time source; used by tests.
func (s *Store[K, V]) WithClock(now func() time.Time) *Store[K, V] {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store[K, V]) expired(e entry[V], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

// Get returns the value stored under key. Expired entries are removed.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if s.expired(e, s.now()) {
		delete(s.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key and restarts its TTL.
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, touched: s.now()}
	s.mu.Unlock()
}

// Delete removes key; it reports whether a live entry was removed.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	delete(s.items, key)
	return ok && !s.expired(e, s.now())
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store[K, V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.items {
		if s.expired(e, now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Each calls fn for every live entry. fn sees a snapshot and may call back
// into the store.
func (s *Store[K, V]) Each(fn func(K, V)) {
	s.mu.Lock()
	now := s.now()
	keys := make([]K, 0, len(s.items))
	vals := make([]V, 0, len(s.items))
	for k, e := range s.items {
		if !s.expired(e, now) {
			keys = append(keys, k)
			vals = append(vals, e.value)
		}
	}
	s.mu.Unlock()
	for i := range keys {
		fn(keys[i], vals[i])
	}
}
