package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Key names one of the memoized resource families.
type Key string

const (
	KeyAvailableOrders Key = "available_orders"
	KeyActiveOrders    Key = "active_orders"
	KeyHistory         Key = "delivery_history"
)

// FetchFunc performs the real network fetch for a key.
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	data      interface{}
	fetchedAt time.Time
	valid     bool
}

// Store memoizes fetch results per key with a fixed TTL. Keys are
// independent: refreshing or invalidating one never touches the others.
// A failed refresh leaves the previous good entry in place.
type Store struct {
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
	entries  map[Key]entry
	fetchers map[Key]FetchFunc
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[Key]entry),
		fetchers: make(map[Key]FetchFunc),
	}
}

// Register binds a fetcher to a key. Get for an unregistered key fails.
func (s *Store) Register(key Key, fetch FetchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchers[key] = fetch
}

// Get returns the cached value when it is still inside the TTL window and
// forceRefresh is not set; otherwise it fetches, stores on success, and on
// failure returns the error without touching the existing entry.
func (s *Store) Get(ctx context.Context, key Key, forceRefresh bool) (interface{}, error) {
	s.mu.Lock()
	fetch, ok := s.fetchers[key]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("cache: no fetcher registered for key %q", key)
	}
	if !forceRefresh {
		if e, ok := s.entries[key]; ok && e.valid && s.now().Sub(e.fetchedAt) < s.ttl {
			s.mu.Unlock()
			return e.data, nil
		}
	}
	s.mu.Unlock()

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.Put(key, data)
	return data, nil
}

// Put overwrites the entry for key with a fresh timestamp.
func (s *Store) Put(key Key, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{data: data, fetchedAt: s.now(), valid: true}
}

// Invalidate clears the named keys, or every entry when called with none.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		s.entries = make(map[Key]entry)
		return
	}
	for _, key := range keys {
		delete(s.entries, key)
	}
}

// FetchedAt reports the entry timestamp for key, zero when absent.
func (s *Store) FetchedAt(key Key) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].fetchedAt
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
