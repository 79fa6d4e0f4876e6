package memorystore

import (
	"strings"
	"sync"
	"time"
)

// EntryStore is an in-process cache whose entries remember when they were
// captured. Freshness is decided by the caller per lookup, so one store can
// hold values with different TTLs.
type EntryStore[V any] struct {
	globalMu sync.RWMutex
	data     map[string]*entry[V]
	now      func() time.Time
}

type entry[V any] struct {
	value      V
	capturedAt time.Time
}

func NewEntryStore[V any](now func() time.Time) *EntryStore[V] {
	if now == nil {
		now = time.Now
	}
	return &EntryStore[V]{
		data: make(map[string]*entry[V]),
		now:  now,
	}
}

// Get returns the value for key if it is younger than ttl. A stale entry is
// evicted on the way out.
func (s *EntryStore[V]) Get(key string, ttl time.Duration) (V, bool) {
	var zero V

	s.globalMu.RLock()
	e, ok := s.data[key]
	s.globalMu.RUnlock()
	if !ok {
		return zero, false
	}

	if s.now().Sub(e.capturedAt) < ttl {
		return e.value, true
	}

	s.globalMu.Lock()
	// Only evict the entry we looked at; a concurrent Set may have replaced it.
	if cur, ok := s.data[key]; ok && cur == e {
		delete(s.data, key)
	}
	s.globalMu.Unlock()
	return zero, false
}

// Peek returns the value and its capture time regardless of age.
func (s *EntryStore[V]) Peek(key string) (V, time.Time, bool) {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.capturedAt, true
}

// Set stores value captured now.
func (s *EntryStore[V]) Set(key string, value V) {
	s.SetAt(key, value, s.now())
}

// SetAt stores value with an explicit capture time.
func (s *EntryStore[V]) SetAt(key string, value V, capturedAt time.Time) {
	s.globalMu.Lock()
	s.data[key] = &entry[V]{value: value, capturedAt: capturedAt}
	s.globalMu.Unlock()
}

func (s *EntryStore[V]) Delete(key string) {
	s.globalMu.Lock()
	delete(s.data, key)
	s.globalMu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns how many went.
func (s *EntryStore[V]) DeletePrefix(prefix string) int {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

func (s *EntryStore[V]) DeleteAll() {
	s.globalMu.Lock()
	s.data = make(map[string]*entry[V])
	s.globalMu.Unlock()
}

// Prune drops every entry older than the TTL ttlFor returns for it.
func (s *EntryStore[V]) Prune(ttlFor func(key string, value V) time.Duration) int {
	now := s.now()

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	n := 0
	for k, e := range s.data {
		if now.Sub(e.capturedAt) >= ttlFor(k, e.value) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// CountAll returns the number of entries, fresh or not.
func (s *EntryStore[V]) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	return len(s.data)
}
