package memorystore

import (
	"sort"
	"strings"
	"sync"
)

// MemorySymbolStore is the set of symbols the collector tracks.
type MemorySymbolStore struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

func NewSymbolStore() *MemorySymbolStore {
	return &MemorySymbolStore{
		symbols: make(map[string]struct{}),
	}
}

// Add registers symbol and reports whether it was new.
func (s *MemorySymbolStore) Add(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; ok {
		return false
	}
	s.symbols[symbol] = struct{}{}
	return true
}

// StartWorker drains ch into the store. done is closed once ch is closed.
func (s *MemorySymbolStore) StartWorker(ch <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for symbol := range ch {
			s.Add(symbol)
		}
	}()
	return done
}

// GetAll returns the tracked symbols in sorted order.
func (s *MemorySymbolStore) GetAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
