package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Store persists portfolios by owner.
//
// Load returns the owner's portfolio, creating one with startingCash when
// none exists. Save writes the full state and must reject a portfolio whose
// Version no longer matches the stored one with ErrStaleVersion. On success
// Save bumps p.Version.
type Store interface {
	Load(ctx context.Context, owner string, startingCash decimal.Decimal) (*Portfolio, error)
	Save(ctx context.Context, owner string, p *Portfolio) error
}

// MemoryStore keeps portfolios in process. Callers never share memory with
// the store: both Load and Save copy.
type MemoryStore struct {
	mu         sync.Mutex
	portfolios map[string]*Portfolio
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{portfolios: make(map[string]*Portfolio)}
}

func (s *MemoryStore) Load(_ context.Context, owner string, startingCash decimal.Decimal) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[owner]
	if !ok {
		p = New(startingCash)
		s.portfolios[owner] = p
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, owner string, p *Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.portfolios[owner]; ok && cur.Version != p.Version {
		return fmt.Errorf("%w: owner=%s stored=%d got=%d", ErrStaleVersion, owner, cur.Version, p.Version)
	}
	p.Version++
	s.portfolios[owner] = p.Clone()
	return nil
}
