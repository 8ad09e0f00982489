package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/beliefmarket/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	global   *model.GlobalState
	profiles map[string]*model.UserProfile
	markets  map[string]*model.Market
	ledger   []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*model.UserProfile),
		markets:  make(map[string]*model.Market),
	}
}

func (s *MemoryStore) InitGlobalState(_ context.Context, gs *model.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.global != nil {
		return fmt.Errorf("%w: global state", ErrAlreadyExists)
	}
	copy := *gs
	s.global = &copy
	return nil
}

func (s *MemoryStore) GetGlobalState(_ context.Context) (*model.GlobalState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.global == nil {
		return nil, fmt.Errorf("%w: global state", ErrNotFound)
	}
	copy := *s.global
	return &copy, nil
}

func (s *MemoryStore) UpdateGlobalState(_ context.Context, gs *model.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.global == nil {
		return fmt.Errorf("%w: global state", ErrNotFound)
	}
	copy := *gs
	s.global = &copy
	return nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, p *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.Owner]; ok {
		return fmt.Errorf("%w: profile %s", ErrAlreadyExists, p.Owner)
	}
	copy := *p
	s.profiles[p.Owner] = &copy
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, owner string) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[owner]
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, owner)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, p *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.Owner]; !ok {
		return fmt.Errorf("%w: profile %s", ErrNotFound, p.Owner)
	}
	copy := *p
	s.profiles[p.Owner] = &copy
	return nil
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.Address]; ok {
		return fmt.Errorf("%w: market %s", ErrAlreadyExists, m.Address)
	}
	s.markets[m.Address] = cloneMarket(m)
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, addr string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, addr)
	}
	return cloneMarket(m), nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *cloneMarket(m))
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt > markets[j].CreatedAt
	})
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.Address]; !ok {
		return fmt.Errorf("%w: market %s", ErrNotFound, m.Address)
	}
	s.markets[m.Address] = cloneMarket(m)
	return nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *e)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByMarket(_ context.Context, addr string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.MarketAddress == addr {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetLedgerEntriesByActor(_ context.Context, actor string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.Actor == actor {
			result = append(result, e)
		}
	}
	return result, nil
}

// cloneMarket deep-copies a market so callers can never mutate stored
// slices through a returned pointer.
func cloneMarket(m *model.Market) *model.Market {
	copy := *m
	copy.OutcomeLabels = append([]string(nil), m.OutcomeLabels...)
	copy.OutcomePools = append([]uint64(nil), m.OutcomePools...)
	copy.OutcomeShares = append([]uint64(nil), m.OutcomeShares...)
	copy.Tags = append([]string(nil), m.Tags...)
	copy.AccumulatedFees = append([]uint64(nil), m.AccumulatedFees...)
	return &copy
}
