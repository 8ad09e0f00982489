package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beliefmarket/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for markets and profiles. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Global state (not cached; one tiny row read on every operation) ---

func (s *CachedStore) InitGlobalState(ctx context.Context, gs *model.GlobalState) error {
	return s.primary.InitGlobalState(ctx, gs)
}

func (s *CachedStore) GetGlobalState(ctx context.Context) (*model.GlobalState, error) {
	return s.primary.GetGlobalState(ctx)
}

func (s *CachedStore) UpdateGlobalState(ctx context.Context, gs *model.GlobalState) error {
	return s.primary.UpdateGlobalState(ctx, gs)
}

// --- Profiles (read-through) ---

func (s *CachedStore) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	if err := s.primary.CreateProfile(ctx, p); err != nil {
		return err
	}
	s.cacheProfile(ctx, p)
	return nil
}

func (s *CachedStore) GetProfile(ctx context.Context, owner string) (*model.UserProfile, error) {
	data, err := s.rdb.Get(ctx, profileKey(owner)).Bytes()
	if err == nil {
		var p model.UserProfile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProfile(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, p)
	return p, nil
}

func (s *CachedStore) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	if err := s.primary.UpdateProfile(ctx, p); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, profileKey(p.Owner))
	return nil
}

// --- Markets (read-through) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) GetMarket(ctx context.Context, addr string) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(addr)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(m.Address))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, e)
}

func (s *CachedStore) GetLedgerEntriesByMarket(ctx context.Context, addr string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByMarket(ctx, addr)
}

func (s *CachedStore) GetLedgerEntriesByActor(ctx context.Context, actor string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByActor(ctx, actor)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.Address), data, s.ttl)
	}
}

func (s *CachedStore) cacheProfile(ctx context.Context, p *model.UserProfile) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(p.Owner), data, s.ttl)
	}
}

func marketKey(addr string) string   { return fmt.Sprintf("market:%s", addr) }
func profileKey(owner string) string { return fmt.Sprintf("profile:%s", owner) }
