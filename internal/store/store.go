// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/beliefmarket/market-engine/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned when creating a record that exists.
	ErrAlreadyExists = errors.New("store: record already exists")
)

// Store is the persistence interface. Each record (global state, profile,
// market) is an independent unit of mutable state; operation-level
// serialization is the caller's responsibility.
type Store interface {
	// --- Global state (singleton) ---

	// InitGlobalState persists the singleton configuration. Fails with
	// ErrAlreadyExists if called twice.
	InitGlobalState(ctx context.Context, gs *model.GlobalState) error

	// GetGlobalState retrieves the singleton configuration.
	GetGlobalState(ctx context.Context) (*model.GlobalState, error)

	// UpdateGlobalState persists a pause-flag change.
	UpdateGlobalState(ctx context.Context, gs *model.GlobalState) error

	// --- User profiles ---

	// CreateProfile persists a new profile, one per owner.
	CreateProfile(ctx context.Context, p *model.UserProfile) error

	// GetProfile retrieves a profile by owner.
	GetProfile(ctx context.Context, owner string) (*model.UserProfile, error)

	// UpdateProfile persists the one-time invitor binding.
	UpdateProfile(ctx context.Context, p *model.UserProfile) error

	// --- Markets ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by its address.
	GetMarket(ctx context.Context, addr string) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarket persists the full market record after an operation.
	UpdateMarket(ctx context.Context, m *model.Market) error

	// --- Immutable operation ledger ---

	// InsertLedgerEntry appends an immutable operation record.
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error

	// GetLedgerEntriesByMarket returns all recorded operations for a market.
	GetLedgerEntriesByMarket(ctx context.Context, addr string) ([]model.LedgerEntry, error)

	// GetLedgerEntriesByActor returns all recorded operations for a user.
	GetLedgerEntriesByActor(ctx context.Context, actor string) ([]model.LedgerEntry, error)
}
