package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beliefmarket/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as BIGINT micro-units; per-outcome vectors
// as BIGINT[] and label/tag vectors as TEXT[].
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InitGlobalState(ctx context.Context, gs *model.GlobalState) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO global_state (id, authority, platform_wallet, paused)
		 VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		gs.Authority, gs.PlatformWallet, gs.Paused,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: global state", ErrAlreadyExists)
	}
	return nil
}

func (s *PostgresStore) GetGlobalState(ctx context.Context) (*model.GlobalState, error) {
	var gs model.GlobalState
	err := s.pool.QueryRow(ctx,
		`SELECT authority, platform_wallet, paused FROM global_state WHERE id = 1`).
		Scan(&gs.Authority, &gs.PlatformWallet, &gs.Paused)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: global state", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get global state: %w", err)
	}
	return &gs, nil
}

func (s *PostgresStore) UpdateGlobalState(ctx context.Context, gs *model.GlobalState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE global_state SET authority = $1, platform_wallet = $2, paused = $3 WHERE id = 1`,
		gs.Authority, gs.PlatformWallet, gs.Paused,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: global state", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_profiles (owner, invitor, referral_code)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner) DO NOTHING`,
		p.Owner, p.Invitor, p.ReferralCode,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: profile %s", ErrAlreadyExists, p.Owner)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, owner string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT owner, invitor, referral_code FROM user_profiles WHERE owner = $1`, owner).
		Scan(&p.Owner, &p.Invitor, &p.ReferralCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", owner, err)
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_profiles SET invitor = $2, referral_code = $3 WHERE owner = $1`,
		p.Owner, p.Invitor, p.ReferralCode,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: profile %s", ErrNotFound, p.Owner)
	}
	return nil
}

const marketColumns = `address, creator, invitor, referrer, num_outcomes,
	outcome_labels, outcome_pools, outcome_shares, tags, trading_fee_bps,
	resolve_at, resolved, winning_outcome,
	creator_peg_amount, creator_peg_claimed, accumulated_fees, created_at`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := m.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO markets (`+marketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (address) DO NOTHING`,
		m.Address, m.Creator, m.Invitor, m.Referrer, m.NumOutcomes,
		m.OutcomeLabels, u64s(m.OutcomePools), u64s(m.OutcomeShares), m.Tags, int32(m.TradingFeeBps),
		m.ResolveAt, m.Resolved, m.WinningOutcome,
		int64(m.CreatorPegAmount), m.CreatorPegClaimed, u64s(m.AccumulatedFees), m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: market %s", ErrAlreadyExists, m.Address)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, addr string) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE address = $1`, addr)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", addr, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET outcome_pools = $2, outcome_shares = $3, accumulated_fees = $4,
		     resolved = $5, winning_outcome = $6, creator_peg_claimed = $7
		 WHERE address = $1`,
		m.Address, u64s(m.OutcomePools), u64s(m.OutcomeShares), u64s(m.AccumulatedFees),
		m.Resolved, m.WinningOutcome, m.CreatorPegClaimed,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: market %s", ErrNotFound, m.Address)
	}
	return nil
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, operation, market_address, actor, outcome_index, amount, shares, fee, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Operation, e.MarketAddress, e.Actor, e.OutcomeIndex,
		int64(e.Amount), int64(e.Shares), int64(e.Fee), e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByMarket(ctx context.Context, addr string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, operation, market_address, actor, outcome_index, amount, shares, fee, timestamp
		 FROM ledger_entries WHERE market_address = $1 ORDER BY timestamp`, addr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) GetLedgerEntriesByActor(ctx context.Context, actor string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, operation, market_address, actor, outcome_index, amount, shares, fee, timestamp
		 FROM ledger_entries WHERE actor = $1 ORDER BY timestamp`, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// pgxRow is the subset of pgx row types scanMarket needs.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var pools, shares, fees []int64
	var feeBps int32
	var peg int64

	if err := row.Scan(&m.Address, &m.Creator, &m.Invitor, &m.Referrer, &m.NumOutcomes,
		&m.OutcomeLabels, &pools, &shares, &m.Tags, &feeBps,
		&m.ResolveAt, &m.Resolved, &m.WinningOutcome,
		&peg, &m.CreatorPegClaimed, &fees, &m.CreatedAt); err != nil {
		return nil, err
	}

	m.TradingFeeBps = uint16(feeBps)
	m.CreatorPegAmount = uint64(peg)
	m.OutcomePools = i64s(pools)
	m.OutcomeShares = i64s(shares)
	m.AccumulatedFees = i64s(fees)
	return &m, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amount, shares, fee int64

		if err := rows.Scan(&e.ID, &e.Operation, &e.MarketAddress, &e.Actor, &e.OutcomeIndex,
			&amount, &shares, &fee, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount = uint64(amount)
		e.Shares = uint64(shares)
		e.Fee = uint64(fee)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// u64s converts micro-unit vectors to BIGINT[] parameters. Amounts are
// bounded well below 2^63 by the overflow checks upstream.
func u64s(in []uint64) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func i64s(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
