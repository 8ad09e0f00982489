// Package model defines the core domain types shared across the market
// engine. All monetary values are integer micro-USDC (6 decimal places) —
// never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalState is the singleton program configuration. Exactly one instance
// exists for the lifetime of the system; it is created once and mutated
// only by pause/unpause.
type GlobalState struct {
	Authority      string `json:"authority" db:"authority"`
	PlatformWallet string `json:"platform_wallet" db:"platform_wallet"`
	Paused         bool   `json:"paused" db:"paused"`
}

// UserProfile tracks a user's referral identity. Invitor is a write-once
// field: empty until bound, and never cleared or rebound afterward.
type UserProfile struct {
	Owner        string `json:"owner" db:"owner"`
	Invitor      string `json:"invitor,omitempty" db:"invitor"`
	ReferralCode string `json:"referral_code" db:"referral_code"`
}

// HasInvitor reports whether the one-time invitor binding has happened.
func (p *UserProfile) HasInvitor() bool {
	return p.Invitor != ""
}

// Market is the per-market ledger record: outcome pools and shares,
// accumulated trading fees, and the resolution state machine. Records are
// append-only; pools/shares shrink on redemption but the market is never
// deleted.
type Market struct {
	Address string `json:"address" db:"address"`
	Creator string `json:"creator" db:"creator"`
	// Invitor is snapshotted from the creator's profile at creation time
	// and never re-read.
	Invitor  string `json:"invitor,omitempty" db:"invitor"`
	Referrer string `json:"referrer,omitempty" db:"referrer"`

	NumOutcomes   int      `json:"num_outcomes" db:"num_outcomes"`
	OutcomeLabels []string `json:"outcome_labels" db:"outcome_labels"`
	OutcomePools  []uint64 `json:"outcome_pools" db:"outcome_pools"`
	OutcomeShares []uint64 `json:"outcome_shares" db:"outcome_shares"`
	Tags          []string `json:"tags" db:"tags"`
	TradingFeeBps uint16   `json:"trading_fee_bps" db:"trading_fee_bps"`

	ResolveAt int64 `json:"resolve_at" db:"resolve_at"`
	Resolved  bool  `json:"resolved" db:"resolved"`
	// WinningOutcome is -1 until the market resolves, then set exactly once.
	WinningOutcome int `json:"winning_outcome" db:"winning_outcome"`

	CreatorPegAmount  uint64 `json:"creator_peg_amount" db:"creator_peg_amount"`
	CreatorPegClaimed bool   `json:"creator_peg_claimed" db:"creator_peg_claimed"`

	AccumulatedFees []uint64 `json:"accumulated_fees" db:"accumulated_fees"`
	CreatedAt       int64    `json:"created_at" db:"created_at"`
}

// TotalPool returns the sum of all outcome pools. This is the parimutuel
// payout source: losing-outcome deposits fund winners.
func (m *Market) TotalPool() uint64 {
	var total uint64
	for _, p := range m.OutcomePools {
		total += p
	}
	return total
}

// TotalFees returns the sum of accumulated, not-yet-withdrawn trading fees.
func (m *Market) TotalFees() uint64 {
	var total uint64
	for _, f := range m.AccumulatedFees {
		total += f
	}
	return total
}

// Winner returns the winning outcome index, or false if unresolved.
func (m *Market) Winner() (int, bool) {
	if !m.Resolved || m.WinningOutcome < 0 {
		return 0, false
	}
	return m.WinningOutcome, true
}

// Validate checks the structural market invariants: outcome count bounds,
// vector length agreement, and the fee range.
func (m *Market) Validate() error {
	if m.NumOutcomes < MinOutcomes || m.NumOutcomes > MaxOutcomes {
		return ErrInvalidOutcomeCount
	}
	if len(m.OutcomeLabels) != m.NumOutcomes ||
		len(m.OutcomePools) != m.NumOutcomes ||
		len(m.OutcomeShares) != m.NumOutcomes ||
		len(m.AccumulatedFees) != m.NumOutcomes {
		return ErrOutcomeCountMismatch
	}
	if m.TradingFeeBps < MinTradingFeeBps || m.TradingFeeBps > MaxTradingFeeBps {
		return ErrInvalidTradingFee
	}
	for i := range m.OutcomePools {
		// No shares may exist without a backing pool.
		if m.OutcomePools[i] == 0 && m.OutcomeShares[i] != 0 {
			return ErrInvalidMarketState
		}
	}
	return nil
}

// LedgerEntry is an immutable record of one completed operation: the
// operation name, involved identities, and amounts. Once created these are
// never modified or deleted; they double as the event stream.
type LedgerEntry struct {
	ID            string    `json:"id" db:"id"`
	Operation     string    `json:"operation" db:"operation"`
	MarketAddress string    `json:"market_address,omitempty" db:"market_address"`
	Actor         string    `json:"actor" db:"actor"`
	OutcomeIndex  int       `json:"outcome_index" db:"outcome_index"`
	Amount        uint64    `json:"amount" db:"amount"`
	Shares        uint64    `json:"shares" db:"shares"`
	Fee           uint64    `json:"fee" db:"fee"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// Operation names recorded in the ledger.
const (
	OpInitializeGlobal = "initialize_global"
	OpInitializeUser   = "initialize_user"
	OpSetInvitor       = "set_invitor"
	OpCreateMarket     = "create_market"
	OpBuyOutcome       = "buy_outcome"
	OpSellOutcome      = "sell_outcome"
	OpResolveMarket    = "resolve_market"
	OpRedeemWinnings   = "redeem_winnings"
	OpClaimPeg         = "claim_peg"
	OpWithdrawFees     = "withdraw_fees"
	OpPause            = "pause"
	OpUnpause          = "unpause"
)

// USDC converts a micro-USDC amount to a display decimal (6 places).
// Presentation only: all accounting stays in integer micro-units.
func USDC(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-UsdcDecimals)
}
