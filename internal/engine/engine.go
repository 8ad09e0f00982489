// Package engine implements the market accounting state machine: market
// creation, parimutuel buy/sell, one-shot resolution, redemption, and the
// fee/peg distribution ledger.
//
// Operations are compute-then-commit: every check and every arithmetic
// step runs before the first mutation, so a failure of any kind leaves the
// record unchanged. The engine computes how much money must move and
// whether an operation is permitted; it never touches balances itself —
// callers forward the returned amounts to the custody layer.
package engine

import (
	"github.com/beliefmarket/market-engine/internal/address"
	"github.com/beliefmarket/market-engine/internal/model"
	"github.com/beliefmarket/market-engine/internal/parimutuel"
	"github.com/beliefmarket/market-engine/internal/registry"
	"github.com/beliefmarket/market-engine/internal/safemath"
)

// CreateParams are the creator-supplied inputs for a new market.
type CreateParams struct {
	Creator       string
	NumOutcomes   int
	OutcomeLabels []string
	Tags          []string
	TradingFeeBps uint16
	ResolveAt     int64
}

// CreationSplit is the routing of the fixed market-creation fee. The peg
// portion is funded into the market's own vault so the later peg claim is
// backed by real deposits; unbound invitor and referrer shares fold into
// the platform share. The three parts always sum to MarketCreationFee.
type CreationSplit struct {
	Platform uint64
	Invitor  uint64
	Peg      uint64
}

// CreateMarket validates all creation bounds and builds the market record.
// The creator's invitor is snapshotted from their profile at this instant
// and never re-read.
func CreateMarket(p CreateParams, gs *model.GlobalState, profile *model.UserProfile, now int64) (*model.Market, CreationSplit, error) {
	if err := registry.Guard(gs); err != nil {
		return nil, CreationSplit{}, err
	}
	if profile == nil || profile.Owner != p.Creator {
		return nil, CreationSplit{}, model.ErrProfileNotInitialized
	}
	if p.NumOutcomes < model.MinOutcomes || p.NumOutcomes > model.MaxOutcomes {
		return nil, CreationSplit{}, model.ErrInvalidOutcomeCount
	}
	if len(p.OutcomeLabels) != p.NumOutcomes {
		return nil, CreationSplit{}, model.ErrOutcomeCountMismatch
	}
	if p.TradingFeeBps < model.MinTradingFeeBps || p.TradingFeeBps > model.MaxTradingFeeBps {
		return nil, CreationSplit{}, model.ErrInvalidTradingFee
	}
	if p.ResolveAt < now+model.MinResolutionTimeSecs || p.ResolveAt >= now+model.MaxResolutionTimeSecs {
		return nil, CreationSplit{}, model.ErrInvalidResolutionTime
	}
	if len(p.Tags) > model.MaxTagsPerMarket {
		return nil, CreationSplit{}, model.ErrStringTooLong
	}
	for _, label := range p.OutcomeLabels {
		if len(label) > model.MaxOutcomeLabelLen {
			return nil, CreationSplit{}, model.ErrStringTooLong
		}
	}
	for _, tag := range p.Tags {
		if len(tag) > model.MaxTagLen {
			return nil, CreationSplit{}, model.ErrStringTooLong
		}
	}

	m := &model.Market{
		Address:          address.Market(p.Creator, p.ResolveAt),
		Creator:          p.Creator,
		Invitor:          profile.Invitor,
		Referrer:         "", // referrers earn only from the creation fee split
		NumOutcomes:      p.NumOutcomes,
		OutcomeLabels:    p.OutcomeLabels,
		OutcomePools:     make([]uint64, p.NumOutcomes),
		OutcomeShares:    make([]uint64, p.NumOutcomes),
		Tags:             p.Tags,
		TradingFeeBps:    p.TradingFeeBps,
		ResolveAt:        p.ResolveAt,
		Resolved:         false,
		WinningOutcome:   -1,
		CreatorPegAmount: model.MarketFeeCreatorPeg,
		AccumulatedFees:  make([]uint64, p.NumOutcomes),
		CreatedAt:        now,
	}

	split := CreationSplit{
		Platform: model.MarketFeePlatformShare,
		Peg:      model.MarketFeeCreatorPeg,
	}
	if profile.HasInvitor() {
		split.Invitor = model.MarketFeeInvitorShare
	} else {
		split.Platform += model.MarketFeeInvitorShare
	}
	// No referrer binding exists yet, so the referrer share always folds
	// into the platform share.
	split.Platform += model.MarketFeeReferrerShare

	return m, split, nil
}

// TradeResult reports the amounts a completed buy moved: the fee taken off
// the deposit, the net amount added to the outcome pool, the shares
// issued, and the creator's 80% fee accrual.
type TradeResult struct {
	Fee            uint64
	Net            uint64
	Shares         uint64
	CreatorAccrual uint64
}

// Buy deposits amountIn on an outcome and issues shares at the running
// pool/share price. The first buyer of an outcome pays one micro-unit per
// share; dust deposits that would issue zero shares are rejected.
func Buy(m *model.Market, gs *model.GlobalState, outcome int, amountIn uint64) (TradeResult, error) {
	if err := registry.Guard(gs); err != nil {
		return TradeResult{}, err
	}
	if amountIn == 0 {
		return TradeResult{}, model.ErrInvalidAmount
	}
	if outcome < 0 || outcome >= m.NumOutcomes {
		return TradeResult{}, model.ErrInvalidOutcomeIndex
	}
	if m.Resolved {
		return TradeResult{}, model.ErrMarketAlreadyResolved
	}

	calc, err := parimutuel.NewCalculator(m.TradingFeeBps)
	if err != nil {
		return TradeResult{}, err
	}
	fee, net, err := calc.Fee(amountIn)
	if err != nil {
		return TradeResult{}, err
	}
	shares, err := calc.SharesForDeposit(m.OutcomePools[outcome], m.OutcomeShares[outcome], net)
	if err != nil {
		return TradeResult{}, err
	}
	if shares == 0 {
		return TradeResult{}, model.ErrInvalidAmount
	}
	accrual, err := parimutuel.CreatorAccrual(fee)
	if err != nil {
		return TradeResult{}, err
	}

	newPool, err := safemath.Add(m.OutcomePools[outcome], net)
	if err != nil {
		return TradeResult{}, err
	}
	newShares, err := safemath.Add(m.OutcomeShares[outcome], shares)
	if err != nil {
		return TradeResult{}, err
	}
	newFees, err := safemath.Add(m.AccumulatedFees[outcome], accrual)
	if err != nil {
		return TradeResult{}, err
	}

	m.OutcomePools[outcome] = newPool
	m.OutcomeShares[outcome] = newShares
	m.AccumulatedFees[outcome] = newFees

	return TradeResult{Fee: fee, Net: net, Shares: shares, CreatorAccrual: accrual}, nil
}

// SellResult reports the amounts a completed sale moved: gross redemption
// value at the current pool/share price, the fee taken off it, the net
// paid out, and the creator's 80% fee accrual.
type SellResult struct {
	Gross          uint64
	Fee            uint64
	Net            uint64
	CreatorAccrual uint64
}

// Sell redeems sharesToSell at the current pool/share price before
// resolution. The outcome pool must cover the net payout.
func Sell(m *model.Market, gs *model.GlobalState, outcome int, sharesToSell uint64) (SellResult, error) {
	if err := registry.Guard(gs); err != nil {
		return SellResult{}, err
	}
	if sharesToSell == 0 {
		return SellResult{}, model.ErrInvalidAmount
	}
	if outcome < 0 || outcome >= m.NumOutcomes {
		return SellResult{}, model.ErrInvalidOutcomeIndex
	}
	if m.Resolved {
		return SellResult{}, model.ErrMarketAlreadyResolved
	}
	if m.OutcomeShares[outcome] < sharesToSell {
		return SellResult{}, model.ErrInsufficientShares
	}

	calc, err := parimutuel.NewCalculator(m.TradingFeeBps)
	if err != nil {
		return SellResult{}, err
	}
	gross, fee, net, err := calc.SaleProceeds(m.OutcomePools[outcome], m.OutcomeShares[outcome], sharesToSell)
	if err != nil {
		return SellResult{}, err
	}
	if m.OutcomePools[outcome] < net {
		return SellResult{}, model.ErrInsufficientFunds
	}
	accrual, err := parimutuel.CreatorAccrual(fee)
	if err != nil {
		return SellResult{}, err
	}

	newPool, err := safemath.Sub(m.OutcomePools[outcome], net)
	if err != nil {
		return SellResult{}, err
	}
	newShares, err := safemath.Sub(m.OutcomeShares[outcome], sharesToSell)
	if err != nil {
		return SellResult{}, err
	}
	newFees, err := safemath.Add(m.AccumulatedFees[outcome], accrual)
	if err != nil {
		return SellResult{}, err
	}

	m.OutcomePools[outcome] = newPool
	m.OutcomeShares[outcome] = newShares
	m.AccumulatedFees[outcome] = newFees

	return SellResult{Gross: gross, Fee: fee, Net: net, CreatorAccrual: accrual}, nil
}

// Resolve sets the winning outcome. Authority only, gated on the
// resolution time, one-shot and irreversible: trading fails afterward and
// the winning outcome never changes.
func Resolve(m *model.Market, gs *model.GlobalState, caller string, winningOutcome int, now int64) error {
	if err := registry.Guard(gs); err != nil {
		return err
	}
	if !registry.Authorized(gs, caller) {
		return model.ErrUnauthorized
	}
	if winningOutcome < 0 || winningOutcome >= m.NumOutcomes {
		return model.ErrInvalidOutcomeIndex
	}
	if now < m.ResolveAt {
		return model.ErrResolutionTimeNotReached
	}
	if m.Resolved {
		return model.ErrMarketAlreadyResolved
	}

	m.Resolved = true
	m.WinningOutcome = winningOutcome
	return nil
}

// RedeemResult reports a redemption payout: the floor per-share rate and
// the total amount paid.
type RedeemResult struct {
	PerShare uint64
	Amount   uint64
}

// Redeem pays winningShares out of the combined pool at the current
// floor(totalPool / winning shares outstanding) rate. The payout is booked
// against the winning pool only — losing pools keep their truncation dust
// permanently.
func Redeem(m *model.Market, gs *model.GlobalState, winningShares uint64) (RedeemResult, error) {
	if err := registry.Guard(gs); err != nil {
		return RedeemResult{}, err
	}
	if !m.Resolved {
		return RedeemResult{}, model.ErrMarketNotResolved
	}
	winner, ok := m.Winner()
	if !ok {
		return RedeemResult{}, model.ErrInvalidMarketState
	}
	if winningShares == 0 {
		return RedeemResult{}, model.ErrInvalidAmount
	}

	perShare, err := parimutuel.RedemptionPerShare(m.TotalPool(), m.OutcomeShares[winner])
	if err != nil {
		return RedeemResult{}, err
	}
	amount, err := safemath.Mul(winningShares, perShare)
	if err != nil {
		return RedeemResult{}, err
	}
	if amount == 0 {
		return RedeemResult{}, model.ErrNoWinningsToRedeem
	}

	newShares, err := safemath.Sub(m.OutcomeShares[winner], winningShares)
	if err != nil {
		return RedeemResult{}, err
	}
	newPool, err := safemath.Sub(m.OutcomePools[winner], amount)
	if err != nil {
		return RedeemResult{}, err
	}

	m.OutcomeShares[winner] = newShares
	m.OutcomePools[winner] = newPool

	return RedeemResult{PerShare: perShare, Amount: amount}, nil
}

// ClaimPeg releases the creator's refundable deposit after resolution.
// One-shot: the claimed flag only ever goes false to true.
func ClaimPeg(m *model.Market, gs *model.GlobalState, caller string) (uint64, error) {
	if err := registry.Guard(gs); err != nil {
		return 0, err
	}
	if caller != m.Creator {
		return 0, model.ErrUserNotAuthorized
	}
	if !m.Resolved {
		return 0, model.ErrMarketNotResolved
	}
	if m.CreatorPegClaimed {
		return 0, model.ErrCreatorPegAlreadyClaimed
	}
	if m.CreatorPegAmount == 0 {
		return 0, model.ErrInvalidAmount
	}

	m.CreatorPegClaimed = true
	return m.CreatorPegAmount, nil
}

// WithdrawFees sums the accumulated trading fees, splits them 80/10/10
// (creator/invitor/platform, with the platform taking the exact residual),
// and zeroes the accrual vector. A second call finds nothing to withdraw
// and fails cleanly.
func WithdrawFees(m *model.Market, gs *model.GlobalState) (parimutuel.FeeSplit, error) {
	if err := registry.Guard(gs); err != nil {
		return parimutuel.FeeSplit{}, err
	}
	if !m.Resolved {
		return parimutuel.FeeSplit{}, model.ErrCannotWithdrawUnresolved
	}
	total := m.TotalFees()
	if total == 0 {
		return parimutuel.FeeSplit{}, model.ErrNoFeesToWithdraw
	}

	split, err := parimutuel.SplitFees(total, m.Invitor != "")
	if err != nil {
		return parimutuel.FeeSplit{}, err
	}

	for i := range m.AccumulatedFees {
		m.AccumulatedFees[i] = 0
	}
	return split, nil
}

// Odds returns each outcome's current odds in basis points.
func Odds(m *model.Market) ([]uint64, error) {
	return parimutuel.OddsBps(m.OutcomePools)
}
