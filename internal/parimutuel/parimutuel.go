// Package parimutuel implements the parimutuel pricing model for
// multi-outcome prediction markets.
//
// There is no bonding curve: the price of an outcome share is purely the
// running pool/share ratio of that outcome, and after resolution all
// losing-outcome deposits fund winning-outcome payouts proportionally to
// shares held.
//
// All values are integer micro-USDC. Division always floors; every step is
// overflow-checked and aborts the computation on failure.
package parimutuel

import (
	"github.com/beliefmarket/market-engine/internal/model"
	"github.com/beliefmarket/market-engine/internal/safemath"
)

// Calculator computes trade amounts for one market's fee schedule.
// It is stateless — pool and share quantities are passed as arguments,
// not stored.
type Calculator struct {
	feeBps uint16
}

// NewCalculator creates a calculator for the given trading fee. The fee
// must be within [1, 500] basis points.
func NewCalculator(feeBps uint16) (*Calculator, error) {
	if feeBps < model.MinTradingFeeBps || feeBps > model.MaxTradingFeeBps {
		return nil, model.ErrInvalidTradingFee
	}
	return &Calculator{feeBps: feeBps}, nil
}

// FeeBps returns the trading fee in basis points.
func (c *Calculator) FeeBps() uint16 {
	return c.feeBps
}

// Fee splits a deposit into (fee, net): fee = floor(amount * feeBps / 10000).
func (c *Calculator) Fee(amount uint64) (fee, net uint64, err error) {
	fee, err = safemath.MulDiv(amount, uint64(c.feeBps), model.BpsDenominator)
	if err != nil {
		return 0, 0, err
	}
	net, err = safemath.Sub(amount, fee)
	if err != nil {
		return 0, 0, err
	}
	return fee, net, nil
}

// SharesForDeposit returns the shares issued for a net deposit against an
// outcome with the given pool and share totals.
//
// The first buyer of an outcome gets one share per micro-unit. Afterward
// shares = floor(netIn / price) where price = floor(pool / shares).
func (c *Calculator) SharesForDeposit(pool, shares, netIn uint64) (uint64, error) {
	if shares == 0 {
		return netIn, nil
	}
	price, err := safemath.Div(pool, shares)
	if err != nil {
		return 0, err
	}
	return safemath.Div(netIn, price)
}

// SaleProceeds prices a sale of sellShares against an outcome's pool and
// share totals. The caller must have verified shares >= sellShares > 0, so
// the pool/share ratio is division-safe.
func (c *Calculator) SaleProceeds(pool, shares, sellShares uint64) (gross, fee, net uint64, err error) {
	price, err := safemath.Div(pool, shares)
	if err != nil {
		return 0, 0, 0, err
	}
	gross, err = safemath.Mul(sellShares, price)
	if err != nil {
		return 0, 0, 0, err
	}
	fee, net, err = c.Fee(gross)
	if err != nil {
		return 0, 0, 0, err
	}
	return gross, fee, net, nil
}

// CreatorAccrual returns the creator's 80% portion of a trade fee, the
// amount accrued into the market's fee vector at trade time.
func CreatorAccrual(fee uint64) (uint64, error) {
	return safemath.MulDiv(fee, model.FeeCreatorPercent, 100)
}

// FeeSplit is a three-way division of withdrawn trading fees. The shares
// always sum exactly to the input total.
type FeeSplit struct {
	Creator  uint64
	Invitor  uint64
	Platform uint64
}

// SplitFees divides a fee total 80% creator / 10% invitor / remainder
// platform. When no invitor is bound, the invitor share folds into the
// platform remainder. The platform takes the residual after the floored
// creator and invitor shares, so rounding never loses or mints a unit.
func SplitFees(total uint64, hasInvitor bool) (FeeSplit, error) {
	creator, err := safemath.MulDiv(total, model.FeeCreatorPercent, 100)
	if err != nil {
		return FeeSplit{}, err
	}
	var invitor uint64
	if hasInvitor {
		invitor, err = safemath.MulDiv(total, model.FeeInvitorPercent, 100)
		if err != nil {
			return FeeSplit{}, err
		}
	}
	rest, err := safemath.Sub(total, creator)
	if err != nil {
		return FeeSplit{}, err
	}
	platform, err := safemath.Sub(rest, invitor)
	if err != nil {
		return FeeSplit{}, err
	}
	return FeeSplit{Creator: creator, Invitor: invitor, Platform: platform}, nil
}

// RedemptionPerShare returns the floor payout rate for winning shares:
// floor(totalPool / winningShares outstanding).
func RedemptionPerShare(totalPool, winningShares uint64) (uint64, error) {
	return safemath.Div(totalPool, winningShares)
}

// OddsBps returns each outcome's share of the total pool in basis points.
// An empty market quotes uniform odds, avoiding division by zero. Floor
// truncation means the sum can fall short of 10000 by up to n-1, never
// exceed it.
func OddsBps(pools []uint64) ([]uint64, error) {
	if len(pools) == 0 {
		return nil, model.ErrOutcomeCountMismatch
	}
	odds := make([]uint64, len(pools))
	var total uint64
	var err error
	for _, p := range pools {
		total, err = safemath.Add(total, p)
		if err != nil {
			return nil, err
		}
	}
	if total == 0 {
		uniform := model.BpsDenominator / uint64(len(pools))
		for i := range odds {
			odds[i] = uniform
		}
		return odds, nil
	}
	for i, p := range pools {
		odds[i], err = safemath.MulDiv(p, model.BpsDenominator, total)
		if err != nil {
			return nil, err
		}
	}
	return odds, nil
}
