package model

// USDC uses 6 decimal places; all amounts are micro-USDC.
const UsdcDecimals = 6

// Market creation fee and its breakdown. The shares must sum to the total.
const (
	MarketCreationFee uint64 = 5_000_000 // 5 USDC

	MarketFeePlatformShare uint64 = 2_000_000 // $2
	MarketFeeInvitorShare  uint64 = 1_800_000 // $1.80
	MarketFeeReferrerShare uint64 = 200_000   // $0.20
	MarketFeeCreatorPeg    uint64 = 1_000_000 // $1, refundable after resolution
)

// Trading fee distribution: 80% creator, 10% invitor, 10% platform.
const (
	FeeCreatorPercent  uint64 = 80
	FeeInvitorPercent  uint64 = 10
	FeePlatformPercent uint64 = 10
)

// Outcome count bounds per market.
const (
	MinOutcomes = 2
	MaxOutcomes = 10
)

// Trading fee bounds in basis points.
const (
	MinTradingFeeBps uint16 = 1   // 0.01%
	MaxTradingFeeBps uint16 = 500 // 5%
)

// Maximum string lengths.
const (
	MaxOutcomeLabelLen = 20
	MaxReferralCodeLen = 20
	MaxTagLen          = 15
	MaxTagsPerMarket   = 5
)

// Resolution time window relative to creation.
const (
	MinResolutionTimeSecs int64 = 60          // 1 minute
	MaxResolutionTimeSecs int64 = 315_360_000 // 10 years
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator uint64 = 10_000
