package model

import "errors"

// Sentinel errors for every failure class. Each operation either completes
// fully or fails with one of these and leaves no partial state behind; the
// HTTP layer maps them to status codes with errors.Is.
var (
	// Global gate.
	ErrProgramPaused = errors.New("program is currently paused")

	// Authorization.
	ErrUnauthorized      = errors.New("unauthorized: only authority can perform this action")
	ErrUserNotAuthorized = errors.New("user not authorized")

	// Lifecycle / state machine.
	ErrMarketNotResolved        = errors.New("market not resolved yet")
	ErrMarketAlreadyResolved    = errors.New("market already resolved")
	ErrResolutionTimeNotReached = errors.New("market resolution time not reached")
	ErrCreatorPegAlreadyClaimed = errors.New("creator peg already claimed")
	ErrCannotWithdrawUnresolved = errors.New("cannot withdraw from unresolved market")
	ErrInvitorAlreadySet        = errors.New("invitor already set for this user")
	ErrCannotInviteYourself     = errors.New("cannot invite yourself")
	ErrAlreadyInitialized       = errors.New("global state already initialized")
	ErrInvalidMarketState       = errors.New("invalid market state")

	// Validation.
	ErrInvalidOutcomeCount   = errors.New("invalid outcome count (must be 2-10)")
	ErrOutcomeCountMismatch  = errors.New("outcome count mismatch between labels and pools")
	ErrInvalidTradingFee     = errors.New("invalid trading fee (must be 1-500 bps)")
	ErrInvalidOutcomeIndex   = errors.New("invalid outcome index")
	ErrInvalidResolutionTime = errors.New("invalid resolution time")
	ErrStringTooLong         = errors.New("string too long")
	ErrReferralCodeInvalid   = errors.New("referral code invalid")
	ErrInvalidAmount         = errors.New("invalid amount")

	// Arithmetic.
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrMarketCalculationError = errors.New("market calculation error")

	// Liquidity.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares to sell")
	ErrNoWinningsToRedeem = errors.New("no winnings to redeem")
	ErrNoFeesToWithdraw   = errors.New("no fees to withdraw")

	// Referral registry.
	ErrProfileNotInitialized = errors.New("user has not initialized their profile")
)
