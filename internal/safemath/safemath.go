// Package safemath provides overflow-checked uint64 arithmetic for the
// accounting core. Every arithmetic step in pricing, fee extraction, and
// redemption goes through these helpers; any overflow or underflow aborts
// the enclosing operation, never wraps.
package safemath

import (
	"math/bits"

	"github.com/beliefmarket/market-engine/internal/model"
)

// Add returns a+b, or ErrArithmeticOverflow if the sum wraps.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, model.ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrArithmeticOverflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, model.ErrArithmeticOverflow
	}
	return diff, nil
}

// Mul returns a*b, or ErrArithmeticOverflow if the product exceeds 64 bits.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, model.ErrArithmeticOverflow
	}
	return lo, nil
}

// Div returns floor(a/b), or ErrMarketCalculationError on division by zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, model.ErrMarketCalculationError
	}
	return a / b, nil
}

// MulDiv returns floor(a*b/c) with a 128-bit intermediate, so percentage
// and basis-point computations cannot overflow before the division.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, model.ErrMarketCalculationError
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		// Quotient would not fit in 64 bits.
		return 0, model.ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}
