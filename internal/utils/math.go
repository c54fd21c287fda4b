package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Rounding selects the direction of an integer division.
type Rounding int

const (
	// Floor rounds toward zero. Used for principal and share conversions.
	Floor Rounding = iota
	// Ceil rounds away from zero. Used for anything charged against the user.
	Ceil
)

var ErrDivisionByZero = errors.New("division by zero")

// MulDiv computes x * y / denominator with the requested rounding.
func MulDiv(x, y, denominator sdkmath.Int, rounding Rounding) (sdkmath.Int, error) {
	if denominator.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	product, err := x.SafeMul(y)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("mulDiv overflow: %w", err)
	}
	quotient := product.Quo(denominator)
	if rounding == Ceil && !product.Mod(denominator).IsZero() {
		quotient = quotient.AddRaw(1)
	}
	return quotient, nil
}

// MulPercent applies a percentage expressed against base to amount.
func MulPercent(amount, percentage sdkmath.Int, base int64, rounding Rounding) (sdkmath.Int, error) {
	return MulDiv(amount, percentage, sdkmath.NewInt(base), rounding)
}

// Pow10 returns 10^decimals.
func Pow10(decimals uint8) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// SaturatingSub returns a - b, or zero when b exceeds a.
func SaturatingSub(a, b sdkmath.Int) sdkmath.Int {
	if b.GTE(a) {
		return sdkmath.ZeroInt()
	}
	return a.Sub(b)
}
