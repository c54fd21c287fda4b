/*
This file contains common utility functions for converting amounts between their raw integer
representation and human-readable decimal strings.
*/

package utils

import (
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance amount handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrConversionFailed = errors.New("conversion failed")
	ErrTooManyDecimals  = errors.New("amount has more decimal places than the asset supports")
)

// MaxDecimals is the largest asset precision accepted by the conversion helpers.
const MaxDecimals = 36

// ParseAmount parses a raw base-unit integer string such as "1500000".
func ParseAmount(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.Int{}, ErrAmountNil
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, s)
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}
	return amount, nil
}

// FormatUnits renders a raw amount in whole asset units, e.g. 1500000 with 6 decimals is "1.5".
func FormatUnits(amount sdkmath.Int, decimals uint8) (string, error) {
	if decimals > MaxDecimals {
		return "", fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidPrecision, decimals, MaxDecimals)
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}
	return decimal.NewFromBigInt(amount.BigInt(), -int32(decimals)).String(), nil
}

// ParseUnits converts a human-readable amount such as "1.5" into raw base units.
// Amounts with more fractional digits than the asset supports are rejected rather than truncated.
func ParseUnits(s string, decimals uint8) (sdkmath.Int, error) {
	if decimals > MaxDecimals {
		return sdkmath.Int{}, fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidPrecision, decimals, MaxDecimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.Int{}, ErrAmountNil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if d.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return sdkmath.Int{}, fmt.Errorf("%w: %s with %d decimals", ErrTooManyDecimals, s, decimals)
	}
	return sdkmath.NewIntFromBigInt(scaled.BigInt()), nil
}
