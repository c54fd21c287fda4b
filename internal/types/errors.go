/*

This file contains the error taxonomy shared by every ledger component.
Each kind is a registered error so callers can match it with errors.Is after wrapping.

*/

package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace of the liquidity vault engine.
const Codespace = "liquidvault"

var (
	// ErrInvalidParams is returned for zero, empty or out-of-range input.
	ErrInvalidParams = errorsmod.Register(Codespace, 2, "invalid parameters")
	// ErrUnauthorized is returned when the caller lacks the required role or ownership.
	ErrUnauthorized = errorsmod.Register(Codespace, 3, "unauthorized")
	// ErrBelowThreshold is returned when a dispatch would breach the idle-buffer threshold.
	ErrBelowThreshold = errorsmod.Register(Codespace, 4, "below threshold")
	// ErrFeeNotSet is returned when a queued withdrawal is executed before its penalty fee is negotiated.
	ErrFeeNotSet = errorsmod.Register(Codespace, 5, "penalty fee not set")
	// ErrExceedsMax is returned when a withdrawal or redemption exceeds the owner's entitlement.
	ErrExceedsMax = errorsmod.Register(Codespace, 6, "exceeds maximum")
	// ErrInsufficientFunds is returned by the token substrate when a balance cannot cover a debit.
	ErrInsufficientFunds = errorsmod.Register(Codespace, 7, "insufficient funds")
	// ErrInsufficientAllowance is returned by the token substrate when a spender's allowance is too small.
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 8, "insufficient allowance")
)

// ErrorKind returns the short name of the registered error wrapped by err, or "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrBelowThreshold):
		return "below_threshold"
	case errors.Is(err, ErrFeeNotSet):
		return "fee_not_set"
	case errors.Is(err, ErrExceedsMax):
		return "exceeds_max"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientAllowance):
		return "insufficient_allowance"
	default:
		return "internal"
	}
}
