/*

This file contains the tunable parameters of the vault and the fixed-point percentage scale they use.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const (
	// PercentBase represents 100%.
	PercentBase int64 = 100_000_000
	// OnePercent is the granularity of one percentage point.
	OnePercent int64 = 1_000_000
)

// VaultParameters holds the owner-tunable economics of a vault deployment.
// Percentages are expressed against PercentBase.
type VaultParameters struct {
	AssetSymbol         string      `json:"asset_symbol"`         // e.g. "USDC"
	AssetDecimals       uint8       `json:"asset_decimals"`       // e.g. 6
	FeePercentage       sdkmath.Int `json:"fee_percentage"`       // Instant-withdrawal fee rate
	FeeAbsoluteMinimum  sdkmath.Int `json:"fee_absolute_minimum"` // Floor of the instant-withdrawal fee, in asset units
	ThresholdPercentage sdkmath.Int `json:"threshold_percentage"` // Fraction of total assets that must stay idle
}

// Validate checks the parameters for values the ledger would reject.
func (p VaultParameters) Validate() error {
	if p.AssetSymbol == "" {
		return fmt.Errorf("asset symbol cannot be empty")
	}
	if p.AssetDecimals > 36 {
		return fmt.Errorf("asset decimals must be at most 36, got %d", p.AssetDecimals)
	}
	if err := validatePercentage("fee percentage", p.FeePercentage); err != nil {
		return err
	}
	if err := validatePercentage("threshold percentage", p.ThresholdPercentage); err != nil {
		return err
	}
	if p.FeeAbsoluteMinimum.IsNil() || p.FeeAbsoluteMinimum.IsNegative() {
		return fmt.Errorf("fee absolute minimum must be non-negative")
	}
	return nil
}

func validatePercentage(name string, v sdkmath.Int) error {
	if v.IsNil() || v.IsNegative() {
		return fmt.Errorf("%s must be non-negative", name)
	}
	if v.GT(sdkmath.NewInt(PercentBase)) {
		return fmt.Errorf("%s must not exceed %d, got %s", name, PercentBase, v)
	}
	return nil
}
