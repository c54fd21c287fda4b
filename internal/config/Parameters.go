/*

This file contains the default parameters for the vault.

The defaults describe a USDC vault that keeps a tenth of its assets idle for instant withdrawals.
Environment variables can override each of them at startup; versioned sets in the database win over both.

*/

package config

import (
	"fmt"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// percentDecimals is the number of decimals a human percentage carries in types.PercentBase (1% = 1e6).
const percentDecimals = 6

// DefaultVaultParameters provides a baseline set of vault economics.
// These values are used if no active parameters are found in the database during initialization.
var DefaultVaultParameters = types.VaultParameters{
	AssetSymbol:   "USDC",
	AssetDecimals: 6,

	FeePercentage: sdkmath.NewInt(types.OnePercent / 2), // 0.5% for instant withdrawals.
	// Queued withdrawals settle without this fee, so it prices immediacy only.

	FeeAbsoluteMinimum: sdkmath.NewInt(1_000_000), // 1 USDC floor.

	ThresholdPercentage: sdkmath.NewInt(10 * types.OnePercent), // 10% of total assets stays idle.
	// Dispatches that would push idle below this are refused.
}

// Parameters is the set the daemon boots with, DefaultVaultParameters plus environment overrides.
var Parameters types.VaultParameters

// loadParameterConfig applies ASSET_SYMBOL, ASSET_DECIMALS, FEE_PERCENTAGE, FEE_ABSOLUTE_MINIMUM and
// THRESHOLD_PERCENTAGE over the defaults. Percentages are human values ("0.5" is 0.5%); the fee minimum
// is in whole asset units.
func loadParameterConfig() error {
	p := DefaultVaultParameters

	if v, ok := os.LookupEnv("ASSET_SYMBOL"); ok && v != "" {
		p.AssetSymbol = v
	}
	if v, ok := os.LookupEnv("ASSET_DECIMALS"); ok && v != "" {
		decimals, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("environment variable ASSET_DECIMALS must be a uint8, got: %s", v)
		}
		p.AssetDecimals = uint8(decimals)
	}

	var err error
	if p.FeePercentage, err = percentFromEnv("FEE_PERCENTAGE", p.FeePercentage); err != nil {
		return err
	}
	if p.ThresholdPercentage, err = percentFromEnv("THRESHOLD_PERCENTAGE", p.ThresholdPercentage); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("FEE_ABSOLUTE_MINIMUM"); ok && v != "" {
		p.FeeAbsoluteMinimum, err = utils.ParseUnits(v, p.AssetDecimals)
		if err != nil {
			return fmt.Errorf("environment variable FEE_ABSOLUTE_MINIMUM: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid vault parameters: %w", err)
	}
	Parameters = p

	log.Debug().
		Str("asset", p.AssetSymbol).
		Uint8("decimals", p.AssetDecimals).
		Str("fee_percentage", p.FeePercentage.String()).
		Str("threshold_percentage", p.ThresholdPercentage.String()).
		Msg("Vault parameters loaded.")
	return nil
}

func percentFromEnv(key string, fallback sdkmath.Int) (sdkmath.Int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	pct, err := utils.ParseUnits(v, percentDecimals)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("environment variable %s: %w", key, err)
	}
	return pct, nil
}
