// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/types"
)

// SaveVaultParameters saves a new version of vault parameters, optionally making it the active one.
func SaveVaultParameters(params types.VaultParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid vault parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		_, err = tx.Exec(`UPDATE vault_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO vault_parameters (
			version, config_name, is_active, activated_at, created_at,
			asset_symbol, asset_decimals,
			fee_percentage, fee_absolute_minimum, threshold_percentage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING params_id;`

	now := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, now, now,
		params.AssetSymbol, int(params.AssetDecimals),
		params.FeePercentage.String(), params.FeeAbsoluteMinimum.String(), params.ThresholdPercentage.String(),
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return paramsID, nil
}

// LoadActiveVaultParameters loads the currently active vault parameters.
func LoadActiveVaultParameters(configName string) (*types.VaultParameters, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT asset_symbol, asset_decimals, fee_percentage, fee_absolute_minimum, threshold_percentage
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var (
		p                     types.VaultParameters
		decimals              int
		feePct, feeMin, thPct string
	)
	err := DB.QueryRow(query, configName).Scan(&p.AssetSymbol, &decimals, &feePct, &feeMin, &thPct)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no active vault parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active vault parameters for config '%s': %w", configName, err)
	}
	if decimals < 0 || decimals > 255 {
		return nil, fmt.Errorf("stored asset decimals %d out of range", decimals)
	}
	p.AssetDecimals = uint8(decimals)

	for _, field := range []struct {
		name string
		raw  string
		dst  *sdkmath.Int
	}{
		{"fee_percentage", feePct, &p.FeePercentage},
		{"fee_absolute_minimum", feeMin, &p.FeeAbsoluteMinimum},
		{"threshold_percentage", thPct, &p.ThresholdPercentage},
	} {
		v, ok := sdkmath.NewIntFromString(field.raw)
		if !ok {
			return nil, fmt.Errorf("stored %s %q is not an integer", field.name, field.raw)
		}
		*field.dst = v
	}

	log.Info().Str("config", configName).Msg("Loaded active vault parameters")
	return &p, nil
}

// GetActiveVaultParametersID returns the params_id of the active parameters, or nil when none is active.
func GetActiveVaultParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT params_id
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var paramsID int64
	if err := DB.QueryRow(query, configName).Scan(&paramsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("config", configName).Msg("No active vault parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active vault parameters ID for config '%s': %w", configName, err)
	}
	return &paramsID, nil
}
