/*

This file contains the vault's share accounting. The vault keeps part of its assets idle for instant
withdrawals and dispatches the rest to a remote venue, tracked as principal priced by a trusted rate.

*/

package vault

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/access"
	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/token"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// Config holds everything needed to open a vault.
type Config struct {
	Address     common.Address
	Owner       common.Address
	FeeReceiver common.Address
	RemoteVenue common.Address
	Asset       *token.Ledger
	Shares      *token.Ledger
	Params      types.VaultParameters
}

// Ledger is the vault. All state lives behind the shared executor.
type Ledger struct {
	exec      *txn.Executor
	logger    zerolog.Logger
	address   common.Address
	asset     *token.Ledger
	shares    *token.Ledger
	roles     *access.Registry
	assetUnit sdkmath.Int

	investedPrincipal   sdkmath.Int
	exchangeRate        sdkmath.Int
	thresholdPercentage sdkmath.Int
	feePercentage       sdkmath.Int
	feeAbsoluteMinimum  sdkmath.Int
	feeReceiver         common.Address
	remoteVenue         common.Address
	withdrawalQueue     common.Address
}

// NewLedger opens a vault with no principal and an exchange rate of one asset unit per principal unit.
func NewLedger(exec *txn.Executor, cfg Config) (*Ledger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	roles, err := access.NewRegistry(exec, "vault", cfg.Owner, types.RoleRebalancer)
	if err != nil {
		return nil, err
	}
	unit := utils.Pow10(cfg.Params.AssetDecimals)
	return &Ledger{
		exec:                exec,
		logger:              logger.GetForComponent("vault"),
		address:             cfg.Address,
		asset:               cfg.Asset,
		shares:              cfg.Shares,
		roles:               roles,
		assetUnit:           unit,
		investedPrincipal:   sdkmath.ZeroInt(),
		exchangeRate:        unit,
		thresholdPercentage: cfg.Params.ThresholdPercentage,
		feePercentage:       cfg.Params.FeePercentage,
		feeAbsoluteMinimum:  cfg.Params.FeeAbsoluteMinimum,
		feeReceiver:         cfg.FeeReceiver,
		remoteVenue:         cfg.RemoteVenue,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Asset == nil || cfg.Shares == nil {
		return errorsmod.Wrap(types.ErrInvalidParams, "asset and share ledgers are required")
	}
	for name, addr := range map[string]common.Address{
		"vault address": cfg.Address,
		"fee receiver":  cfg.FeeReceiver,
		"remote venue":  cfg.RemoteVenue,
	} {
		if addr == (common.Address{}) {
			return errorsmod.Wrapf(types.ErrInvalidParams, "%s cannot be the zero address", name)
		}
	}
	if err := cfg.Params.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}
	if cfg.Params.AssetDecimals != cfg.Asset.Decimals() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "asset decimals %d do not match asset ledger decimals %d",
			cfg.Params.AssetDecimals, cfg.Asset.Decimals())
	}
	return nil
}

// Address returns the vault's identity on the asset ledger.
func (v *Ledger) Address() common.Address { return v.address }

// Asset returns the underlying asset ledger.
func (v *Ledger) Asset() *token.Ledger { return v.asset }

// Shares returns the share token ledger.
func (v *Ledger) Shares() *token.Ledger { return v.shares }

// Roles returns the vault's access registry.
func (v *Ledger) Roles() *access.Registry { return v.roles }

// IsAllowedRebalancer reports whether account may move funds between idle and remote.
func (v *Ledger) IsAllowedRebalancer(ctx context.Context, account common.Address) bool {
	return v.roles.IsAllowed(ctx, types.RoleRebalancer, account)
}

// The helpers below expect to run inside View or Atomic.

func (v *Ledger) idle(ctx context.Context) sdkmath.Int {
	return v.asset.BalanceOf(ctx, v.address)
}

func (v *Ledger) reserve(ctx context.Context) sdkmath.Int {
	if v.withdrawalQueue == (common.Address{}) {
		return sdkmath.ZeroInt()
	}
	return v.asset.BalanceOf(ctx, v.withdrawalQueue)
}

func (v *Ledger) valueOf(principal sdkmath.Int) (sdkmath.Int, error) {
	return utils.MulDiv(principal, v.exchangeRate, v.assetUnit, utils.Floor)
}

func (v *Ledger) totalAssets(ctx context.Context) (sdkmath.Int, error) {
	invested, err := v.valueOf(v.investedPrincipal)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v.idle(ctx).Add(invested).Add(v.reserve(ctx)), nil
}

func (v *Ledger) requiredIdle(total sdkmath.Int) (sdkmath.Int, error) {
	return utils.MulPercent(total, v.thresholdPercentage, types.PercentBase, utils.Ceil)
}

func (v *Ledger) toShares(ctx context.Context, assets sdkmath.Int, rounding utils.Rounding) (sdkmath.Int, error) {
	total, err := v.totalAssets(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply := v.shares.TotalSupply(ctx)
	return utils.MulDiv(assets, supply.AddRaw(1), total.AddRaw(1), rounding)
}

func (v *Ledger) toAssets(ctx context.Context, shares sdkmath.Int, rounding utils.Rounding) (sdkmath.Int, error) {
	total, err := v.totalAssets(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply := v.shares.TotalSupply(ctx)
	return utils.MulDiv(shares, total.AddRaw(1), supply.AddRaw(1), rounding)
}

func (v *Ledger) withdrawFee(assets sdkmath.Int) (sdkmath.Int, error) {
	fee, err := utils.MulPercent(assets, v.feePercentage, types.PercentBase, utils.Ceil)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.MaxInt(fee, v.feeAbsoluteMinimum), nil
}

func (v *Ledger) maxWithdraw(ctx context.Context, owner common.Address) (sdkmath.Int, error) {
	owned, err := v.toAssets(ctx, v.shares.BalanceOf(ctx, owner), utils.Floor)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.MinInt(owned, v.idle(ctx)), nil
}

func (v *Ledger) maxRedeem(ctx context.Context, owner common.Address) (sdkmath.Int, error) {
	coverable, err := v.toShares(ctx, v.idle(ctx), utils.Floor)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.MinInt(v.shares.BalanceOf(ctx, owner), coverable), nil
}

// viewInt runs read under the executor lock and returns its result.
func (v *Ledger) viewInt(ctx context.Context, read func(ctx context.Context) (sdkmath.Int, error)) (result sdkmath.Int, err error) {
	err = v.exec.View(ctx, func(ctx context.Context) (err error) {
		result, err = read(ctx)
		return err
	})
	return result, err
}

// TotalAssets returns idle + value of invested principal + queue reserve.
func (v *Ledger) TotalAssets(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, v.totalAssets)
}

// IdleBalance returns the assets held by the vault itself.
func (v *Ledger) IdleBalance(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.idle(ctx), nil
	})
}

// QueueReserve returns the assets held in custody by the linked withdrawal queue.
func (v *Ledger) QueueReserve(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.reserve(ctx), nil
	})
}

// InvestedPrincipal returns the principal units held at the remote venue.
func (v *Ledger) InvestedPrincipal(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(context.Context) (sdkmath.Int, error) {
		return v.investedPrincipal, nil
	})
}

// ExchangeRate returns the asset value of one principal unit, scaled by the asset unit.
func (v *Ledger) ExchangeRate(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(context.Context) (sdkmath.Int, error) {
		return v.exchangeRate, nil
	})
}

// RequiredIdle returns the idle amount the threshold demands at current total assets.
func (v *Ledger) RequiredIdle(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		total, err := v.totalAssets(ctx)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return v.requiredIdle(total)
	})
}

// MaxDispatchable returns the largest amount DispatchToRemote accepts right now.
func (v *Ledger) MaxDispatchable(ctx context.Context) (sdkmath.Int, error) {
	return v.viewInt(ctx, v.maxDispatchable)
}

func (v *Ledger) maxDispatchable(ctx context.Context) (sdkmath.Int, error) {
	total, err := v.totalAssets(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	required, err := v.requiredIdle(total)
	if err != nil {
		return sdkmath.Int{}, err
	}
	// Dispatch can only lower total assets through rounding, so required never grows.
	return utils.SaturatingSub(v.idle(ctx), required), nil
}

// ConvertToShares returns the shares assets are worth, rounding down.
func (v *Ledger) ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount("assets", assets); err != nil {
		return sdkmath.Int{}, err
	}
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.toShares(ctx, assets, utils.Floor)
	})
}

// ConvertToAssets returns the assets shares are worth, rounding down.
func (v *Ledger) ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount("shares", shares); err != nil {
		return sdkmath.Int{}, err
	}
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.toAssets(ctx, shares, utils.Floor)
	})
}

// PreviewDeposit returns the shares a deposit of assets would mint.
func (v *Ledger) PreviewDeposit(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	return v.ConvertToShares(ctx, assets)
}

// PreviewMint returns the assets needed to mint shares, rounding up.
func (v *Ledger) PreviewMint(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount("shares", shares); err != nil {
		return sdkmath.Int{}, err
	}
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.toAssets(ctx, shares, utils.Ceil)
	})
}

// PreviewWithdraw returns the shares burned to withdraw assets, rounding up.
func (v *Ledger) PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount("assets", assets); err != nil {
		return sdkmath.Int{}, err
	}
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.toShares(ctx, assets, utils.Ceil)
	})
}

// PreviewRedeem returns the assets shares redeem for, rounding down.
func (v *Ledger) PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	return v.ConvertToAssets(ctx, shares)
}

// MaxWithdraw returns the most assets owner can withdraw instantly.
func (v *Ledger) MaxWithdraw(ctx context.Context, owner common.Address) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.maxWithdraw(ctx, owner)
	})
}

// MaxRedeem returns the most shares owner can redeem instantly.
func (v *Ledger) MaxRedeem(ctx context.Context, owner common.Address) (sdkmath.Int, error) {
	return v.viewInt(ctx, func(ctx context.Context) (sdkmath.Int, error) {
		return v.maxRedeem(ctx, owner)
	})
}

// GetWithdrawFee returns max(ceil(assets * feePercentage / 1e8), feeAbsoluteMinimum).
func (v *Ledger) GetWithdrawFee(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount("assets", assets); err != nil {
		return sdkmath.Int{}, err
	}
	return v.viewInt(ctx, func(context.Context) (sdkmath.Int, error) {
		return v.withdrawFee(assets)
	})
}

// Status returns every accounting figure from one consistent read.
func (v *Ledger) Status(ctx context.Context) (status types.VaultStatus, err error) {
	err = v.exec.View(ctx, func(ctx context.Context) error {
		invested, err := v.valueOf(v.investedPrincipal)
		if err != nil {
			return err
		}
		total, err := v.totalAssets(ctx)
		if err != nil {
			return err
		}
		required, err := v.requiredIdle(total)
		if err != nil {
			return err
		}
		status = types.VaultStatus{
			Address:             v.address,
			AssetSymbol:         v.asset.Symbol(),
			AssetDecimals:       v.asset.Decimals(),
			IdleBalance:         v.idle(ctx),
			QueueReserve:        v.reserve(ctx),
			InvestedPrincipal:   v.investedPrincipal,
			InvestedValue:       invested,
			ExchangeRate:        v.exchangeRate,
			TotalAssets:         total,
			TotalShares:         v.shares.TotalSupply(ctx),
			ThresholdPercentage: v.thresholdPercentage,
			RequiredIdle:        required,
			MaxDispatchable:     utils.SaturatingSub(v.idle(ctx), required),
			FeePercentage:       v.feePercentage,
			FeeAbsoluteMinimum:  v.feeAbsoluteMinimum,
			FeeReceiver:         v.feeReceiver,
			RemoteVenue:         v.remoteVenue,
			WithdrawalQueue:     v.withdrawalQueue,
		}
		return nil
	})
	if err != nil {
		return types.VaultStatus{}, fmt.Errorf("failed to read vault status: %w", err)
	}
	return status, nil
}

func validateAmount(name string, amount sdkmath.Int) error {
	if amount.IsNil() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s is nil", name)
	}
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s %s is negative", name, amount)
	}
	return nil
}

func validatePositive(name string, amount sdkmath.Int) error {
	if err := validateAmount(name, amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s must be greater than zero", name)
	}
	return nil
}
