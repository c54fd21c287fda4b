package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// Deposit pulls assets from caller and mints the corresponding shares to receiver.
// The caller must have approved the vault on the asset ledger.
func (v *Ledger) Deposit(ctx context.Context, caller common.Address, assets sdkmath.Int, receiver common.Address) (shares sdkmath.Int, err error) {
	if err := validatePositive("assets", assets); err != nil {
		return sdkmath.Int{}, err
	}
	err = v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		shares, err = v.toShares(ctx, assets, utils.Floor)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			return errorsmod.Wrapf(types.ErrInvalidParams, "deposit of %s assets mints no shares", assets)
		}
		return v.enter(ctx, tx, caller, receiver, assets, shares)
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return shares, nil
}

// Mint mints exactly shares to receiver, pulling the required assets from caller rounded up.
func (v *Ledger) Mint(ctx context.Context, caller common.Address, shares sdkmath.Int, receiver common.Address) (assets sdkmath.Int, err error) {
	if err := validatePositive("shares", shares); err != nil {
		return sdkmath.Int{}, err
	}
	err = v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		assets, err = v.toAssets(ctx, shares, utils.Ceil)
		if err != nil {
			return err
		}
		return v.enter(ctx, tx, caller, receiver, assets, shares)
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return assets, nil
}

func (v *Ledger) enter(ctx context.Context, tx *txn.Tx, caller, receiver common.Address, assets, shares sdkmath.Int) error {
	if receiver == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "receiver cannot be the zero address")
	}
	if err := v.asset.TransferFrom(ctx, v.address, caller, v.address, assets); err != nil {
		return err
	}
	if err := v.shares.Mint(ctx, receiver, shares); err != nil {
		return err
	}
	tx.Emit(types.Deposit{Caller: caller, Receiver: receiver, Assets: assets, Shares: shares})

	v.logger.Info().
		Str("caller", caller.Hex()).
		Str("receiver", receiver.Hex()).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Deposit accepted")
	return nil
}

// Withdraw sends assets minus the withdrawal fee to receiver, burning owner's shares for the full amount.
// Instant withdrawals are bounded by the idle balance; larger exits go through the withdrawal queue.
func (v *Ledger) Withdraw(ctx context.Context, caller common.Address, assets sdkmath.Int, receiver, owner common.Address) (shares sdkmath.Int, err error) {
	if err := validatePositive("assets", assets); err != nil {
		return sdkmath.Int{}, err
	}
	err = v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		limit, err := v.maxWithdraw(ctx, owner)
		if err != nil {
			return err
		}
		if assets.GT(limit) {
			return errorsmod.Wrapf(types.ErrExceedsMax, "withdraw of %s exceeds max %s for %s", assets, limit, owner.Hex())
		}
		shares, err = v.toShares(ctx, assets, utils.Ceil)
		if err != nil {
			return err
		}
		return v.exit(ctx, tx, caller, receiver, owner, assets, shares)
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return shares, nil
}

// Redeem burns shares from owner and sends their value minus the withdrawal fee to receiver.
// The returned amount is the pre-fee asset value.
func (v *Ledger) Redeem(ctx context.Context, caller common.Address, shares sdkmath.Int, receiver, owner common.Address) (assets sdkmath.Int, err error) {
	if err := validatePositive("shares", shares); err != nil {
		return sdkmath.Int{}, err
	}
	err = v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		limit, err := v.maxRedeem(ctx, owner)
		if err != nil {
			return err
		}
		if shares.GT(limit) {
			return errorsmod.Wrapf(types.ErrExceedsMax, "redeem of %s exceeds max %s for %s", shares, limit, owner.Hex())
		}
		assets, err = v.toAssets(ctx, shares, utils.Floor)
		if err != nil {
			return err
		}
		return v.exit(ctx, tx, caller, receiver, owner, assets, shares)
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return assets, nil
}

func (v *Ledger) exit(ctx context.Context, tx *txn.Tx, caller, receiver, owner common.Address, assets, shares sdkmath.Int) error {
	if receiver == (common.Address{}) || owner == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "receiver and owner cannot be the zero address")
	}
	fee, err := v.withdrawFee(assets)
	if err != nil {
		return err
	}
	if fee.GT(assets) {
		return errorsmod.Wrapf(types.ErrInvalidParams, "withdrawal fee %s exceeds assets %s", fee, assets)
	}

	if caller != owner {
		if err := v.shares.SpendAllowance(ctx, owner, caller, shares); err != nil {
			return err
		}
	}
	if err := v.shares.Burn(ctx, owner, shares); err != nil {
		return err
	}
	if fee.IsPositive() {
		if err := v.asset.Transfer(ctx, v.address, v.feeReceiver, fee); err != nil {
			return err
		}
	}
	net := assets.Sub(fee)
	if net.IsPositive() {
		if err := v.asset.Transfer(ctx, v.address, receiver, net); err != nil {
			return err
		}
	}

	tx.Emit(types.Withdraw{Caller: caller, Receiver: receiver, Owner: owner, Assets: assets, Shares: shares})
	tx.Emit(types.FeeCollected{Receiver: v.feeReceiver, Fee: fee})

	v.logger.Info().
		Str("owner", owner.Hex()).
		Str("receiver", receiver.Hex()).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Str("fee", fee.String()).
		Msg("Instant withdrawal settled")
	return nil
}
