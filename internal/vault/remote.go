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

// DispatchToRemote moves amount of idle assets to the remote venue and books the principal it buys.
// The idle balance left behind must still cover the threshold share of total assets.
func (v *Ledger) DispatchToRemote(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if err := validatePositive("amount", amount); err != nil {
		return err
	}
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireRole(ctx, types.RoleRebalancer, caller); err != nil {
			return err
		}
		if v.remoteVenue == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "remote venue is not set")
		}
		idle := v.idle(ctx)
		if amount.GT(idle) {
			return errorsmod.Wrapf(types.ErrInsufficientFunds, "dispatch of %s exceeds idle balance %s", amount, idle)
		}

		delta, err := utils.MulDiv(amount, v.assetUnit, v.exchangeRate, utils.Floor)
		if err != nil {
			return err
		}
		if delta.IsZero() {
			return errorsmod.Wrapf(types.ErrInvalidParams,
				"dispatch of %s buys no principal at exchange rate %s", amount, v.exchangeRate)
		}
		principal := v.investedPrincipal.Add(delta)
		invested, err := v.valueOf(principal)
		if err != nil {
			return err
		}
		idleAfter := idle.Sub(amount)
		required, err := v.requiredIdle(idleAfter.Add(invested).Add(v.reserve(ctx)))
		if err != nil {
			return err
		}
		if idleAfter.LT(required) {
			return errorsmod.Wrapf(types.ErrBelowThreshold,
				"idle after dispatch %s is below required %s", idleAfter, required)
		}

		if err := v.asset.Transfer(ctx, v.address, v.remoteVenue, amount); err != nil {
			return err
		}
		txn.Set(tx, &v.investedPrincipal, principal)
		tx.Emit(types.Dispatched{
			Remote:            v.remoteVenue,
			Amount:            amount,
			PrincipalDelta:    delta,
			InvestedPrincipal: principal,
		})

		v.logger.Info().
			Str("amount", amount.String()).
			Str("principal_delta", delta.String()).
			Str("invested_principal", principal.String()).
			Str("idle_after", idleAfter.String()).
			Msg("Dispatched to remote venue")
		return nil
	})
}

// RepatriateFromRemote pulls amount back from the remote venue, which must have approved the vault.
// No threshold check applies since idle only grows.
func (v *Ledger) RepatriateFromRemote(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if err := validatePositive("amount", amount); err != nil {
		return err
	}
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireRole(ctx, types.RoleRebalancer, caller); err != nil {
			return err
		}
		delta, err := utils.MulDiv(amount, v.assetUnit, v.exchangeRate, utils.Floor)
		if err != nil {
			return err
		}
		if delta.GT(v.investedPrincipal) {
			return errorsmod.Wrapf(types.ErrInvalidParams,
				"repatriation of %s (%s principal) exceeds invested principal %s", amount, delta, v.investedPrincipal)
		}
		if err := v.asset.TransferFrom(ctx, v.address, v.remoteVenue, v.address, amount); err != nil {
			return err
		}
		principal := v.investedPrincipal.Sub(delta)
		txn.Set(tx, &v.investedPrincipal, principal)
		tx.Emit(types.Repatriated{
			Remote:            v.remoteVenue,
			Amount:            amount,
			PrincipalDelta:    delta,
			InvestedPrincipal: principal,
		})

		v.logger.Info().
			Str("amount", amount.String()).
			Str("principal_delta", delta.String()).
			Str("invested_principal", principal.String()).
			Msg("Repatriated from remote venue")
		return nil
	})
}

// UpdateExchangeRate overwrites the remote venue's price of one principal unit.
// The value is trusted; only zero is refused because it would make conversion undefined.
func (v *Ledger) UpdateExchangeRate(ctx context.Context, caller common.Address, rate sdkmath.Int) error {
	if err := validatePositive("exchange rate", rate); err != nil {
		return err
	}
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireRole(ctx, types.RoleRebalancer, caller); err != nil {
			return err
		}
		previous := v.exchangeRate
		txn.Set(tx, &v.exchangeRate, rate)
		tx.Emit(types.ExchangeRateUpdated{Caller: caller, Previous: previous, Current: rate})

		v.logger.Warn().
			Str("caller", caller.Hex()).
			Str("previous", previous.String()).
			Str("current", rate.String()).
			Msg("Exchange rate overwritten")
		return nil
	})
}

// ForwardToQueue moves idle assets into the withdrawal queue's custody.
func (v *Ledger) ForwardToQueue(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if err := validatePositive("amount", amount); err != nil {
		return err
	}
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireRole(ctx, types.RoleRebalancer, caller); err != nil {
			return err
		}
		if v.withdrawalQueue == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "withdrawal queue is not linked")
		}
		if err := v.asset.Transfer(ctx, v.address, v.withdrawalQueue, amount); err != nil {
			return err
		}
		tx.Emit(types.ForwardedToQueue{Queue: v.withdrawalQueue, Amount: amount})

		v.logger.Info().
			Str("queue", v.withdrawalQueue.Hex()).
			Str("amount", amount.String()).
			Msg("Forwarded to withdrawal queue")
		return nil
	})
}

// RedeemQueued burns shares held by the withdrawal queue and settles their current value in its custody.
// The vault's withdrawal fee is charged on that value, capped at the value itself, and moved from custody to
// the fee receiver. The queue's custody is topped up from idle when it does not cover the value.
func (v *Ledger) RedeemQueued(ctx context.Context, caller common.Address, shares sdkmath.Int) (assets, fee sdkmath.Int, err error) {
	if err := validatePositive("shares", shares); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	err = v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		if v.withdrawalQueue == (common.Address{}) || caller != v.withdrawalQueue {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the linked withdrawal queue", caller.Hex())
		}
		assets, err = v.toAssets(ctx, shares, utils.Floor)
		if err != nil {
			return err
		}
		fee, err = v.withdrawFee(assets)
		if err != nil {
			return err
		}
		fee = sdkmath.MinInt(fee, assets)

		if shortfall := utils.SaturatingSub(assets, v.reserve(ctx)); shortfall.IsPositive() {
			if err := v.asset.Transfer(ctx, v.address, v.withdrawalQueue, shortfall); err != nil {
				return errorsmod.Wrapf(types.ErrInsufficientFunds, "cannot cover queue shortfall %s: %v", shortfall, err)
			}
			tx.Emit(types.ForwardedToQueue{Queue: v.withdrawalQueue, Amount: shortfall})
		}
		if err := v.shares.Burn(ctx, v.withdrawalQueue, shares); err != nil {
			return err
		}
		if fee.IsPositive() {
			if err := v.asset.Transfer(ctx, v.withdrawalQueue, v.feeReceiver, fee); err != nil {
				return err
			}
		}
		tx.Emit(types.Withdraw{
			Caller:   caller,
			Receiver: v.withdrawalQueue,
			Owner:    v.withdrawalQueue,
			Assets:   assets,
			Shares:   shares,
		})
		tx.Emit(types.FeeCollected{Receiver: v.feeReceiver, Fee: fee})
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return assets, fee, nil
}
