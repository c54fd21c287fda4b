package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

// SetFeePercentage sets the instant-withdrawal fee rate.
func (v *Ledger) SetFeePercentage(ctx context.Context, caller common.Address, percentage sdkmath.Int) error {
	if err := validatePercentage("fee percentage", percentage); err != nil {
		return err
	}
	return v.setInt(ctx, caller, "fee_percentage", &v.feePercentage, percentage)
}

// SetThresholdPercentage sets the fraction of total assets that dispatches must leave idle.
func (v *Ledger) SetThresholdPercentage(ctx context.Context, caller common.Address, percentage sdkmath.Int) error {
	if err := validatePercentage("threshold percentage", percentage); err != nil {
		return err
	}
	return v.setInt(ctx, caller, "threshold_percentage", &v.thresholdPercentage, percentage)
}

// SetFeeAbsoluteMinimum sets the floor of the instant-withdrawal fee.
func (v *Ledger) SetFeeAbsoluteMinimum(ctx context.Context, caller common.Address, minimum sdkmath.Int) error {
	if err := validateAmount("fee absolute minimum", minimum); err != nil {
		return err
	}
	return v.setInt(ctx, caller, "fee_absolute_minimum", &v.feeAbsoluteMinimum, minimum)
}

// SetFeeReceiver sets who collects instant-withdrawal fees.
func (v *Ledger) SetFeeReceiver(ctx context.Context, caller, receiver common.Address) error {
	return v.setAddress(ctx, caller, "fee_receiver", &v.feeReceiver, receiver)
}

// SetRemoteVenue sets the destination of dispatched assets.
func (v *Ledger) SetRemoteVenue(ctx context.Context, caller, remote common.Address) error {
	return v.setAddress(ctx, caller, "remote_venue", &v.remoteVenue, remote)
}

// SetWithdrawalQueue links the queue whose custody counts toward total assets.
func (v *Ledger) SetWithdrawalQueue(ctx context.Context, caller, queue common.Address) error {
	return v.setAddress(ctx, caller, "withdrawal_queue", &v.withdrawalQueue, queue)
}

// SetRebalancer grants or revokes the rebalancer role.
func (v *Ledger) SetRebalancer(ctx context.Context, caller, account common.Address, allowed bool) error {
	return v.roles.SetRole(ctx, caller, types.RoleRebalancer, account, allowed)
}

// TransferOwnership hands the vault's admin rights to newOwner.
func (v *Ledger) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return v.roles.TransferOwnership(ctx, caller, newOwner)
}

func (v *Ledger) setInt(ctx context.Context, caller common.Address, name string, field *sdkmath.Int, value sdkmath.Int) error {
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireOwner(ctx, caller); err != nil {
			return err
		}
		previous := *field
		txn.Set(tx, field, value)
		tx.Emit(types.ParameterChanged{Component: "vault", Name: name, Previous: previous.String(), Current: value.String()})
		v.logger.Info().Str("parameter", name).Str("previous", previous.String()).Str("current", value.String()).Msg("Vault parameter updated")
		return nil
	})
}

func (v *Ledger) setAddress(ctx context.Context, caller common.Address, name string, field *common.Address, value common.Address) error {
	if value == (common.Address{}) {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s cannot be the zero address", name)
	}
	return v.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := v.roles.RequireOwner(ctx, caller); err != nil {
			return err
		}
		previous := *field
		txn.Set(tx, field, value)
		tx.Emit(types.ParameterChanged{Component: "vault", Name: name, Previous: previous.Hex(), Current: value.Hex()})
		v.logger.Info().Str("parameter", name).Str("previous", previous.Hex()).Str("current", value.Hex()).Msg("Vault parameter updated")
		return nil
	})
}

func validatePercentage(name string, percentage sdkmath.Int) error {
	if err := validateAmount(name, percentage); err != nil {
		return err
	}
	if percentage.GT(sdkmath.NewInt(types.PercentBase)) {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s %s exceeds %d", name, percentage, types.PercentBase)
	}
	return nil
}

// Parameters returns the current owner-tunable economics.
func (v *Ledger) Parameters(ctx context.Context) (params types.VaultParameters) {
	_ = v.exec.View(ctx, func(context.Context) error {
		params = types.VaultParameters{
			AssetSymbol:         v.asset.Symbol(),
			AssetDecimals:       v.asset.Decimals(),
			FeePercentage:       v.feePercentage,
			FeeAbsoluteMinimum:  v.feeAbsoluteMinimum,
			ThresholdPercentage: v.thresholdPercentage,
		}
		return nil
	})
	return params
}
