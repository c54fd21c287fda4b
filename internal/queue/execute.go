package queue

import (
	"context"
	"slices"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// SetPenaltyFee negotiates the absolute penalty of a request. The fee must be positive and within the
// maximum the owner accepted at queue time. Setting it again overwrites the previous value.
func (q *Queue) SetPenaltyFee(ctx context.Context, caller common.Address, id common.Hash, fee sdkmath.Int) error {
	return q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := q.roles.RequireRole(ctx, types.RoleFeeSetter, caller); err != nil {
			return err
		}
		req, ok := q.requests[id]
		if !ok {
			return errorsmod.Wrapf(types.ErrInvalidParams, "request %s does not exist", id.Hex())
		}
		if fee.IsNil() || !fee.IsPositive() {
			return errorsmod.Wrap(types.ErrInvalidParams, "penalty fee must be greater than zero")
		}
		if fee.GT(req.MaxPenaltyFee) {
			return errorsmod.Wrapf(types.ErrInvalidParams, "penalty fee %s exceeds max %s", fee, req.MaxPenaltyFee)
		}

		req.PenaltyFee = fee
		txn.SetKey(tx, q.requests, id, req)
		tx.Emit(types.PenaltyFeeSet{ID: id, Setter: caller, Fee: fee})

		q.logger.Info().
			Str("id", id.Hex()).
			Str("setter", caller.Hex()).
			Str("fee", fee.String()).
			Msg("Penalty fee set")
		return nil
	})
}

// ExecuteExcessWithdraw settles a request whose penalty fee is set. Anyone may call it.
// The payout is the value of the locked shares now, not the estimate recorded at queue time.
func (q *Queue) ExecuteExcessWithdraw(ctx context.Context, caller common.Address, id common.Hash) (executed types.WithdrawalExecuted, err error) {
	err = q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		req, ok := q.requests[id]
		if !ok {
			return errorsmod.Wrapf(types.ErrInvalidParams, "request %s does not exist", id.Hex())
		}
		executed, err = q.execute(ctx, tx, caller, req)
		return err
	})
	if err != nil {
		return types.WithdrawalExecuted{}, err
	}
	return executed, nil
}

// ExecuteReceiverRequests settles every ready request addressed to receiver in one unit.
// Requests still awaiting a fee are left in place. A receiver without requests is a no-op.
func (q *Queue) ExecuteReceiverRequests(ctx context.Context, caller, receiver common.Address) (executed []types.WithdrawalExecuted, err error) {
	err = q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		ids := slices.Clone(q.byReceiver[receiver])
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			req := q.requests[id]
			if req.Status() != types.StatusReady {
				continue
			}
			result, err := q.execute(ctx, tx, caller, req)
			if err != nil {
				return err
			}
			executed = append(executed, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return executed, nil
}

func (q *Queue) execute(ctx context.Context, tx *txn.Tx, caller common.Address, req types.WithdrawalRequest) (types.WithdrawalExecuted, error) {
	if req.Status() != types.StatusReady {
		return types.WithdrawalExecuted{}, errorsmod.Wrapf(types.ErrFeeNotSet, "request %s has no penalty fee", req.ID.Hex())
	}

	txn.DeleteKey(tx, q.requests, req.ID)
	q.unindex(tx, req.Receiver, req.ID)

	value, vaultFee, err := q.vault.RedeemQueued(ctx, q.address, req.Shares)
	if err != nil {
		return types.WithdrawalExecuted{}, err
	}
	txn.Set(tx, &q.totalQueuedAssets, utils.SaturatingSub(q.totalQueuedAssets, value))

	net := value.Sub(vaultFee)
	fee := sdkmath.MinInt(req.PenaltyFee, net)
	paid := net.Sub(fee)
	if paid.IsPositive() {
		if err := q.asset.Transfer(ctx, q.address, req.Receiver, paid); err != nil {
			return types.WithdrawalExecuted{}, err
		}
	}
	if fee.IsPositive() {
		if err := q.asset.Transfer(ctx, q.address, q.penaltyFeeReceiver, fee); err != nil {
			return types.WithdrawalExecuted{}, err
		}
	}

	executed := types.WithdrawalExecuted{
		ID:         req.ID,
		Caller:     caller,
		Receiver:   req.Receiver,
		Shares:     req.Shares,
		Assets:     value,
		VaultFee:   vaultFee,
		PenaltyFee: fee,
		Paid:       paid,
	}
	tx.Emit(executed)

	q.logger.Info().
		Str("id", req.ID.Hex()).
		Str("receiver", req.Receiver.Hex()).
		Str("shares", req.Shares.String()).
		Str("value", value.String()).
		Str("vault_fee", vaultFee.String()).
		Str("penalty_fee", fee.String()).
		Str("paid", paid.String()).
		Msg("Queued withdrawal executed")
	return executed, nil
}
