package queue

import (
	"context"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// Request returns the outstanding request with id.
func (q *Queue) Request(ctx context.Context, id common.Hash) (req types.WithdrawalRequest, found bool) {
	_ = q.exec.View(ctx, func(context.Context) error {
		req, found = q.requests[id]
		return nil
	})
	return req, found
}

// RequestsByReceiver returns the receiver's outstanding requests in index order.
func (q *Queue) RequestsByReceiver(ctx context.Context, receiver common.Address) (reqs []types.WithdrawalRequest) {
	_ = q.exec.View(ctx, func(context.Context) error {
		for _, id := range q.byReceiver[receiver] {
			reqs = append(reqs, q.requests[id])
		}
		return nil
	})
	return reqs
}

// PendingRequests returns every outstanding request, oldest first.
func (q *Queue) PendingRequests(ctx context.Context) (reqs []types.WithdrawalRequest) {
	_ = q.exec.View(ctx, func(context.Context) error {
		reqs = make([]types.WithdrawalRequest, 0, len(q.requests))
		for _, req := range q.requests {
			reqs = append(reqs, req)
		}
		return nil
	})
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Nonce < reqs[j].Nonce })
	return reqs
}

// TotalQueuedAssets returns the running sum of asset estimates of outstanding requests.
func (q *Queue) TotalQueuedAssets(ctx context.Context) (total sdkmath.Int) {
	_ = q.exec.View(ctx, func(context.Context) error {
		total = q.totalQueuedAssets
		return nil
	})
	return total
}

// Reserve returns the assets in queue custody.
func (q *Queue) Reserve(ctx context.Context) sdkmath.Int {
	return q.asset.BalanceOf(ctx, q.address)
}

// Shortfall returns how much more the queue needs in custody to cover every outstanding estimate.
func (q *Queue) Shortfall(ctx context.Context) (shortfall sdkmath.Int) {
	_ = q.exec.View(ctx, func(ctx context.Context) error {
		shortfall = utils.SaturatingSub(q.totalQueuedAssets, q.asset.BalanceOf(ctx, q.address))
		return nil
	})
	return shortfall
}

// Summary sizes the outstanding liabilities from one consistent read.
func (q *Queue) Summary(ctx context.Context) (summary types.QueueSummary) {
	_ = q.exec.View(ctx, func(ctx context.Context) error {
		reserve := q.asset.BalanceOf(ctx, q.address)
		summary = types.QueueSummary{
			Address:           q.address,
			PendingRequests:   len(q.requests),
			TotalQueuedAssets: q.totalQueuedAssets,
			Reserve:           reserve,
			Shortfall:         utils.SaturatingSub(q.totalQueuedAssets, reserve),
		}
		for _, req := range q.requests {
			if req.Status() == types.StatusReady {
				summary.Ready++
			} else {
				summary.AwaitingFee++
			}
		}
		return nil
	})
	return summary
}

// IsAllowedFeeSetter reports whether account may negotiate penalty fees.
func (q *Queue) IsAllowedFeeSetter(ctx context.Context, account common.Address) bool {
	return q.roles.IsAllowed(ctx, types.RoleFeeSetter, account)
}

// IsAllowedFulfiller reports whether account may run the coordinator's fulfillment.
func (q *Queue) IsAllowedFulfiller(ctx context.Context, account common.Address) bool {
	return q.roles.IsAllowed(ctx, types.RoleFulfiller, account)
}

// PenaltyFeeReceiver returns who collects negotiated penalty fees.
func (q *Queue) PenaltyFeeReceiver(ctx context.Context) (receiver common.Address) {
	_ = q.exec.View(ctx, func(context.Context) error {
		receiver = q.penaltyFeeReceiver
		return nil
	})
	return receiver
}

func (q *Queue) SetFeeSetter(ctx context.Context, caller, account common.Address, allowed bool) error {
	return q.roles.SetRole(ctx, caller, types.RoleFeeSetter, account, allowed)
}

func (q *Queue) SetFulfiller(ctx context.Context, caller, account common.Address, allowed bool) error {
	return q.roles.SetRole(ctx, caller, types.RoleFulfiller, account, allowed)
}

func (q *Queue) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return q.roles.TransferOwnership(ctx, caller, newOwner)
}

// SetPenaltyFeeReceiver sets who collects negotiated penalty fees.
func (q *Queue) SetPenaltyFeeReceiver(ctx context.Context, caller, receiver common.Address) error {
	if receiver == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "penalty fee receiver cannot be the zero address")
	}
	return q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := q.roles.RequireOwner(ctx, caller); err != nil {
			return err
		}
		previous := q.penaltyFeeReceiver
		txn.Set(tx, &q.penaltyFeeReceiver, receiver)
		tx.Emit(types.ParameterChanged{
			Component: "withdrawal_queue",
			Name:      "penalty_fee_receiver",
			Previous:  previous.Hex(),
			Current:   receiver.Hex(),
		})
		q.logger.Info().Str("previous", previous.Hex()).Str("current", receiver.Hex()).Msg("Penalty fee receiver updated")
		return nil
	})
}
