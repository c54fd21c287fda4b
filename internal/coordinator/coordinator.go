/*

This file contains the fulfillment coordinator. It repatriates assets from the remote venue and forwards
the same amount into the withdrawal queue's custody as one unit, so queued payouts never wait on two
separate steps.

*/

package coordinator

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

// Vault is the subset of the vault the coordinator drives.
type Vault interface {
	IsAllowedRebalancer(ctx context.Context, account common.Address) bool
	RepatriateFromRemote(ctx context.Context, caller common.Address, amount sdkmath.Int) error
	ForwardToQueue(ctx context.Context, caller common.Address, amount sdkmath.Int) error
}

// Queue is the subset of the withdrawal queue the coordinator authorizes against.
type Queue interface {
	IsAllowedFulfiller(ctx context.Context, account common.Address) bool
}

// Coordinator runs repatriate-then-forward for operators holding both roles.
type Coordinator struct {
	exec    *txn.Executor
	logger  zerolog.Logger
	address common.Address
	vault   Vault
	queue   Queue
}

// New creates a coordinator acting on the vault as address, which must hold the vault's rebalancer role.
func New(exec *txn.Executor, address common.Address, vault Vault, queue Queue) (*Coordinator, error) {
	if address == (common.Address{}) {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "coordinator address cannot be the zero address")
	}
	if vault == nil || queue == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "vault and queue are required")
	}
	return &Coordinator{
		exec:    exec,
		logger:  logger.GetForComponent("coordinator"),
		address: address,
		vault:   vault,
		queue:   queue,
	}, nil
}

// Address returns the identity the coordinator acts as.
func (c *Coordinator) Address() common.Address { return c.address }

// FulfillExcessWithdraw pulls amount back from the remote venue and forwards it to the queue.
// The caller must be a rebalancer on the vault and a fulfiller on the queue, as recorded by each.
func (c *Coordinator) FulfillExcessWithdraw(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParams, "amount must be greater than zero")
	}
	return c.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if !c.vault.IsAllowedRebalancer(ctx, caller) {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not a vault rebalancer", caller.Hex())
		}
		if !c.queue.IsAllowedFulfiller(ctx, caller) {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not a queue fulfiller", caller.Hex())
		}

		if err := c.vault.RepatriateFromRemote(ctx, c.address, amount); err != nil {
			return errorsmod.Wrap(err, "repatriate")
		}
		if err := c.vault.ForwardToQueue(ctx, c.address, amount); err != nil {
			return errorsmod.Wrap(err, "forward to queue")
		}
		tx.Emit(types.ExcessWithdrawFulfilled{Operator: caller, Amount: amount})

		c.logger.Info().
			Str("operator", caller.Hex()).
			Str("amount", amount.String()).
			Msg("Excess withdrawal fulfilled")
		return nil
	})
}
