package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/types"
)

// VaultLedger defines the public contract of the vault.
// It abstracts away the accounting implementation so the queue, the coordinator and the operator API
// can be exercised against the same operations.
type VaultLedger interface {
	// ConvertToShares and ConvertToAssets are the substrate's pure conversions, rounding down.
	ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)

	// Withdraw and Redeem are instant exits bounded by the idle buffer. Both charge GetWithdrawFee.
	Withdraw(ctx context.Context, caller common.Address, assets sdkmath.Int, receiver, owner common.Address) (sdkmath.Int, error)
	Redeem(ctx context.Context, caller common.Address, shares sdkmath.Int, receiver, owner common.Address) (sdkmath.Int, error)
	GetWithdrawFee(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)

	// DispatchToRemote, RepatriateFromRemote and UpdateExchangeRate are rebalancer-gated.
	DispatchToRemote(ctx context.Context, caller common.Address, amount sdkmath.Int) error
	RepatriateFromRemote(ctx context.Context, caller common.Address, amount sdkmath.Int) error
	UpdateExchangeRate(ctx context.Context, caller common.Address, rate sdkmath.Int) error

	// ForwardToQueue moves idle assets into the linked queue's custody.
	ForwardToQueue(ctx context.Context, caller common.Address, amount sdkmath.Int) error
	// RedeemQueued burns shares held by the linked queue and returns their current asset value
	// together with the withdrawal fee taken out of it.
	RedeemQueued(ctx context.Context, caller common.Address, shares sdkmath.Int) (assets, fee sdkmath.Int, err error)

	IsAllowedRebalancer(ctx context.Context, account common.Address) bool
	Status(ctx context.Context) (types.VaultStatus, error)
}

var _ VaultLedger = (*Ledger)(nil)
