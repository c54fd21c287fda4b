package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/liquidvault/internal/types"
)

func TestForwardToQueueRequiresLinkedQueue(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 10_000)

	err := f.vault.ForwardToQueue(f.ctx, rebalancer, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrInvalidParams)

	require.NoError(t, f.vault.SetWithdrawalQueue(f.ctx, owner, queueAddr))
	require.NoError(t, f.vault.ForwardToQueue(f.ctx, rebalancer, sdkmath.NewInt(100)))

	reserve, err := f.vault.QueueReserve(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", reserve.String())
	total, err := f.vault.TotalAssets(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000", total.String(), "forwarded assets still count toward total assets")
}

func TestRedeemQueuedTopsUpCustody(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 10_000)
	require.NoError(t, f.vault.SetWithdrawalQueue(f.ctx, owner, queueAddr))
	require.NoError(t, f.shares.Transfer(f.ctx, alice, queueAddr, sdkmath.NewInt(600)))
	require.NoError(t, f.vault.ForwardToQueue(f.ctx, rebalancer, sdkmath.NewInt(200)))

	_, _, err := f.vault.RedeemQueued(f.ctx, alice, sdkmath.NewInt(600))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	assets, fee, err := f.vault.RedeemQueued(f.ctx, queueAddr, sdkmath.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, "600", assets.String())
	assert.Equal(t, "50", fee.String(), "queued exits pay the same minimum fee as instant ones")
	assert.Equal(t, "550", f.asset.BalanceOf(f.ctx, queueAddr).String())
	assert.Equal(t, "50", f.asset.BalanceOf(f.ctx, feeReceiver).String())
	assert.Equal(t, "9400", f.asset.BalanceOf(f.ctx, vaultAddr).String())
	assert.True(t, f.shares.BalanceOf(f.ctx, queueAddr).IsZero())
}

func TestRedeemQueuedFailsWhenIdleCannotCover(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 10_000)
	require.NoError(t, f.vault.SetWithdrawalQueue(f.ctx, owner, queueAddr))
	require.NoError(t, f.shares.Transfer(f.ctx, alice, queueAddr, sdkmath.NewInt(5_000)))
	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(9_000)))

	_, _, err := f.vault.RedeemQueued(f.ctx, queueAddr, sdkmath.NewInt(5_000))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Equal(t, "5000", f.shares.BalanceOf(f.ctx, queueAddr).String())
	assert.Equal(t, "1000", f.asset.BalanceOf(f.ctx, vaultAddr).String())
}

func TestRedeemQueuedCapsFeeAtValue(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 10_000)
	require.NoError(t, f.vault.SetWithdrawalQueue(f.ctx, owner, queueAddr))
	require.NoError(t, f.shares.Transfer(f.ctx, alice, queueAddr, sdkmath.NewInt(30)))

	assets, fee, err := f.vault.RedeemQueued(f.ctx, queueAddr, sdkmath.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, "30", assets.String())
	assert.Equal(t, "30", fee.String())
	assert.True(t, f.asset.BalanceOf(f.ctx, queueAddr).IsZero())
	assert.Equal(t, "30", f.asset.BalanceOf(f.ctx, feeReceiver).String())
}

func TestAdminSettersAreOwnerGated(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		call func(caller common.Address) error
	}{
		{"fee percentage", func(c common.Address) error {
			return f.vault.SetFeePercentage(f.ctx, c, sdkmath.NewInt(2*types.OnePercent))
		}},
		{"threshold percentage", func(c common.Address) error {
			return f.vault.SetThresholdPercentage(f.ctx, c, sdkmath.NewInt(20*types.OnePercent))
		}},
		{"fee minimum", func(c common.Address) error {
			return f.vault.SetFeeAbsoluteMinimum(f.ctx, c, sdkmath.NewInt(1))
		}},
		{"fee receiver", func(c common.Address) error { return f.vault.SetFeeReceiver(f.ctx, c, bob) }},
		{"remote venue", func(c common.Address) error { return f.vault.SetRemoteVenue(f.ctx, c, bob) }},
		{"withdrawal queue", func(c common.Address) error { return f.vault.SetWithdrawalQueue(f.ctx, c, queueAddr) }},
		{"rebalancer", func(c common.Address) error { return f.vault.SetRebalancer(f.ctx, c, bob, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(alice), types.ErrUnauthorized)
			assert.NoError(t, tt.call(owner))
		})
	}

	params := f.vault.Parameters(f.ctx)
	assert.Equal(t, "2000000", params.FeePercentage.String())
	assert.Equal(t, "20000000", params.ThresholdPercentage.String())
	assert.Equal(t, "1", params.FeeAbsoluteMinimum.String())
	assert.True(t, f.vault.IsAllowedRebalancer(f.ctx, bob))
}

func TestAdminSettersValidateInput(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.vault.SetFeePercentage(f.ctx, owner, sdkmath.NewInt(types.PercentBase+1)), types.ErrInvalidParams)
	assert.ErrorIs(t, f.vault.SetThresholdPercentage(f.ctx, owner, sdkmath.NewInt(-1)), types.ErrInvalidParams)
	assert.ErrorIs(t, f.vault.SetFeeReceiver(f.ctx, owner, common.Address{}), types.ErrInvalidParams)
	assert.NoError(t, f.vault.SetThresholdPercentage(f.ctx, owner, sdkmath.NewInt(types.PercentBase)))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.vault.TransferOwnership(f.ctx, owner, bob))
	assert.ErrorIs(t, f.vault.SetFeeReceiver(f.ctx, owner, alice), types.ErrUnauthorized)
	assert.NoError(t, f.vault.SetFeeReceiver(f.ctx, bob, alice))
}
