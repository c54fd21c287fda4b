package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/liquidvault/internal/types"
)

// A 1% fee with a minimum of 50.
func TestWithdrawChargesMinimumFee(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)
	f.events.reset()

	shares, err := f.vault.Withdraw(f.ctx, alice, sdkmath.NewInt(1_000), bob, alice)
	require.NoError(t, err)

	assert.Equal(t, "1000", shares.String())
	assert.Equal(t, "950", f.asset.BalanceOf(f.ctx, bob).String())
	assert.Equal(t, "50", f.asset.BalanceOf(f.ctx, feeReceiver).String())
	assert.Equal(t, "999000", f.shares.BalanceOf(f.ctx, alice).String())
	assert.Contains(t, f.events.kinds(), "withdraw")
	assert.Contains(t, f.events.kinds(), "fee_collected")
}

func TestGetWithdrawFee(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		assets int64
		want   string
	}{
		{0, "50"},
		{100, "50"},
		{5_000, "50"},
		{5_001, "51"},
		{1_000_000, "10000"},
		{1_000_001, "10001"},
	}
	previous := sdkmath.ZeroInt()
	for _, tt := range tests {
		fee, err := f.vault.GetWithdrawFee(f.ctx, sdkmath.NewInt(tt.assets))
		require.NoError(t, err)
		assert.Equal(t, tt.want, fee.String(), "assets %d", tt.assets)
		assert.True(t, fee.GTE(previous), "fee must not decrease as assets grow")
		previous = fee
	}
}

func TestWithdrawRejectsFeeAboveAssets(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000)

	_, err := f.vault.Withdraw(f.ctx, alice, sdkmath.NewInt(49), alice, alice)
	require.ErrorIs(t, err, types.ErrInvalidParams)
	assert.Equal(t, "1000", f.shares.BalanceOf(f.ctx, alice).String())
}

func TestWithdrawBoundedByIdle(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)
	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(900_000)))

	maxWithdraw, err := f.vault.MaxWithdraw(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100000", maxWithdraw.String())

	_, err = f.vault.Withdraw(f.ctx, alice, sdkmath.NewInt(100_001), alice, alice)
	require.ErrorIs(t, err, types.ErrExceedsMax)

	maxRedeem, err := f.vault.MaxRedeem(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100000", maxRedeem.String())
	_, err = f.vault.Redeem(f.ctx, alice, sdkmath.NewInt(100_001), alice, alice)
	require.ErrorIs(t, err, types.ErrExceedsMax)

	status, err := f.vault.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "100000", status.IdleBalance.String())
	assert.Equal(t, "1000000", status.TotalShares.String())
}

func TestWithdrawOnBehalfSpendsShareAllowance(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 10_000)

	_, err := f.vault.Withdraw(f.ctx, bob, sdkmath.NewInt(1_000), bob, alice)
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)

	require.NoError(t, f.shares.Approve(f.ctx, alice, bob, sdkmath.NewInt(1_500)))
	shares, err := f.vault.Withdraw(f.ctx, bob, sdkmath.NewInt(1_000), bob, alice)
	require.NoError(t, err)
	assert.Equal(t, "1000", shares.String())
	assert.Equal(t, "500", f.shares.Allowance(f.ctx, alice, bob).String())
	assert.Equal(t, "950", f.asset.BalanceOf(f.ctx, bob).String())
}

func TestRedeemRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 777_777)
	// Yield makes the share price non-integral.
	require.NoError(t, f.asset.Mint(f.ctx, vaultAddr, sdkmath.NewInt(333_333)))

	deposited := sdkmath.NewInt(123_457)
	require.NoError(t, f.asset.Mint(f.ctx, bob, deposited))
	require.NoError(t, f.asset.Approve(f.ctx, bob, vaultAddr, deposited))
	shares, err := f.vault.Deposit(f.ctx, bob, deposited, bob)
	require.NoError(t, err)

	value, err := f.vault.PreviewRedeem(f.ctx, shares)
	require.NoError(t, err)
	assert.True(t, value.LTE(deposited), "redeeming must not return more than deposited")
	assert.True(t, deposited.Sub(value).LTE(sdkmath.NewInt(2)), "lost %s to rounding", deposited.Sub(value))

	assets, err := f.vault.Redeem(f.ctx, bob, shares, bob, bob)
	require.NoError(t, err)
	assert.Equal(t, value, assets)
	fee, err := f.vault.GetWithdrawFee(f.ctx, assets)
	require.NoError(t, err)
	assert.Equal(t, assets.Sub(fee).String(), f.asset.BalanceOf(f.ctx, bob).String())
}

func TestFailedWithdrawPublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000)
	f.events.reset()

	_, err := f.vault.Withdraw(f.ctx, alice, sdkmath.NewInt(2_000), alice, alice)
	require.Error(t, err)
	assert.Empty(t, f.events.kinds())
}
