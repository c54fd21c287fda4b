package vault

import (
	"context"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/liquidvault/internal/token"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

var (
	vaultAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	owner       = common.HexToAddress("0x1000000000000000000000000000000000000002")
	feeReceiver = common.HexToAddress("0x1000000000000000000000000000000000000003")
	remote      = common.HexToAddress("0x1000000000000000000000000000000000000004")
	rebalancer  = common.HexToAddress("0x1000000000000000000000000000000000000005")
	queueAddr   = common.HexToAddress("0x1000000000000000000000000000000000000006")
	alice       = common.HexToAddress("0xa11ce00000000000000000000000000000000000")
	bob         = common.HexToAddress("0xb0b0000000000000000000000000000000000000")
)

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) Publish(_ uuid.UUID, events []types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	ctx    context.Context
	vault  *Ledger
	asset  *token.Ledger
	shares *token.Ledger
	events *recorder
}

func defaultParams() types.VaultParameters {
	return types.VaultParameters{
		AssetSymbol:         "USDC",
		AssetDecimals:       6,
		FeePercentage:       sdkmath.NewInt(types.OnePercent),
		FeeAbsoluteMinimum:  sdkmath.NewInt(50),
		ThresholdPercentage: sdkmath.NewInt(10 * types.OnePercent),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := &recorder{}
	exec := txn.NewExecutor(events)
	asset := token.NewLedger(exec, "USDC", 6)
	shares := token.NewLedger(exec, "lvUSDC", 6)
	v, err := NewLedger(exec, Config{
		Address:     vaultAddr,
		Owner:       owner,
		FeeReceiver: feeReceiver,
		RemoteVenue: remote,
		Asset:       asset,
		Shares:      shares,
		Params:      defaultParams(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.SetRebalancer(ctx, owner, rebalancer, true))
	events.reset()
	return &fixture{ctx: ctx, vault: v, asset: asset, shares: shares, events: events}
}

func (f *fixture) deposit(t *testing.T, who common.Address, amount int64) sdkmath.Int {
	t.Helper()
	amt := sdkmath.NewInt(amount)
	require.NoError(t, f.asset.Mint(f.ctx, who, amt))
	require.NoError(t, f.asset.Approve(f.ctx, who, vaultAddr, amt))
	shares, err := f.vault.Deposit(f.ctx, who, amt, who)
	require.NoError(t, err)
	return shares
}

func TestNewLedgerRejectsBadConfig(t *testing.T) {
	exec := txn.NewExecutor()
	asset := token.NewLedger(exec, "USDC", 6)
	shares := token.NewLedger(exec, "lvUSDC", 6)

	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero vault address", func(cfg *Config) { cfg.Address = common.Address{} }},
		{"zero owner", func(cfg *Config) { cfg.Owner = common.Address{} }},
		{"zero fee receiver", func(cfg *Config) { cfg.FeeReceiver = common.Address{} }},
		{"missing share ledger", func(cfg *Config) { cfg.Shares = nil }},
		{"threshold above 100%", func(cfg *Config) { cfg.Params.ThresholdPercentage = sdkmath.NewInt(types.PercentBase + 1) }},
		{"decimals mismatch", func(cfg *Config) { cfg.Params.AssetDecimals = 18 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Address:     vaultAddr,
				Owner:       owner,
				FeeReceiver: feeReceiver,
				RemoteVenue: remote,
				Asset:       asset,
				Shares:      shares,
				Params:      defaultParams(),
			}
			tt.mutate(&cfg)
			_, err := NewLedger(exec, cfg)
			assert.ErrorIs(t, err, types.ErrInvalidParams)
		})
	}
}

func TestDepositMintsSharesOneToOneOnEmptyVault(t *testing.T) {
	f := newFixture(t)
	shares := f.deposit(t, alice, 1_000_000)

	assert.Equal(t, "1000000", shares.String())
	assert.Equal(t, "1000000", f.shares.BalanceOf(f.ctx, alice).String())
	total, err := f.vault.TotalAssets(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000000", total.String())
	assert.Contains(t, f.events.kinds(), "deposit")
}

func TestDepositWithoutApprovalFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(f.ctx, alice, sdkmath.NewInt(100)))

	_, err := f.vault.Deposit(f.ctx, alice, sdkmath.NewInt(100), alice)
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)
	assert.True(t, f.shares.TotalSupply(f.ctx).IsZero())
	assert.Equal(t, "100", f.asset.BalanceOf(f.ctx, alice).String())
}

func TestMintRoundsAssetsUp(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)
	// Double the value per share so one share costs two assets.
	require.NoError(t, f.asset.Mint(f.ctx, vaultAddr, sdkmath.NewInt(1_000_000)))

	preview, err := f.vault.PreviewMint(f.ctx, sdkmath.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, "6", preview.String())

	require.NoError(t, f.asset.Mint(f.ctx, bob, sdkmath.NewInt(10)))
	require.NoError(t, f.asset.Approve(f.ctx, bob, vaultAddr, sdkmath.NewInt(10)))
	paid, err := f.vault.Mint(f.ctx, bob, sdkmath.NewInt(3), bob)
	require.NoError(t, err)
	assert.Equal(t, preview, paid)
	assert.Equal(t, "3", f.shares.BalanceOf(f.ctx, bob).String())
}

// Idle 1,000,000 with a 10% threshold.
func TestDispatchRespectsThreshold(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)

	err := f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(950_000))
	require.ErrorIs(t, err, types.ErrBelowThreshold)
	idle, err := f.vault.IdleBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000000", idle.String())
	principal, err := f.vault.InvestedPrincipal(f.ctx)
	require.NoError(t, err)
	assert.True(t, principal.IsZero())

	maxDispatch, err := f.vault.MaxDispatchable(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "900000", maxDispatch.String())

	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(900_000)))
	status, err := f.vault.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "100000", status.IdleBalance.String())
	assert.Equal(t, "900000", status.InvestedPrincipal.String())
	assert.Equal(t, "1000000", status.TotalAssets.String())
	assert.Equal(t, "100000", status.RequiredIdle.String())
	assert.Equal(t, "900000", f.asset.BalanceOf(f.ctx, remote).String())

	err = f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(1))
	assert.ErrorIs(t, err, types.ErrBelowThreshold)
}

func TestDispatchValidation(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000)

	tests := []struct {
		name    string
		caller  common.Address
		amount  sdkmath.Int
		wantErr error
	}{
		{"not a rebalancer", alice, sdkmath.NewInt(10), types.ErrUnauthorized},
		{"zero amount", rebalancer, sdkmath.ZeroInt(), types.ErrInvalidParams},
		{"more than idle", rebalancer, sdkmath.NewInt(1_001), types.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.vault.DispatchToRemote(f.ctx, tt.caller, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDispatchRejectsAmountBuyingNoPrincipal(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)

	// One principal unit is worth 1,000 assets.
	require.NoError(t, f.vault.UpdateExchangeRate(f.ctx, rebalancer, sdkmath.NewInt(1_000_000_000)))
	f.events.reset()

	err := f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(999))
	require.ErrorIs(t, err, types.ErrInvalidParams)
	assert.Equal(t, "1000000", f.asset.BalanceOf(f.ctx, vaultAddr).String())
	assert.True(t, f.asset.BalanceOf(f.ctx, remote).IsZero())
	assert.Empty(t, f.events.kinds())

	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(1_000)))
	principal, err := f.vault.InvestedPrincipal(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", principal.String())
}

func TestPrincipalTracksExchangeRate(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)

	// One principal unit is worth two assets.
	require.NoError(t, f.vault.UpdateExchangeRate(f.ctx, rebalancer, sdkmath.NewInt(2_000_000)))
	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(100_001)))

	principal, err := f.vault.InvestedPrincipal(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "50000", principal.String(), "principal rounds down")

	require.NoError(t, f.asset.Approve(f.ctx, remote, vaultAddr, sdkmath.NewInt(1_000_000)))
	err = f.vault.RepatriateFromRemote(f.ctx, rebalancer, sdkmath.NewInt(100_002))
	require.ErrorIs(t, err, types.ErrInvalidParams)

	require.NoError(t, f.vault.RepatriateFromRemote(f.ctx, rebalancer, sdkmath.NewInt(100_000)))
	principal, err = f.vault.InvestedPrincipal(f.ctx)
	require.NoError(t, err)
	assert.True(t, principal.IsZero())
	assert.Equal(t, "1", f.asset.BalanceOf(f.ctx, remote).String())
	assert.Contains(t, f.events.kinds(), "repatriated")
}

func TestRepatriateRequiresRemoteApproval(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000)
	require.NoError(t, f.vault.DispatchToRemote(f.ctx, rebalancer, sdkmath.NewInt(500_000)))

	err := f.vault.RepatriateFromRemote(f.ctx, rebalancer, sdkmath.NewInt(100_000))
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)
	principal, err := f.vault.InvestedPrincipal(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "500000", principal.String())
}

func TestUpdateExchangeRate(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.vault.UpdateExchangeRate(f.ctx, rebalancer, sdkmath.ZeroInt()), types.ErrInvalidParams)
	assert.ErrorIs(t, f.vault.UpdateExchangeRate(f.ctx, alice, sdkmath.NewInt(5)), types.ErrUnauthorized)

	require.NoError(t, f.vault.UpdateExchangeRate(f.ctx, rebalancer, sdkmath.NewInt(1_100_000)))
	rate, err := f.vault.ExchangeRate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "1100000", rate.String())
	assert.Equal(t, []string{"exchange_rate_updated"}, f.events.kinds())
}
