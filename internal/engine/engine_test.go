package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

var (
	vaultAddr   = common.HexToAddress("0x4000000000000000000000000000000000000001")
	queueAddr   = common.HexToAddress("0x4000000000000000000000000000000000000002")
	coordAddr   = common.HexToAddress("0x4000000000000000000000000000000000000003")
	owner       = common.HexToAddress("0x4000000000000000000000000000000000000004")
	feeReceiver = common.HexToAddress("0x4000000000000000000000000000000000000005")
	penaltyRcv  = common.HexToAddress("0x4000000000000000000000000000000000000006")
	remote      = common.HexToAddress("0x4000000000000000000000000000000000000007")
	operator    = common.HexToAddress("0x4000000000000000000000000000000000000008")
	alice       = common.HexToAddress("0xa11ce00000000000000000000000000000000000")
)

type kindRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *kindRecorder) sink() txn.Sink {
	return txn.SinkFunc(func(_ uuid.UUID, events []types.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, ev := range events {
			r.kinds = append(r.kinds, ev.Kind())
		}
	})
}

func (r *kindRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func testConfig(sinks ...txn.Sink) Config {
	return Config{
		Params: types.VaultParameters{
			AssetSymbol:         "USDC",
			AssetDecimals:       6,
			FeePercentage:       sdkmath.ZeroInt(),
			FeeAbsoluteMinimum:  sdkmath.ZeroInt(),
			ThresholdPercentage: sdkmath.NewInt(10 * types.OnePercent),
		},
		VaultAddress:       vaultAddr,
		QueueAddress:       queueAddr,
		CoordinatorAddress: coordAddr,
		Owner:              owner,
		FeeReceiver:        feeReceiver,
		PenaltyFeeReceiver: penaltyRcv,
		RemoteVenue:        remote,
		Operators:          []common.Address{operator},
		Genesis:            map[common.Address]sdkmath.Int{alice: sdkmath.NewInt(1_000_000)},
		Sinks:              sinks,
		Clock:              func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func TestNewBootstrapsRolesAndLinks(t *testing.T) {
	ctx := context.Background()
	rec := &kindRecorder{}
	e, err := New(ctx, testConfig(rec.sink()))
	require.NoError(t, err)

	assert.True(t, e.Vault.IsAllowedRebalancer(ctx, coordAddr))
	assert.True(t, e.Vault.IsAllowedRebalancer(ctx, operator))
	assert.True(t, e.Queue.IsAllowedFulfiller(ctx, operator))
	assert.True(t, e.Queue.IsAllowedFeeSetter(ctx, operator))
	assert.False(t, e.Queue.IsAllowedFulfiller(ctx, coordAddr))
	assert.Equal(t, "lvUSDC", e.Shares.Symbol())
	assert.True(t, e.Asset.BalanceOf(ctx, alice).Equal(sdkmath.NewInt(1_000_000)))

	status, err := e.Vault.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, queueAddr, status.WithdrawalQueue)

	// One bootstrap transaction: queue link, four role grants, one genesis mint.
	assert.Equal(t, 1, rec.count("parameter_changed"))
	assert.Equal(t, 4, rec.count("role_updated"))
	assert.Equal(t, 1, rec.count("transfer"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero owner", func(c *Config) { c.Owner = common.Address{} }},
		{"invalid params", func(c *Config) { c.Params.ThresholdPercentage = sdkmath.NewInt(types.PercentBase + 1) }},
		{"zero queue", func(c *Config) { c.QueueAddress = common.Address{} }},
		{"zero coordinator", func(c *Config) { c.CoordinatorAddress = common.Address{} }},
		{"zero operator", func(c *Config) { c.Operators = []common.Address{{}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(ctx, cfg)
			assert.ErrorIs(t, err, types.ErrInvalidParams)
		})
	}
}

func TestDeferredWithdrawalEndToEnd(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, testConfig())
	require.NoError(t, err)

	require.NoError(t, e.Asset.Approve(ctx, alice, vaultAddr, sdkmath.NewInt(1_000_000)))
	shares, err := e.Vault.Deposit(ctx, alice, sdkmath.NewInt(1_000_000), alice)
	require.NoError(t, err)
	assert.True(t, shares.Equal(sdkmath.NewInt(1_000_000)))

	require.NoError(t, e.Vault.DispatchToRemote(ctx, operator, sdkmath.NewInt(900_000)))

	// Half the position exceeds the idle buffer, so it goes through the queue.
	half := sdkmath.NewInt(500_000)
	maxRedeem, err := e.Vault.MaxRedeem(ctx, alice)
	require.NoError(t, err)
	assert.True(t, maxRedeem.LT(half))

	require.NoError(t, e.Shares.Approve(ctx, alice, queueAddr, half))
	id, err := e.Queue.QueueExcessWithdrawByShares(ctx, alice, half, alice, sdkmath.NewInt(5_000))
	require.NoError(t, err)
	require.NoError(t, e.Queue.SetPenaltyFee(ctx, operator, id, sdkmath.NewInt(1_000)))

	vs, qs, err := e.Status(ctx)
	require.NoError(t, err)
	assert.True(t, qs.Shortfall.Equal(half))
	assert.Equal(t, 1, qs.Ready)
	assert.True(t, vs.TotalAssets.Equal(sdkmath.NewInt(1_000_000)))

	require.NoError(t, e.Asset.Approve(ctx, remote, vaultAddr, half))
	require.NoError(t, e.Coordinator.FulfillExcessWithdraw(ctx, operator, half))

	executed, err := e.Queue.ExecuteExcessWithdraw(ctx, alice, id)
	require.NoError(t, err)
	assert.True(t, executed.Assets.Equal(half))
	assert.True(t, executed.Paid.Equal(sdkmath.NewInt(499_000)))

	assert.True(t, e.Asset.BalanceOf(ctx, alice).Equal(sdkmath.NewInt(499_000)))
	assert.True(t, e.Asset.BalanceOf(ctx, penaltyRcv).Equal(sdkmath.NewInt(1_000)))

	vs, qs, err = e.Status(ctx)
	require.NoError(t, err)
	assert.True(t, qs.TotalQueuedAssets.IsZero())
	assert.Equal(t, 0, qs.PendingRequests)
	assert.True(t, vs.InvestedPrincipal.Equal(sdkmath.NewInt(400_000)))
	assert.True(t, vs.TotalAssets.Equal(sdkmath.NewInt(500_000)))
	assert.True(t, vs.TotalShares.Equal(half))
}

func TestToken(t *testing.T) {
	e, err := New(context.Background(), testConfig())
	require.NoError(t, err)

	got, ok := e.Token("USDC")
	require.True(t, ok)
	assert.Same(t, e.Asset, got)
	got, ok = e.Token("lvUSDC")
	require.True(t, ok)
	assert.Same(t, e.Shares, got)
	_, ok = e.Token("ATOM")
	assert.False(t, ok)
}
