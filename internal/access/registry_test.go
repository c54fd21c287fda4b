package access

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

var (
	owner = common.HexToAddress("0x4000000000000000000000000000000000000001")
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000000")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000000")
)

func newRegistry(t *testing.T) (*Registry, *[]types.Event) {
	t.Helper()
	var events []types.Event
	exec := txn.NewExecutor(txn.SinkFunc(func(_ uuid.UUID, evs []types.Event) {
		events = append(events, evs...)
	}))
	r, err := NewRegistry(exec, "queue", owner, types.RoleFeeSetter, types.RoleFulfiller)
	require.NoError(t, err)
	return r, &events
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(txn.NewExecutor(), "vault", common.Address{}, types.RoleRebalancer)
	assert.ErrorIs(t, err, types.ErrInvalidParams)
	_, err = NewRegistry(txn.NewExecutor(), "vault", owner)
	assert.ErrorIs(t, err, types.ErrInvalidParams)
}

func TestSetRole(t *testing.T) {
	r, events := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetRole(ctx, owner, types.RoleFeeSetter, alice, true))
	assert.True(t, r.IsAllowed(ctx, types.RoleFeeSetter, alice))
	assert.False(t, r.IsAllowed(ctx, types.RoleFulfiller, alice))
	assert.NoError(t, r.RequireRole(ctx, types.RoleFeeSetter, alice))
	assert.ErrorIs(t, r.RequireRole(ctx, types.RoleFulfiller, alice), types.ErrUnauthorized)

	require.NoError(t, r.SetRole(ctx, owner, types.RoleFeeSetter, alice, false))
	assert.False(t, r.IsAllowed(ctx, types.RoleFeeSetter, alice))
	assert.Len(t, *events, 2)
}

func TestRedundantSetRoleStillEmits(t *testing.T) {
	r, events := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetRole(ctx, owner, types.RoleFulfiller, bob, true))
	require.NoError(t, r.SetRole(ctx, owner, types.RoleFulfiller, bob, true))

	require.Len(t, *events, 2)
	assert.Equal(t, (*events)[0], (*events)[1])
	assert.Equal(t, []common.Address{bob}, r.Members(ctx, types.RoleFulfiller))
}

func TestSetRoleRejections(t *testing.T) {
	r, events := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  common.Address
		role    types.Role
		account common.Address
		wantErr error
	}{
		{"not owner", alice, types.RoleFeeSetter, bob, types.ErrUnauthorized},
		{"unknown role", owner, types.RoleRebalancer, bob, types.ErrInvalidParams},
		{"zero account", owner, types.RoleFeeSetter, common.Address{}, types.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetRole(ctx, tt.caller, tt.role, tt.account, true)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, *events)
	assert.False(t, r.IsAllowed(ctx, types.RoleRebalancer, bob))
}

func TestTransferOwnership(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	assert.ErrorIs(t, r.TransferOwnership(ctx, alice, alice), types.ErrUnauthorized)
	assert.ErrorIs(t, r.TransferOwnership(ctx, owner, common.Address{}), types.ErrInvalidParams)
	require.NoError(t, r.TransferOwnership(ctx, owner, alice))

	assert.Equal(t, alice, r.Owner(ctx))
	assert.ErrorIs(t, r.RequireOwner(ctx, owner), types.ErrUnauthorized)
	assert.NoError(t, r.SetRole(ctx, alice, types.RoleFeeSetter, bob, true))
	assert.Equal(t, "queue", r.Name())
}
