package access

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

// Policy answers authorization queries. Ledgers depend on this rather than on a concrete registry.
type Policy interface {
	IsAllowed(ctx context.Context, role types.Role, account common.Address) bool
}

// Registry holds the allow-lists of one component, mutated only by its single owner.
type Registry struct {
	exec   *txn.Executor
	logger zerolog.Logger
	name   string
	owner  common.Address
	lists  map[types.Role]map[common.Address]bool
}

var _ Policy = (*Registry)(nil)

// NewRegistry creates a registry named after the component holding it, with one empty list per role.
func NewRegistry(exec *txn.Executor, name string, owner common.Address, roles ...types.Role) (*Registry, error) {
	if owner == (common.Address{}) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "%s registry owner cannot be the zero address", name)
	}
	if len(roles) == 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "%s registry needs at least one role", name)
	}
	lists := make(map[types.Role]map[common.Address]bool, len(roles))
	for _, role := range roles {
		lists[role] = make(map[common.Address]bool)
	}
	return &Registry{
		exec:   exec,
		logger: logger.GetForComponent("access_" + name),
		name:   name,
		owner:  owner,
		lists:  lists,
	}, nil
}

// Name returns the component name used in events.
func (r *Registry) Name() string {
	return r.name
}

// Owner returns the identity allowed to mutate the registry.
func (r *Registry) Owner(ctx context.Context) (owner common.Address) {
	_ = r.exec.View(ctx, func(context.Context) error {
		owner = r.owner
		return nil
	})
	return owner
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (r *Registry) RequireOwner(ctx context.Context, caller common.Address) error {
	return r.exec.View(ctx, func(context.Context) error {
		if caller != r.owner {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the %s owner", caller.Hex(), r.name)
		}
		return nil
	})
}

// RequireRole fails with ErrUnauthorized unless account holds role.
func (r *Registry) RequireRole(ctx context.Context, role types.Role, account common.Address) error {
	if !r.IsAllowed(ctx, role, account) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not an allowed %s on %s", account.Hex(), role, r.name)
	}
	return nil
}

// IsAllowed reports whether account is on the role's allow-list. Unknown roles are never allowed.
func (r *Registry) IsAllowed(ctx context.Context, role types.Role, account common.Address) (allowed bool) {
	_ = r.exec.View(ctx, func(context.Context) error {
		allowed = r.lists[role][account]
		return nil
	})
	return allowed
}

// SetRole writes one allow-list entry. Redundant writes still emit RoleUpdated.
func (r *Registry) SetRole(ctx context.Context, caller common.Address, role types.Role, account common.Address, allowed bool) error {
	return r.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := r.RequireOwner(ctx, caller); err != nil {
			return err
		}
		list, ok := r.lists[role]
		if !ok {
			return errorsmod.Wrapf(types.ErrInvalidParams, "role %q is not managed by %s", role, r.name)
		}
		if account == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "account cannot be the zero address")
		}

		txn.SetKey(tx, list, account, allowed)
		tx.Emit(types.RoleUpdated{Registry: r.name, Role: role, Account: account, Allowed: allowed})

		r.logger.Info().
			Str("role", string(role)).
			Str("account", account.Hex()).
			Bool("allowed", allowed).
			Msg("Role updated")
		return nil
	})
}

// TransferOwnership hands the registry to a new owner.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return r.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := r.RequireOwner(ctx, caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "new owner cannot be the zero address")
		}
		previous := r.owner
		txn.Set(tx, &r.owner, newOwner)
		tx.Emit(types.OwnershipTransferred{Registry: r.name, Previous: previous, Current: newOwner})
		r.logger.Warn().Str("previous", previous.Hex()).Str("current", newOwner.Hex()).Msg("Ownership transferred")
		return nil
	})
}

// Members lists the accounts currently allowed for role.
func (r *Registry) Members(ctx context.Context, role types.Role) (members []common.Address) {
	_ = r.exec.View(ctx, func(context.Context) error {
		for account, allowed := range r.lists[role] {
			if allowed {
				members = append(members, account)
			}
		}
		return nil
	})
	return members
}
