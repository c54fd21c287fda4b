/*

This file wires the ledger components of one vault deployment together: the executor, the asset and share
token ledgers, the vault, its withdrawal queue and the fulfillment coordinator.

*/

package engine

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/coordinator"
	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/queue"
	"github.com/elys-network/liquidvault/internal/token"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/vault"
)

// Config describes a deployment.
type Config struct {
	Params types.VaultParameters

	VaultAddress       common.Address
	QueueAddress       common.Address
	CoordinatorAddress common.Address
	Owner              common.Address
	FeeReceiver        common.Address
	PenaltyFeeReceiver common.Address
	RemoteVenue        common.Address

	// Operators receive the rebalancer, fulfiller and fee-setter roles at bootstrap.
	Operators []common.Address
	// Genesis mints initial asset balances.
	Genesis map[common.Address]sdkmath.Int

	Sinks []txn.Sink
	// Clock stamps queued requests. Defaults to time.Now.
	Clock func() time.Time
}

// Engine is a bootstrapped deployment.
type Engine struct {
	Exec        *txn.Executor
	Asset       *token.Ledger
	Shares      *token.Ledger
	Vault       *vault.Ledger
	Queue       *queue.Queue
	Coordinator *coordinator.Coordinator

	logger zerolog.Logger
}

// New builds every component and applies the bootstrap in a single transaction: the queue is linked into
// the vault, the coordinator identity becomes a rebalancer, operators get their roles and genesis balances
// are minted.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "owner cannot be the zero address")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}

	exec := txn.NewExecutor(cfg.Sinks...)
	asset := token.NewLedger(exec, cfg.Params.AssetSymbol, cfg.Params.AssetDecimals)
	shares := token.NewLedger(exec, ShareSymbol(cfg.Params.AssetSymbol), cfg.Params.AssetDecimals)

	v, err := vault.NewLedger(exec, vault.Config{
		Address:     cfg.VaultAddress,
		Owner:       cfg.Owner,
		FeeReceiver: cfg.FeeReceiver,
		RemoteVenue: cfg.RemoteVenue,
		Asset:       asset,
		Shares:      shares,
		Params:      cfg.Params,
	})
	if err != nil {
		return nil, errorsmod.Wrap(err, "vault")
	}

	q, err := queue.NewQueue(exec, queue.Config{
		Address:            cfg.QueueAddress,
		Owner:              cfg.Owner,
		PenaltyFeeReceiver: cfg.PenaltyFeeReceiver,
		Vault:              v,
		Asset:              asset,
		Shares:             shares,
		Clock:              cfg.Clock,
	})
	if err != nil {
		return nil, errorsmod.Wrap(err, "withdrawal queue")
	}

	c, err := coordinator.New(exec, cfg.CoordinatorAddress, v, q)
	if err != nil {
		return nil, errorsmod.Wrap(err, "coordinator")
	}

	e := &Engine{
		Exec:        exec,
		Asset:       asset,
		Shares:      shares,
		Vault:       v,
		Queue:       q,
		Coordinator: c,
		logger:      logger.GetForComponent("engine"),
	}
	if err := e.bootstrap(ctx, cfg); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("vault", v.Address().Hex()).
		Str("queue", q.Address().Hex()).
		Str("coordinator", c.Address().Hex()).
		Str("asset", asset.Symbol()).
		Int("operators", len(cfg.Operators)).
		Msg("Engine bootstrapped")
	return e, nil
}

func (e *Engine) bootstrap(ctx context.Context, cfg Config) error {
	return e.Exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := e.Vault.SetWithdrawalQueue(ctx, cfg.Owner, e.Queue.Address()); err != nil {
			return errorsmod.Wrap(err, "link withdrawal queue")
		}
		if err := e.Vault.SetRebalancer(ctx, cfg.Owner, e.Coordinator.Address(), true); err != nil {
			return errorsmod.Wrap(err, "grant coordinator rebalancer role")
		}
		for _, op := range cfg.Operators {
			if err := e.Vault.SetRebalancer(ctx, cfg.Owner, op, true); err != nil {
				return errorsmod.Wrapf(err, "grant rebalancer to %s", op.Hex())
			}
			if err := e.Queue.SetFulfiller(ctx, cfg.Owner, op, true); err != nil {
				return errorsmod.Wrapf(err, "grant fulfiller to %s", op.Hex())
			}
			if err := e.Queue.SetFeeSetter(ctx, cfg.Owner, op, true); err != nil {
				return errorsmod.Wrapf(err, "grant fee setter to %s", op.Hex())
			}
		}
		for account, amount := range cfg.Genesis {
			if err := e.Asset.Mint(ctx, account, amount); err != nil {
				return errorsmod.Wrapf(err, "genesis balance of %s", account.Hex())
			}
		}
		return nil
	})
}

// Status reads the vault status and queue summary in one critical section.
func (e *Engine) Status(ctx context.Context) (vs types.VaultStatus, qs types.QueueSummary, err error) {
	err = e.Exec.View(ctx, func(ctx context.Context) error {
		var err error
		if vs, err = e.Vault.Status(ctx); err != nil {
			return err
		}
		qs = e.Queue.Summary(ctx)
		return nil
	})
	return vs, qs, err
}

// Token resolves a ledger by its symbol.
func (e *Engine) Token(symbol string) (*token.Ledger, bool) {
	switch symbol {
	case e.Asset.Symbol():
		return e.Asset, true
	case e.Shares.Symbol():
		return e.Shares, true
	}
	return nil, false
}

// ShareSymbol names the share token of a vault over asset.
func ShareSymbol(asset string) string {
	return "lv" + asset
}
