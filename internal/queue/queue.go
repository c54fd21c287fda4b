/*

This file contains the withdrawal queue. Withdrawals larger than the vault's idle buffer lock their
shares here, wait for a fee-setter to negotiate a penalty fee, and are then settled by anyone.

*/

package queue

import (
	"context"
	"math/big"
	"slices"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/access"
	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

// Vault is the subset of the vault the queue settles against.
type Vault interface {
	PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	RedeemQueued(ctx context.Context, caller common.Address, shares sdkmath.Int) (assets, fee sdkmath.Int, err error)
}

// TokenLedger is the subset of a token ledger the queue moves funds with.
type TokenLedger interface {
	BalanceOf(ctx context.Context, account common.Address) sdkmath.Int
	Transfer(ctx context.Context, from, to common.Address, amount sdkmath.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount sdkmath.Int) error
}

// Config holds everything needed to open a queue.
type Config struct {
	Address            common.Address
	Owner              common.Address
	PenaltyFeeReceiver common.Address
	Vault              Vault
	Asset              TokenLedger
	Shares             TokenLedger
	// Clock stamps new requests. Defaults to time.Now.
	Clock func() time.Time
}

// Queue holds pending withdrawal requests and the assets forwarded to settle them.
type Queue struct {
	exec    *txn.Executor
	logger  zerolog.Logger
	address common.Address
	vault   Vault
	asset   TokenLedger
	shares  TokenLedger
	roles   *access.Registry
	clock   func() time.Time

	penaltyFeeReceiver common.Address
	requests           map[common.Hash]types.WithdrawalRequest
	byReceiver         map[common.Address][]common.Hash
	position           map[common.Hash]int
	totalQueuedAssets  sdkmath.Int
	nonce              uint64
}

// NewQueue opens an empty queue.
func NewQueue(exec *txn.Executor, cfg Config) (*Queue, error) {
	if cfg.Vault == nil || cfg.Asset == nil || cfg.Shares == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "vault, asset and share ledgers are required")
	}
	if cfg.Address == (common.Address{}) || cfg.PenaltyFeeReceiver == (common.Address{}) {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "queue address and penalty fee receiver cannot be the zero address")
	}
	roles, err := access.NewRegistry(exec, "queue", cfg.Owner, types.RoleFeeSetter, types.RoleFulfiller)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Queue{
		exec:               exec,
		logger:             logger.GetForComponent("withdrawal_queue"),
		address:            cfg.Address,
		vault:              cfg.Vault,
		asset:              cfg.Asset,
		shares:             cfg.Shares,
		roles:              roles,
		clock:              clock,
		penaltyFeeReceiver: cfg.PenaltyFeeReceiver,
		requests:           make(map[common.Hash]types.WithdrawalRequest),
		byReceiver:         make(map[common.Address][]common.Hash),
		position:           make(map[common.Hash]int),
		totalQueuedAssets:  sdkmath.ZeroInt(),
	}, nil
}

// Address returns the queue's custody identity.
func (q *Queue) Address() common.Address { return q.address }

// Roles returns the queue's access registry.
func (q *Queue) Roles() *access.Registry { return q.roles }

// QueueExcessWithdrawByAssets queues a withdrawal of assets, locking the shares it would burn today.
func (q *Queue) QueueExcessWithdrawByAssets(ctx context.Context, caller common.Address, assets sdkmath.Int, receiver common.Address, maxPenaltyFee sdkmath.Int) (id common.Hash, err error) {
	if err := validateRequest("assets", assets, receiver, maxPenaltyFee); err != nil {
		return common.Hash{}, err
	}
	err = q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		shares, err := q.vault.PreviewWithdraw(ctx, assets)
		if err != nil {
			return err
		}
		id, err = q.enqueue(ctx, tx, caller, shares, assets, receiver, maxPenaltyFee)
		return err
	})
	if err != nil {
		return common.Hash{}, err
	}
	return id, nil
}

// QueueExcessWithdrawByShares queues a redemption of shares.
func (q *Queue) QueueExcessWithdrawByShares(ctx context.Context, caller common.Address, shares sdkmath.Int, receiver common.Address, maxPenaltyFee sdkmath.Int) (id common.Hash, err error) {
	if err := validateRequest("shares", shares, receiver, maxPenaltyFee); err != nil {
		return common.Hash{}, err
	}
	err = q.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) (err error) {
		assets, err := q.vault.PreviewRedeem(ctx, shares)
		if err != nil {
			return err
		}
		id, err = q.enqueue(ctx, tx, caller, shares, assets, receiver, maxPenaltyFee)
		return err
	})
	if err != nil {
		return common.Hash{}, err
	}
	return id, nil
}

func (q *Queue) enqueue(ctx context.Context, tx *txn.Tx, caller common.Address, shares, assets sdkmath.Int, receiver common.Address, maxPenaltyFee sdkmath.Int) (common.Hash, error) {
	if !shares.IsPositive() || !assets.IsPositive() {
		return common.Hash{}, errorsmod.Wrapf(types.ErrInvalidParams, "request of %s shares for %s assets is empty", shares, assets)
	}
	if err := q.shares.TransferFrom(ctx, q.address, caller, q.address, shares); err != nil {
		return common.Hash{}, err
	}

	nonce := q.nonce + 1
	createdAt := q.clock().UTC()
	id, err := RequestID(shares, assets, receiver, maxPenaltyFee, caller, createdAt, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	if _, exists := q.requests[id]; exists {
		return common.Hash{}, errorsmod.Wrapf(types.ErrInvalidParams, "request %s already exists", id.Hex())
	}

	txn.Set(tx, &q.nonce, nonce)
	txn.SetKey(tx, q.requests, id, types.WithdrawalRequest{
		ID:            id,
		Owner:         caller,
		Receiver:      receiver,
		Shares:        shares,
		Assets:        assets,
		MaxPenaltyFee: maxPenaltyFee,
		PenaltyFee:    sdkmath.ZeroInt(),
		Nonce:         nonce,
		CreatedAt:     createdAt,
	})
	q.index(tx, receiver, id)
	txn.Set(tx, &q.totalQueuedAssets, q.totalQueuedAssets.Add(assets))

	tx.Emit(types.WithdrawalQueued{
		ID:            id,
		Owner:         caller,
		Receiver:      receiver,
		Shares:        shares,
		Assets:        assets,
		MaxPenaltyFee: maxPenaltyFee,
	})

	q.logger.Info().
		Str("id", id.Hex()).
		Str("owner", caller.Hex()).
		Str("receiver", receiver.Hex()).
		Str("shares", shares.String()).
		Str("assets", assets.String()).
		Str("max_penalty_fee", maxPenaltyFee.String()).
		Msg("Withdrawal queued")
	return id, nil
}

// index appends id to the receiver's list. Slices are copied so rollback restores the old one intact.
func (q *Queue) index(tx *txn.Tx, receiver common.Address, id common.Hash) {
	ids := append(slices.Clone(q.byReceiver[receiver]), id)
	txn.SetKey(tx, q.byReceiver, receiver, ids)
	txn.SetKey(tx, q.position, id, len(ids)-1)
}

// unindex removes id from the receiver's list by swapping in the last entry.
func (q *Queue) unindex(tx *txn.Tx, receiver common.Address, id common.Hash) {
	ids := slices.Clone(q.byReceiver[receiver])
	i, ok := q.position[id]
	if !ok || i >= len(ids) || ids[i] != id {
		return
	}
	last := len(ids) - 1
	if i != last {
		ids[i] = ids[last]
		txn.SetKey(tx, q.position, ids[i], i)
	}
	ids = ids[:last]
	txn.DeleteKey(tx, q.position, id)
	if len(ids) == 0 {
		txn.DeleteKey(tx, q.byReceiver, receiver)
		return
	}
	txn.SetKey(tx, q.byReceiver, receiver, ids)
}

var requestIDArguments = func() abi.Arguments {
	uint256, _ := abi.NewType("uint256", "", nil)
	address, _ := abi.NewType("address", "", nil)
	return abi.Arguments{
		{Name: "shares", Type: uint256},
		{Name: "assets", Type: uint256},
		{Name: "receiver", Type: address},
		{Name: "maxPenaltyFee", Type: uint256},
		{Name: "caller", Type: address},
		{Name: "timestamp", Type: uint256},
		{Name: "nonce", Type: uint256},
	}
}()

// RequestID derives the key of a request from its contents, the moment it was queued and a queue-wide nonce.
// The nonce keeps identical requests from the same caller within one second apart.
func RequestID(shares, assets sdkmath.Int, receiver common.Address, maxPenaltyFee sdkmath.Int, caller common.Address, createdAt time.Time, nonce uint64) (common.Hash, error) {
	packed, err := requestIDArguments.Pack(
		shares.BigInt(),
		assets.BigInt(),
		receiver,
		maxPenaltyFee.BigInt(),
		caller,
		big.NewInt(createdAt.Unix()),
		new(big.Int).SetUint64(nonce),
	)
	if err != nil {
		return common.Hash{}, errorsmod.Wrapf(types.ErrInvalidParams, "encode request id: %v", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

func validateRequest(name string, amount sdkmath.Int, receiver common.Address, maxPenaltyFee sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s must be greater than zero", name)
	}
	if receiver == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "receiver cannot be the zero address")
	}
	if maxPenaltyFee.IsNil() || !maxPenaltyFee.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParams, "max penalty fee must be greater than zero")
	}
	return nil
}
