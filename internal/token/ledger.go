/*

This file contains the fungible-balance substrate the vault is built on. The same ledger type tracks the
underlying asset and the vault's share token. Every mutation joins the caller's transaction.

*/

package token

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
)

// Ledger tracks balances, allowances and total supply of one fungible token.
type Ledger struct {
	exec     *txn.Executor
	symbol   string
	decimals uint8

	supply     sdkmath.Int
	balances   map[common.Address]sdkmath.Int
	allowances map[common.Address]map[common.Address]sdkmath.Int
}

// NewLedger creates an empty token ledger.
func NewLedger(exec *txn.Executor, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		exec:       exec,
		symbol:     symbol,
		decimals:   decimals,
		supply:     sdkmath.ZeroInt(),
		balances:   make(map[common.Address]sdkmath.Int),
		allowances: make(map[common.Address]map[common.Address]sdkmath.Int),
	}
}

func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

// BalanceOf returns the balance of account.
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (balance sdkmath.Int) {
	_ = l.exec.View(ctx, func(context.Context) error {
		balance = l.balanceOf(account)
		return nil
	})
	return balance
}

// TotalSupply returns the amount in circulation.
func (l *Ledger) TotalSupply(ctx context.Context) (supply sdkmath.Int) {
	_ = l.exec.View(ctx, func(context.Context) error {
		supply = l.supply
		return nil
	})
	return supply
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (allowance sdkmath.Int) {
	_ = l.exec.View(ctx, func(context.Context) error {
		allowance = l.allowance(owner, spender)
		return nil
	})
	return allowance
}

// Mint credits amount to account and grows the supply.
func (l *Ledger) Mint(ctx context.Context, to common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := validateAmount(amount); err != nil {
			return err
		}
		if to == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "cannot mint to the zero address")
		}
		l.credit(tx, to, amount)
		txn.Set(tx, &l.supply, l.supply.Add(amount))
		tx.Emit(types.Transfer{Token: l.symbol, To: to, Amount: amount})
		return nil
	})
}

// Burn debits amount from account and shrinks the supply.
func (l *Ledger) Burn(ctx context.Context, from common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := validateAmount(amount); err != nil {
			return err
		}
		if err := l.debit(tx, from, amount); err != nil {
			return err
		}
		txn.Set(tx, &l.supply, l.supply.Sub(amount))
		tx.Emit(types.Transfer{Token: l.symbol, From: from, Amount: amount})
		return nil
	})
}

// Transfer moves amount from one account to another. The caller is trusted to be from.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		return l.transfer(tx, from, to, amount)
	})
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := validateAmount(amount); err != nil {
			return err
		}
		if owner == (common.Address{}) || spender == (common.Address{}) {
			return errorsmod.Wrap(types.ErrInvalidParams, "approval requires non-zero owner and spender")
		}
		l.setAllowance(tx, owner, spender, amount)
		tx.Emit(types.Approval{Token: l.symbol, Owner: owner, Spender: spender, Amount: amount})
		return nil
	})
}

// SpendAllowance consumes amount of spender's allowance over owner. Spending one's own balance is free.
func (l *Ledger) SpendAllowance(ctx context.Context, owner, spender common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		return l.spendAllowance(tx, owner, spender, amount)
	})
}

// TransferFrom moves amount from owner to to, spending spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount sdkmath.Int) error {
	return l.exec.Atomic(ctx, func(ctx context.Context, tx *txn.Tx) error {
		if err := l.spendAllowance(tx, from, spender, amount); err != nil {
			return err
		}
		return l.transfer(tx, from, to, amount)
	})
}

func (l *Ledger) transfer(tx *txn.Tx, from, to common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "transfer requires non-zero sender and recipient")
	}
	if err := l.debit(tx, from, amount); err != nil {
		return err
	}
	l.credit(tx, to, amount)
	tx.Emit(types.Transfer{Token: l.symbol, From: from, To: to, Amount: amount})
	return nil
}

func (l *Ledger) spendAllowance(tx *txn.Tx, owner, spender common.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if owner == spender {
		return nil
	}
	current := l.allowance(owner, spender)
	if current.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientAllowance,
			"%s allowance of %s over %s is %s, need %s", l.symbol, spender.Hex(), owner.Hex(), current, amount)
	}
	l.setAllowance(tx, owner, spender, current.Sub(amount))
	return nil
}

func (l *Ledger) debit(tx *txn.Tx, from common.Address, amount sdkmath.Int) error {
	balance := l.balanceOf(from)
	if balance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientFunds,
			"%s balance of %s is %s, need %s", l.symbol, from.Hex(), balance, amount)
	}
	txn.SetKey(tx, l.balances, from, balance.Sub(amount))
	return nil
}

func (l *Ledger) credit(tx *txn.Tx, to common.Address, amount sdkmath.Int) {
	txn.SetKey(tx, l.balances, to, l.balanceOf(to).Add(amount))
}

func (l *Ledger) balanceOf(account common.Address) sdkmath.Int {
	if balance, ok := l.balances[account]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) allowance(owner, spender common.Address) sdkmath.Int {
	if byOwner, ok := l.allowances[owner]; ok {
		if allowance, ok := byOwner[spender]; ok {
			return allowance
		}
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) setAllowance(tx *txn.Tx, owner, spender common.Address, amount sdkmath.Int) {
	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]sdkmath.Int)
		txn.SetKey(tx, l.allowances, owner, byOwner)
	}
	txn.SetKey(tx, byOwner, spender, amount)
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return errorsmod.Wrap(types.ErrInvalidParams, "amount is nil")
	}
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParams, "amount %s is negative", amount)
	}
	return nil
}
