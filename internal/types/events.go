/*

This file contains the notifications emitted by the ledgers.
Events are buffered on the open transaction and only published once the outermost operation commits.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Event is a notification emitted by a ledger component.
type Event interface {
	// Kind returns the stable event name used by journals and logs.
	Kind() string
}

// Transfer is emitted by the token substrate for every balance movement, mint and burn.
type Transfer struct {
	Token  string         `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount sdkmath.Int    `json:"amount"`
}

func (Transfer) Kind() string { return "transfer" }

// Approval is emitted when an owner sets a spender's allowance.
type Approval struct {
	Token   string         `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  sdkmath.Int    `json:"amount"`
}

func (Approval) Kind() string { return "approval" }

// RoleUpdated is emitted on every allow-list write, including redundant ones.
type RoleUpdated struct {
	Registry string         `json:"registry"`
	Role     Role           `json:"role"`
	Account  common.Address `json:"account"`
	Allowed  bool           `json:"allowed"`
}

func (RoleUpdated) Kind() string { return "role_updated" }

// OwnershipTransferred is emitted when a registry changes hands.
type OwnershipTransferred struct {
	Registry string         `json:"registry"`
	Previous common.Address `json:"previous"`
	Current  common.Address `json:"current"`
}

func (OwnershipTransferred) Kind() string { return "ownership_transferred" }

// Deposit is emitted when assets enter the vault against newly minted shares.
type Deposit struct {
	Caller   common.Address `json:"caller"`
	Receiver common.Address `json:"receiver"`
	Assets   sdkmath.Int    `json:"assets"`
	Shares   sdkmath.Int    `json:"shares"`
}

func (Deposit) Kind() string { return "deposit" }

// Withdraw is emitted for instant exits. Assets is the pre-fee amount.
type Withdraw struct {
	Caller   common.Address `json:"caller"`
	Receiver common.Address `json:"receiver"`
	Owner    common.Address `json:"owner"`
	Assets   sdkmath.Int    `json:"assets"`
	Shares   sdkmath.Int    `json:"shares"`
}

func (Withdraw) Kind() string { return "withdraw" }

// FeeCollected is emitted whenever an exit, instant or queued, pays the withdrawal fee.
type FeeCollected struct {
	Receiver common.Address `json:"receiver"`
	Fee      sdkmath.Int    `json:"fee"`
}

func (FeeCollected) Kind() string { return "fee_collected" }

// Dispatched is emitted when idle assets move to the remote venue.
type Dispatched struct {
	Remote            common.Address `json:"remote"`
	Amount            sdkmath.Int    `json:"amount"`
	PrincipalDelta    sdkmath.Int    `json:"principal_delta"`
	InvestedPrincipal sdkmath.Int    `json:"invested_principal"`
}

func (Dispatched) Kind() string { return "dispatched" }

// Repatriated is emitted when assets return from the remote venue.
type Repatriated struct {
	Remote            common.Address `json:"remote"`
	Amount            sdkmath.Int    `json:"amount"`
	PrincipalDelta    sdkmath.Int    `json:"principal_delta"`
	InvestedPrincipal sdkmath.Int    `json:"invested_principal"`
}

func (Repatriated) Kind() string { return "repatriated" }

// ExchangeRateUpdated is emitted on every rate overwrite.
type ExchangeRateUpdated struct {
	Caller   common.Address `json:"caller"`
	Previous sdkmath.Int    `json:"previous"`
	Current  sdkmath.Int    `json:"current"`
}

func (ExchangeRateUpdated) Kind() string { return "exchange_rate_updated" }

// ParameterChanged is emitted by the owner-gated setters.
type ParameterChanged struct {
	Component string `json:"component"`
	Name      string `json:"name"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
}

func (ParameterChanged) Kind() string { return "parameter_changed" }

// ForwardedToQueue is emitted when idle assets move into the queue's custody.
type ForwardedToQueue struct {
	Queue  common.Address `json:"queue"`
	Amount sdkmath.Int    `json:"amount"`
}

func (ForwardedToQueue) Kind() string { return "forwarded_to_queue" }

// WithdrawalQueued is emitted when a large withdrawal request is recorded.
type WithdrawalQueued struct {
	ID            common.Hash    `json:"id"`
	Owner         common.Address `json:"owner"`
	Receiver      common.Address `json:"receiver"`
	Shares        sdkmath.Int    `json:"shares"`
	Assets        sdkmath.Int    `json:"assets"`
	MaxPenaltyFee sdkmath.Int    `json:"max_penalty_fee"`
}

func (WithdrawalQueued) Kind() string { return "withdrawal_queued" }

// PenaltyFeeSet is emitted when a fee-setter negotiates a request's penalty.
type PenaltyFeeSet struct {
	ID     common.Hash    `json:"id"`
	Setter common.Address `json:"setter"`
	Fee    sdkmath.Int    `json:"fee"`
}

func (PenaltyFeeSet) Kind() string { return "penalty_fee_set" }

// WithdrawalExecuted is emitted when a queued request settles.
type WithdrawalExecuted struct {
	ID         common.Hash    `json:"id"`
	Caller     common.Address `json:"caller"`
	Receiver   common.Address `json:"receiver"`
	Shares     sdkmath.Int    `json:"shares"`
	Assets     sdkmath.Int    `json:"assets"`
	VaultFee   sdkmath.Int    `json:"vault_fee"`
	PenaltyFee sdkmath.Int    `json:"penalty_fee"`
	Paid       sdkmath.Int    `json:"paid"`
}

func (WithdrawalExecuted) Kind() string { return "withdrawal_executed" }

// ExcessWithdrawFulfilled is emitted by the coordinator after a repatriate-then-forward unit.
type ExcessWithdrawFulfilled struct {
	Operator common.Address `json:"operator"`
	Amount   sdkmath.Int    `json:"amount"`
}

func (ExcessWithdrawFulfilled) Kind() string { return "excess_withdraw_fulfilled" }
