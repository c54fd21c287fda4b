package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Role names an allow-list held by an access registry.
type Role string

const (
	RoleRebalancer Role = "rebalancer"
	RoleFeeSetter  Role = "fee_setter"
	RoleFulfiller  Role = "fulfiller"
)

// RequestStatus is the lifecycle state of a queued withdrawal.
// Executed requests are deleted, so only the two live states are observable.
type RequestStatus string

const (
	StatusAwaitingFee RequestStatus = "awaiting_fee"
	StatusReady       RequestStatus = "ready"
)

// WithdrawalRequest is one outstanding large withdrawal held by the queue.
type WithdrawalRequest struct {
	ID            common.Hash    `json:"id"`
	Owner         common.Address `json:"owner"`           // Identity that locked the shares
	Receiver      common.Address `json:"receiver"`        // Recipient of the settled assets
	Shares        sdkmath.Int    `json:"shares"`          // Shares held in queue custody
	Assets        sdkmath.Int    `json:"assets"`          // Asset estimate at queue time, counted in totalQueuedAssets
	MaxPenaltyFee sdkmath.Int    `json:"max_penalty_fee"` // Caller-stated ceiling for the penalty
	PenaltyFee    sdkmath.Int    `json:"penalty_fee"`     // Zero until negotiated
	Nonce         uint64         `json:"nonce"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Status reports whether the request still waits for its penalty fee.
func (r WithdrawalRequest) Status() RequestStatus {
	if r.PenaltyFee.IsNil() || r.PenaltyFee.IsZero() {
		return StatusAwaitingFee
	}
	return StatusReady
}
