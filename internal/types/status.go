package types

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// VaultStatus is a consistent read of the vault's accounting taken inside one critical section.
type VaultStatus struct {
	Address             common.Address `json:"address"`
	AssetSymbol         string         `json:"asset_symbol"`
	AssetDecimals       uint8          `json:"asset_decimals"`
	IdleBalance         sdkmath.Int    `json:"idle_balance"`
	QueueReserve        sdkmath.Int    `json:"queue_reserve"`
	InvestedPrincipal   sdkmath.Int    `json:"invested_principal"`
	InvestedValue       sdkmath.Int    `json:"invested_value"`
	ExchangeRate        sdkmath.Int    `json:"exchange_rate"`
	TotalAssets         sdkmath.Int    `json:"total_assets"`
	TotalShares         sdkmath.Int    `json:"total_shares"`
	ThresholdPercentage sdkmath.Int    `json:"threshold_percentage"`
	RequiredIdle        sdkmath.Int    `json:"required_idle"`
	MaxDispatchable     sdkmath.Int    `json:"max_dispatchable"`
	FeePercentage       sdkmath.Int    `json:"fee_percentage"`
	FeeAbsoluteMinimum  sdkmath.Int    `json:"fee_absolute_minimum"`
	FeeReceiver         common.Address `json:"fee_receiver"`
	RemoteVenue         common.Address `json:"remote_venue"`
	WithdrawalQueue     common.Address `json:"withdrawal_queue"`
}

// QueueSummary sizes the outstanding queued liabilities for operators.
type QueueSummary struct {
	Address           common.Address `json:"address"`
	PendingRequests   int            `json:"pending_requests"`
	AwaitingFee       int            `json:"awaiting_fee"`
	Ready             int            `json:"ready"`
	TotalQueuedAssets sdkmath.Int    `json:"total_queued_assets"`
	Reserve           sdkmath.Int    `json:"reserve"`
	Shortfall         sdkmath.Int    `json:"shortfall"`
}

// StatusSnapshot is what the monitor persists each cycle.
type StatusSnapshot struct {
	SnapshotID  int64        `json:"snapshot_id,omitempty"`
	CycleNumber int          `json:"cycle_number"`
	CycleID     string       `json:"cycle_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Vault       VaultStatus  `json:"vault"`
	Queue       QueueSummary `json:"queue"`
}

// JournalEntry is a persisted event row.
type JournalEntry struct {
	EventID   int64           `json:"event_id"`
	TxID      string          `json:"tx_id"`
	Sequence  int             `json:"sequence"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
}
