// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/types"
)

// SaveStatusSnapshot saves one monitor cycle's view of the vault and queue.
func SaveStatusSnapshot(snapshot types.StatusSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	vaultJSON, err := json.Marshal(snapshot.Vault)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal vault_status: %w", err)
	}
	queueJSON, err := json.Marshal(snapshot.Queue)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue_summary: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			total_assets, idle_balance, invested_principal,
			total_queued_assets, queue_shortfall,
			vault_status, queue_summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp,
		intString(snapshot.Vault.TotalAssets), intString(snapshot.Vault.IdleBalance), intString(snapshot.Vault.InvestedPrincipal),
		intString(snapshot.Queue.TotalQueuedAssets), intString(snapshot.Queue.Shortfall),
		vaultJSON, queueJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save status snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("total_assets", intString(snapshot.Vault.TotalAssets)).
		Msg("Status snapshot saved to database")
	return snapshotID, nil
}
