package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/types"
)

// EventKindCount is the number of journaled events of one kind.
type EventKindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}

// GetRecentSnapshots retrieves the most recent status snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.StatusSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	limit = clampLimit(limit)

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp, vault_status, queue_summary
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.StatusSnapshot
	for rows.Next() {
		var (
			s                    types.StatusSnapshot
			vaultJSON, queueJSON []byte
		)
		if err := rows.Scan(&s.SnapshotID, &s.CycleNumber, &s.CycleID, &s.Timestamp, &vaultJSON, &queueJSON); err != nil {
			log.Error().Err(err).Msg("Failed to scan snapshot row")
			continue
		}
		if err := json.Unmarshal(vaultJSON, &s.Vault); err != nil {
			log.Error().Err(err).Int64("snapshot_id", s.SnapshotID).Msg("Failed to unmarshal vault status")
			continue
		}
		if err := json.Unmarshal(queueJSON, &s.Queue); err != nil {
			log.Error().Err(err).Int64("snapshot_id", s.SnapshotID).Msg("Failed to unmarshal queue summary")
			continue
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(snapshots)).Int("limit", limit).Msg("Retrieved recent snapshots")
	return snapshots, nil
}

// GetRecentEvents retrieves journaled events, newest first. A non-empty tag restricts the result to
// events concerning that address or request id.
func GetRecentEvents(limit int, tag string) ([]types.JournalEntry, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	limit = clampLimit(limit)

	query := `
		SELECT event_id, tx_id, sequence, kind, payload, tags, created_at
		FROM vault_events
		WHERE ($2 = '' OR $2 = ANY(tags))
		ORDER BY event_id DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit, strings.ToLower(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var entries []types.JournalEntry
	for rows.Next() {
		var (
			e       types.JournalEntry
			payload []byte
		)
		if err := rows.Scan(&e.EventID, &e.TxID, &e.Sequence, &e.Kind, &payload, pq.Array(&e.Tags), &e.CreatedAt); err != nil {
			log.Error().Err(err).Msg("Failed to scan event row")
			continue
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// GetEventKindCounts aggregates the journal by event kind.
func GetEventKindCounts() ([]EventKindCount, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	rows, err := DB.Query(`SELECT kind, COUNT(*) FROM vault_events GROUP BY kind ORDER BY kind;`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	var counts []EventKindCount
	for rows.Next() {
		var c EventKindCount
		if err := rows.Scan(&c.Kind, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetSnapshotByID retrieves one status snapshot.
func GetSnapshotByID(snapshotID int64) (*types.StatusSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	var (
		s                    types.StatusSnapshot
		vaultJSON, queueJSON []byte
	)
	err := DB.QueryRow(`
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp, vault_status, queue_summary
		FROM vault_snapshots
		WHERE snapshot_id = $1
	`, snapshotID).Scan(&s.SnapshotID, &s.CycleNumber, &s.CycleID, &s.Timestamp, &vaultJSON, &queueJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot with ID %d not found", snapshotID)
		}
		return nil, fmt.Errorf("failed to query snapshot by ID: %w", err)
	}
	if err := json.Unmarshal(vaultJSON, &s.Vault); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault status: %w", err)
	}
	if err := json.Unmarshal(queueJSON, &s.Queue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue summary: %w", err)
	}
	return &s, nil
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}
