package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/types"
)

// EventJournal persists committed events to vault_events. It is registered as an executor sink.
type EventJournal struct {
	logger zerolog.Logger
}

func NewEventJournal() *EventJournal {
	return &EventJournal{logger: logger.GetForComponent("event_journal")}
}

// Publish writes the events of one committed transaction in a single database transaction.
// Failures are logged; the ledger has already committed and is the source of truth.
func (j *EventJournal) Publish(txID uuid.UUID, events []types.Event) {
	if err := SaveEvents(txID, events); err != nil {
		j.logger.Error().Err(err).Str("tx_id", txID.String()).Int("events", len(events)).Msg("Failed to journal events")
	}
}

// SaveEvents inserts events under txID, preserving emission order in the sequence column.
func SaveEvents(txID uuid.UUID, events []types.Event) (err error) {
	if DB == nil {
		return ErrNotInitialized
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO vault_events (tx_id, sequence, kind, payload, tags) VALUES ($1, $2, $3, $4, $5);`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", ev.Kind(), err)
		}
		if _, err := stmt.Exec(txID.String(), i, ev.Kind(), payload, pq.Array(EventTags(ev))); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", ev.Kind(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// EventTags lists the lowercase hex addresses an event concerns so journal rows can be filtered by account.
func EventTags(ev types.Event) []string {
	var addrs []string
	add := func(hexes ...string) { addrs = append(addrs, hexes...) }

	switch e := ev.(type) {
	case types.Transfer:
		add(e.From.Hex(), e.To.Hex())
	case types.Approval:
		add(e.Owner.Hex(), e.Spender.Hex())
	case types.RoleUpdated:
		add(e.Account.Hex())
	case types.OwnershipTransferred:
		add(e.Previous.Hex(), e.Current.Hex())
	case types.Deposit:
		add(e.Caller.Hex(), e.Receiver.Hex())
	case types.Withdraw:
		add(e.Caller.Hex(), e.Receiver.Hex(), e.Owner.Hex())
	case types.FeeCollected:
		add(e.Receiver.Hex())
	case types.Dispatched:
		add(e.Remote.Hex())
	case types.Repatriated:
		add(e.Remote.Hex())
	case types.ExchangeRateUpdated:
		add(e.Caller.Hex())
	case types.ForwardedToQueue:
		add(e.Queue.Hex())
	case types.WithdrawalQueued:
		add(e.Owner.Hex(), e.Receiver.Hex(), e.ID.Hex())
	case types.PenaltyFeeSet:
		add(e.Setter.Hex(), e.ID.Hex())
	case types.WithdrawalExecuted:
		add(e.Caller.Hex(), e.Receiver.Hex(), e.ID.Hex())
	case types.ExcessWithdrawFulfilled:
		add(e.Operator.Hex())
	}

	tags := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		a = strings.ToLower(a)
		if a == zeroAddressTag || seen[a] {
			continue
		}
		seen[a] = true
		tags = append(tags, a)
	}
	return tags
}

const zeroAddressTag = "0x0000000000000000000000000000000000000000"
