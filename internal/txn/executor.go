/*

This file implements the single global sequential ledger every component runs on.

Each public operation runs inside Atomic: it holds the executor's mutex for its whole duration, records an
undo closure for every state write, and buffers its events. A failing operation rewinds to its savepoint;
events reach the sinks only after the outermost operation commits, and in commit order. Sinks must not call
back into the executor.

*/

package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink receives the events of a committed transaction, in emission order.
type Sink interface {
	Publish(txID uuid.UUID, events []types.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(txID uuid.UUID, events []types.Event)

func (f SinkFunc) Publish(txID uuid.UUID, events []types.Event) { f(txID, events) }

// Executor serializes every operation against shared ledger state.
type Executor struct {
	mu sync.Mutex
	// pubMu is taken before mu is released so batches are published in commit order.
	pubMu  sync.Mutex
	sinkMu sync.RWMutex
	sinks  []Sink
	logger zerolog.Logger
}

// Tx is the journal of one externally visible operation.
type Tx struct {
	id     uuid.UUID
	undo   []func()
	events []types.Event
}

type txKey struct{}

// NewExecutor creates an executor publishing committed events to the given sinks.
func NewExecutor(sinks ...Sink) *Executor {
	return &Executor{
		sinks:  sinks,
		logger: logger.GetForComponent("txn"),
	}
}

// AddSink registers another sink for committed events.
func (e *Executor) AddSink(s Sink) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sinks = append(e.sinks, s)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txKey{}).(*Tx)
	return tx
}

// Atomic runs fn as one indivisible unit. When ctx already carries a transaction, fn joins it and
// only its own writes are rewound on failure; the outer operation decides the final outcome.
// fn must pass the supplied ctx to every nested call, otherwise the nested call blocks on the mutex.
func (e *Executor) Atomic(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if tx := FromContext(ctx); tx != nil {
		undoMark, eventMark := len(tx.undo), len(tx.events)
		if err = fn(ctx, tx); err != nil {
			tx.rewind(undoMark, eventMark)
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation not started: %w", err)
	}

	e.mu.Lock()
	tx := &Tx{id: uuid.New()}
	defer func() {
		if p := recover(); p != nil {
			tx.rewind(0, 0)
			e.mu.Unlock()
			panic(p) // Re-panic after rollback
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx), tx)
	if err != nil {
		tx.rewind(0, 0)
		e.mu.Unlock()
		e.logger.Debug().Str("tx_id", tx.id.String()).Err(err).Msg("Operation rolled back")
		return err
	}

	events := tx.events
	e.pubMu.Lock()
	e.mu.Unlock()
	defer e.pubMu.Unlock()

	if len(events) > 0 {
		e.publish(tx.id, events)
	}
	return nil
}

// View runs a read-only fn under the executor lock, or inside the caller's transaction.
func (e *Executor) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if FromContext(ctx) != nil {
		return fn(ctx)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, &Tx{id: uuid.New()}))
}

func (e *Executor) publish(txID uuid.UUID, events []types.Event) {
	e.sinkMu.RLock()
	sinks := append([]Sink(nil), e.sinks...)
	e.sinkMu.RUnlock()

	for _, s := range sinks {
		s.Publish(txID, events)
	}
}

// ID returns the transaction id used to correlate its events.
func (t *Tx) ID() uuid.UUID {
	return t.id
}

// OnRollback registers fn to restore state if the operation fails.
func (t *Tx) OnRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// Emit buffers ev until the outermost operation commits.
func (t *Tx) Emit(ev types.Event) {
	t.events = append(t.events, ev)
}

// Events returns the events buffered so far.
func (t *Tx) Events() []types.Event {
	return append([]types.Event(nil), t.events...)
}

func (t *Tx) rewind(undoMark, eventMark int) {
	for i := len(t.undo) - 1; i >= undoMark; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:undoMark]
	t.events = t.events[:eventMark]
}

// Set assigns v to *ptr and restores the previous value on rollback.
func Set[T any](tx *Tx, ptr *T, v T) {
	prev := *ptr
	*ptr = v
	tx.OnRollback(func() { *ptr = prev })
}

// SetKey writes m[k] = v and restores the previous entry (or its absence) on rollback.
func SetKey[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	tx.OnRollback(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// DeleteKey removes m[k] and restores it on rollback.
func DeleteKey[K comparable, V any](tx *Tx, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	delete(m, k)
	tx.OnRollback(func() { m[k] = prev })
}
