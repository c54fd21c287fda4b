package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/state"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/utils"
)

// ServiceName is the health service name the monitor reports under.
const ServiceName = "liquidvault.Monitor"

// StatusSource provides a consistent read of the vault and its queue.
type StatusSource interface {
	Status(ctx context.Context) (types.VaultStatus, types.QueueSummary, error)
}

// Store persists cycle snapshots.
type Store interface {
	IncrementCycleNumber() (int, error)
	SaveStatusSnapshot(snapshot types.StatusSnapshot) (int64, error)
	Ping() error
}

// HealthReporter receives serving status updates; *health.Server satisfies it.
type HealthReporter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Config holds the dependencies of a Monitor. Store and Health are optional.
type Config struct {
	Source StatusSource
	Store  Store
	Health HealthReporter
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Monitor periodically snapshots the vault, reports liquidity pressure and persists what it saw.
type Monitor struct {
	logger zerolog.Logger
	source StatusSource
	store  Store
	health HealthReporter
	clock  func() time.Time

	mu         sync.RWMutex
	cycleCount int
	latest     *types.StatusSnapshot
}

// New creates a Monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("status source cannot be nil")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		logger: logger.GetForComponent("monitor"),
		source: cfg.Source,
		store:  cfg.Store,
		health: cfg.Health,
		clock:  clock,
	}, nil
}

// RunLoop runs a cycle immediately and then once per interval until ctx is cancelled.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().
		Dur("interval", interval).
		Msg("Starting monitor loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.runCycleLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Monitor loop stopped due to context cancellation")
			return
		case <-ticker.C:
			m.runCycleLogged(ctx)
		}
	}
}

func (m *Monitor) runCycleLogged(ctx context.Context) {
	if _, err := m.RunCycle(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Monitor cycle failed")
	}
}

// RunCycle takes one snapshot. Persistence failures are logged and reflected in the health status;
// they do not fail the cycle.
func (m *Monitor) RunCycle(ctx context.Context) (types.StatusSnapshot, error) {
	started := m.clock()
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Logger()

	vs, qs, err := m.source.Status(ctx)
	if err != nil {
		m.setServing(false)
		return types.StatusSnapshot{}, fmt.Errorf("failed to read vault status: %w", err)
	}

	snapshot := types.StatusSnapshot{
		CycleNumber: m.nextCycleNumber(cycleLogger),
		CycleID:     cycleID,
		Timestamp:   started,
		Vault:       vs,
		Queue:       qs,
	}
	m.report(cycleLogger, snapshot)

	healthy := true
	if m.store != nil {
		if err := m.store.Ping(); err != nil {
			cycleLogger.Error().Err(err).Msg("Database unreachable, snapshot not persisted")
			healthy = false
		} else if id, err := m.store.SaveStatusSnapshot(snapshot); err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to save status snapshot")
			healthy = false
		} else {
			snapshot.SnapshotID = id
		}
	}
	m.setServing(healthy)

	m.mu.Lock()
	m.latest = &snapshot
	m.mu.Unlock()

	cycleLogger.Info().
		Int("cycle", snapshot.CycleNumber).
		Str("duration", m.clock().Sub(started).String()).
		Msg("Monitor cycle completed")
	return snapshot, nil
}

// Latest returns the most recent snapshot, if any cycle has run.
func (m *Monitor) Latest() (types.StatusSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return types.StatusSnapshot{}, false
	}
	return *m.latest, true
}

func (m *Monitor) nextCycleNumber(cycleLogger zerolog.Logger) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		n, err := m.store.IncrementCycleNumber()
		if err == nil {
			m.cycleCount = n
			return n
		}
		cycleLogger.Warn().Err(err).Msg("Failed to increment persistent cycle counter, using local count")
	}
	m.cycleCount++
	return m.cycleCount
}

// report logs the liquidity picture an operator acts on.
func (m *Monitor) report(cycleLogger zerolog.Logger, s types.StatusSnapshot) {
	vs, qs := s.Vault, s.Queue
	cycleLogger.Info().
		Str("total_assets", units(vs.TotalAssets, vs.AssetDecimals)).
		Str("idle", units(vs.IdleBalance, vs.AssetDecimals)).
		Str("invested_principal", units(vs.InvestedPrincipal, vs.AssetDecimals)).
		Str("exchange_rate", units(vs.ExchangeRate, vs.AssetDecimals)).
		Str("max_dispatchable", units(vs.MaxDispatchable, vs.AssetDecimals)).
		Str("asset", vs.AssetSymbol).
		Msg("Vault status")

	if !vs.IdleBalance.IsNil() && !vs.RequiredIdle.IsNil() && vs.IdleBalance.LT(vs.RequiredIdle) {
		cycleLogger.Warn().
			Str("idle", units(vs.IdleBalance, vs.AssetDecimals)).
			Str("required", units(vs.RequiredIdle, vs.AssetDecimals)).
			Msg("Idle buffer below threshold, dispatches are blocked")
	}

	if qs.PendingRequests == 0 {
		return
	}
	event := cycleLogger.Info()
	if !qs.Shortfall.IsNil() && qs.Shortfall.IsPositive() {
		event = cycleLogger.Warn()
	}
	event.
		Int("pending", qs.PendingRequests).
		Int("awaiting_fee", qs.AwaitingFee).
		Int("ready", qs.Ready).
		Str("queued", units(qs.TotalQueuedAssets, vs.AssetDecimals)).
		Str("reserve", units(qs.Reserve, vs.AssetDecimals)).
		Str("shortfall", units(qs.Shortfall, vs.AssetDecimals)).
		Msg("Withdrawal queue status")
}

// units renders a raw amount in whole asset units for logs.
func units(amount sdkmath.Int, decimals uint8) string {
	if amount.IsNil() {
		return "0"
	}
	s, err := utils.FormatUnits(amount, decimals)
	if err != nil {
		return amount.String()
	}
	return s
}

func (m *Monitor) setServing(ok bool) {
	if m.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.health.SetServingStatus(ServiceName, status)
}

// DBStore persists through the state package.
type DBStore struct{}

func (DBStore) IncrementCycleNumber() (int, error) { return state.IncrementCycleNumber() }

func (DBStore) SaveStatusSnapshot(s types.StatusSnapshot) (int64, error) {
	return state.SaveStatusSnapshot(s)
}

func (DBStore) Ping() error { return state.TestDBConnection() }
