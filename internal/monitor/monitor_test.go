package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/elys-network/liquidvault/internal/types"
)

type fakeSource struct {
	vs  types.VaultStatus
	qs  types.QueueSummary
	err error
}

func (f *fakeSource) Status(context.Context) (types.VaultStatus, types.QueueSummary, error) {
	return f.vs, f.qs, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	cycle    int
	saved    []types.StatusSnapshot
	pingErr  error
	saveErr  error
	cycleErr error
}

func (f *fakeStore) IncrementCycleNumber() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cycleErr != nil {
		return 0, f.cycleErr
	}
	f.cycle++
	return f.cycle, nil
}

func (f *fakeStore) SaveStatusSnapshot(s types.StatusSnapshot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, s)
	return int64(len(f.saved)), nil
}

func (f *fakeStore) Ping() error { return f.pingErr }

type fakeHealth struct {
	mu       sync.Mutex
	statuses []healthpb.HealthCheckResponse_ServingStatus
}

func (f *fakeHealth) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeHealth) last() healthpb.HealthCheckResponse_ServingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[len(f.statuses)-1]
}

func sampleSource() *fakeSource {
	return &fakeSource{
		vs: types.VaultStatus{
			AssetSymbol:       "USDC",
			AssetDecimals:     6,
			IdleBalance:       sdkmath.NewInt(50_000),
			RequiredIdle:      sdkmath.NewInt(100_000),
			TotalAssets:       sdkmath.NewInt(1_000_000),
			InvestedPrincipal: sdkmath.NewInt(950_000),
			ExchangeRate:      sdkmath.NewInt(1_000_000),
			MaxDispatchable:   sdkmath.ZeroInt(),
		},
		qs: types.QueueSummary{
			PendingRequests:   2,
			Ready:             1,
			AwaitingFee:       1,
			TotalQueuedAssets: sdkmath.NewInt(300),
			Reserve:           sdkmath.NewInt(100),
			Shortfall:         sdkmath.NewInt(200),
		},
	}
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRunCyclePersistsSnapshot(t *testing.T) {
	store := &fakeStore{cycle: 41}
	health := &fakeHealth{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := New(Config{Source: sampleSource(), Store: store, Health: health, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	_, ok := m.Latest()
	assert.False(t, ok)

	snap, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, snap.CycleNumber)
	assert.Equal(t, int64(1), snap.SnapshotID)
	assert.Equal(t, now, snap.Timestamp)
	assert.NotEmpty(t, snap.CycleID)
	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].Queue.Shortfall.Equal(sdkmath.NewInt(200)))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.last())

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, snap, latest)
}

func TestRunCycleDatabaseFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"ping fails", &fakeStore{pingErr: errors.New("connection refused")}},
		{"save fails", &fakeStore{saveErr: errors.New("disk full")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := &fakeHealth{}
			m, err := New(Config{Source: sampleSource(), Store: tt.store, Health: health})
			require.NoError(t, err)

			snap, err := m.RunCycle(context.Background())
			require.NoError(t, err, "persistence failures do not fail the cycle")
			assert.Zero(t, snap.SnapshotID)
			assert.Empty(t, tt.store.saved)
			assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, health.last())
		})
	}
}

func TestRunCycleLocalCounterFallback(t *testing.T) {
	store := &fakeStore{cycleErr: errors.New("counter missing")}
	m, err := New(Config{Source: sampleSource(), Store: store})
	require.NoError(t, err)

	first, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.CycleNumber)
	assert.Equal(t, 2, second.CycleNumber)
}

func TestRunCycleWithoutStore(t *testing.T) {
	health := &fakeHealth{}
	m, err := New(Config{Source: sampleSource(), Health: health})
	require.NoError(t, err)

	snap, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CycleNumber)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.last())
}

func TestRunCycleSourceError(t *testing.T) {
	health := &fakeHealth{}
	src := sampleSource()
	src.err = context.Canceled
	m, err := New(Config{Source: src, Health: health})
	require.NoError(t, err)

	_, err = m.RunCycle(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, health.last())
	_, ok := m.Latest()
	assert.False(t, ok)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	m, err := New(Config{Source: sampleSource(), Store: store})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunLoop(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := m.Latest()
		return ok
	}, time.Second, 5*time.Millisecond, "first cycle runs immediately")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not return after cancellation")
	}
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "1.5", units(sdkmath.NewInt(1_500_000), 6))
	assert.Equal(t, "0", units(sdkmath.Int{}, 6))
	assert.Equal(t, "7", units(sdkmath.NewInt(7), 200))
}
