package alarming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/hazard"
	"github.com/safetyverse/weather-alerts/internal/observability"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type memCooldownStore struct {
	mu     sync.Mutex
	last   map[string]time.Time
	reads  int
	getErr error
	setErr error
}

func newMemCooldownStore() *memCooldownStore {
	return &memCooldownStore{last: make(map[string]time.Time)}
}

func (s *memCooldownStore) key(siteID int64, alertType string) string {
	return fmt.Sprintf("%d:%s", siteID, alertType)
}

func (s *memCooldownStore) LastCooldown(ctx context.Context, siteID int64, alertType string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.getErr != nil {
		return time.Time{}, false, s.getErr
	}
	at, ok := s.last[s.key(siteID, alertType)]
	return at, ok, nil
}

func (s *memCooldownStore) SetCooldown(ctx context.Context, siteID int64, alertType string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.last[s.key(siteID, alertType)] = at
	return nil
}

func newTestGate(store CooldownStore, rdb *redis.Client, clock clockwork.Clock) *CooldownGate {
	return NewCooldownGate(store, rdb, 4*time.Hour, clock, zap.NewNop(), observability.NewMetricsForTesting())
}

func TestCooldownGate_NoRecordIsInactive(t *testing.T) {
	gate := newTestGate(newMemCooldownStore(), nil, clockwork.NewFakeClockAt(t0))

	active, err := gate.IsActive(context.Background(), 1, hazard.HeatIndex)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestCooldownGate_Window(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	gate := newTestGate(newMemCooldownStore(), nil, clock)

	require.NoError(t, gate.Set(ctx, 1, hazard.HeatIndex))

	clock.Advance(3*time.Hour + 59*time.Minute)
	active, err := gate.IsActive(ctx, 1, hazard.HeatIndex)
	require.NoError(t, err)
	assert.True(t, active, "3h59m after the last alert the gate should still suppress")

	clock.Advance(time.Minute)
	active, err = gate.IsActive(ctx, 1, hazard.HeatIndex)
	require.NoError(t, err)
	assert.False(t, active, "exactly one window later the gate should allow")

	clock.Advance(time.Minute)
	active, err = gate.IsActive(ctx, 1, hazard.HeatIndex)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestCooldownGate_SharedBaseSlot(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(newMemCooldownStore(), nil, clockwork.NewFakeClockAt(t0))

	require.NoError(t, gate.Set(ctx, 7, hazard.ForecastHeat))

	for _, typ := range []hazard.Type{hazard.HeatIndex, hazard.ForecastHeat, hazard.Forecast48Heat} {
		active, err := gate.IsActive(ctx, 7, typ)
		require.NoError(t, err)
		assert.True(t, active, "%s should share the heat_index slot", typ)
	}

	active, err := gate.IsActive(ctx, 7, hazard.WindSpeed)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = gate.IsActive(ctx, 8, hazard.HeatIndex)
	require.NoError(t, err)
	assert.False(t, active, "slots are per site")
}

func TestCooldownGate_StoreReadError(t *testing.T) {
	store := newMemCooldownStore()
	store.getErr = errors.New("connection refused")
	gate := newTestGate(store, nil, clockwork.NewFakeClockAt(t0))

	_, err := gate.IsActive(context.Background(), 1, hazard.AQI)
	assert.ErrorIs(t, err, store.getErr)
}

func TestCooldownGate_ReadThroughCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := newMemCooldownStore()
	store.last["3:wind_speed"] = t0.Add(-time.Hour)
	clock := clockwork.NewFakeClockAt(t0)
	metrics := observability.NewMetricsForTesting()
	gate := NewCooldownGate(store, rdb, 4*time.Hour, clock, zap.NewNop(), metrics)

	active, err := gate.IsActive(ctx, 3, hazard.ForecastWind)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 1, store.reads)
	assert.True(t, mr.Exists("alert_cooldown:3:wind_speed"))
	assert.Equal(t, 3*time.Hour, mr.TTL("alert_cooldown:3:wind_speed"))

	active, err = gate.IsActive(ctx, 3, hazard.WindSpeed)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 1, store.reads, "second lookup should be served from the cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CooldownCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CooldownCache.WithLabelValues("miss")))
}

func TestCooldownGate_ExpiredRecordIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := newMemCooldownStore()
	store.last["3:aqi"] = t0.Add(-5 * time.Hour)
	gate := newTestGate(store, rdb, clockwork.NewFakeClockAt(t0))

	active, err := gate.IsActive(context.Background(), 3, hazard.AQI)
	require.NoError(t, err)
	assert.False(t, active)
	assert.False(t, mr.Exists("alert_cooldown:3:aqi"))
}

func TestCooldownGate_CacheHonoursClock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock := clockwork.NewFakeClockAt(t0)
	gate := newTestGate(newMemCooldownStore(), rdb, clock)
	require.NoError(t, gate.Set(ctx, 1, hazard.SevereStorm))

	clock.Advance(4*time.Hour + time.Minute)
	active, err := gate.IsActive(ctx, 1, hazard.Forecast48Storm)
	require.NoError(t, err)
	assert.False(t, active, "a cached entry past the window must not suppress")
}

func TestCooldownGate_RedisDownFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := newMemCooldownStore()
	clock := clockwork.NewFakeClockAt(t0)
	metrics := observability.NewMetricsForTesting()
	gate := NewCooldownGate(store, rdb, 4*time.Hour, clock, zap.NewNop(), metrics)

	require.NoError(t, gate.Set(ctx, 2, hazard.ColdTemp))

	active, err := gate.IsActive(ctx, 2, hazard.ForecastCold)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 1, store.reads)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CooldownCache.WithLabelValues("error")))
}

func TestCooldownGate_SetStoreErrorKeepsCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := newMemCooldownStore()
	store.setErr = errors.New("disk full")
	gate := newTestGate(store, rdb, clockwork.NewFakeClockAt(t0))

	err := gate.Set(ctx, 4, hazard.HeatIndex)
	assert.ErrorIs(t, err, store.setErr)

	active, err := gate.IsActive(ctx, 4, hazard.HeatIndex)
	require.NoError(t, err)
	assert.True(t, active)
}
