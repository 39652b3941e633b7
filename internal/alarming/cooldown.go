package alarming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/hazard"
	"github.com/safetyverse/weather-alerts/internal/observability"
)

// CooldownStore is the authoritative cooldown table.
type CooldownStore interface {
	LastCooldown(ctx context.Context, siteID int64, alertType string) (time.Time, bool, error)
	SetCooldown(ctx context.Context, siteID int64, alertType string, at time.Time) error
}

// CooldownState is the cached form of a cooldown row.
type CooldownState struct {
	LastAlertedAt time.Time `json:"last_alerted_at"`
}

// CooldownGate suppresses repeat notifications for the same site and base
// hazard type within a window. Postgres is authoritative; Redis, when
// configured, is a read-through cache.
type CooldownGate struct {
	store   CooldownStore
	redis   *redis.Client
	window  time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCooldownGate creates a gate. redisClient may be nil.
func NewCooldownGate(store CooldownStore, redisClient *redis.Client, window time.Duration, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *CooldownGate {
	return &CooldownGate{
		store:   store,
		redis:   redisClient,
		window:  window,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

func cooldownKey(siteID int64, base hazard.Type) string {
	return fmt.Sprintf("alert_cooldown:%d:%s", siteID, base)
}

// IsActive reports whether a notification for t's base type was recorded
// for the site less than one window ago.
func (g *CooldownGate) IsActive(ctx context.Context, siteID int64, t hazard.Type) (bool, error) {
	base := t.Base()
	now := g.clock.Now()

	if state, ok := g.getCached(ctx, siteID, base); ok {
		return now.Sub(state.LastAlertedAt) < g.window, nil
	}

	last, found, err := g.store.LastCooldown(ctx, siteID, string(base))
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown: %w", err)
	}
	if !found {
		return false, nil
	}

	remaining := g.window - now.Sub(last)
	if remaining <= 0 {
		return false, nil
	}
	g.setCached(ctx, siteID, base, &CooldownState{LastAlertedAt: last}, remaining)
	return true, nil
}

// Set records a notification attempt at the current time. The cache is
// written before the database and is kept if the database write fails.
func (g *CooldownGate) Set(ctx context.Context, siteID int64, t hazard.Type) error {
	base := t.Base()
	now := g.clock.Now()

	g.setCached(ctx, siteID, base, &CooldownState{LastAlertedAt: now}, g.window)

	if err := g.store.SetCooldown(ctx, siteID, string(base), now); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

func (g *CooldownGate) getCached(ctx context.Context, siteID int64, base hazard.Type) (*CooldownState, bool) {
	if g.redis == nil {
		return nil, false
	}

	data, err := g.redis.Get(ctx, cooldownKey(siteID, base)).Result()
	if err == redis.Nil {
		g.metrics.CooldownCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		g.metrics.CooldownCache.WithLabelValues("error").Inc()
		g.logger.Warn("Cooldown cache read failed, using database",
			zap.Int64("site_id", siteID),
			zap.String("alert_type", string(base)),
			zap.Error(err),
		)
		return nil, false
	}

	var state CooldownState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		g.metrics.CooldownCache.WithLabelValues("error").Inc()
		g.logger.Warn("Discarding malformed cooldown cache entry", zap.String("key", cooldownKey(siteID, base)), zap.Error(err))
		return nil, false
	}

	g.metrics.CooldownCache.WithLabelValues("hit").Inc()
	return &state, true
}

func (g *CooldownGate) setCached(ctx context.Context, siteID int64, base hazard.Type, state *CooldownState, ttl time.Duration) {
	if g.redis == nil {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := g.redis.Set(ctx, cooldownKey(siteID, base), data, ttl).Err(); err != nil {
		g.logger.Warn("Cooldown cache write failed",
			zap.Int64("site_id", siteID),
			zap.String("alert_type", string(base)),
			zap.Error(err),
		)
	}
}
