package alarming

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
	"github.com/safetyverse/weather-alerts/internal/notification"
	"github.com/safetyverse/weather-alerts/internal/observability"
	"github.com/safetyverse/weather-alerts/internal/protocol"
)

// SiteStore is the part of the alert store the engine writes through.
type SiteStore interface {
	ListActiveSites(ctx context.Context) ([]*database.Site, error)
	InsertAlertRecord(ctx context.Context, rec *database.AlertRecord) (int64, error)
}

// Cooldowns is satisfied by *CooldownGate.
type Cooldowns interface {
	IsActive(ctx context.Context, siteID int64, t hazard.Type) (bool, error)
	Set(ctx context.Context, siteID int64, t hazard.Type) error
}

// EventPublisher is satisfied by *queue.Producer.
type EventPublisher interface {
	PublishAlert(ctx context.Context, event *protocol.AlertEvent) error
}

// EngineConfig bounds a run. Zero timeouts mean no per-call deadline and a
// zero MaxConcurrentSites means unbounded fan-out.
type EngineConfig struct {
	MaxConcurrentSites int
	FetchTimeout       time.Duration
	DispatchTimeout    time.Duration
	StoreTimeout       time.Duration
}

// EngineDeps are the collaborators of an Engine. Publisher may be nil.
type EngineDeps struct {
	Store      SiteStore
	Provider   conditions.Provider
	Evaluator  *hazard.Evaluator
	Cooldowns  Cooldowns
	Renderer   notification.Renderer
	Dispatcher notification.Dispatcher
	Publisher  EventPublisher
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// RunResult summarizes one fan-out run.
type RunResult struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	SitesChecked   int       `json:"sites_checked"`
	AlertsSent     int       `json:"alerts_sent"`
	Suppressed     int       `json:"suppressed"`
	Errors         int       `json:"errors"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// Engine checks every active site once per run.
type Engine struct {
	EngineDeps
	cfg EngineConfig
}

func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	return &Engine{EngineDeps: deps, cfg: cfg}
}

type siteOutcome struct {
	sent       int
	suppressed int
	err        error
}

// Run lists active sites and processes each one independently. Only a
// failure to list sites fails the run; per-site failures are counted in
// RunResult.Errors.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	started := e.Clock.Now()
	result := &RunResult{RunID: uuid.NewString(), StartedAt: started}
	logger := e.Logger.With(zap.String("run_id", result.RunID))

	listCtx, cancel := withTimeout(ctx, e.cfg.StoreTimeout)
	sites, err := e.Store.ListActiveSites(listCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list active sites: %w", err)
	}

	logger.Info("Starting alert run", zap.Int("sites", len(sites)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if e.cfg.MaxConcurrentSites > 0 {
		g.SetLimit(e.cfg.MaxConcurrentSites)
	}

	for _, site := range sites {
		g.Go(func() error {
			out := e.safeProcessSite(ctx, result.RunID, site, logger)

			mu.Lock()
			defer mu.Unlock()
			result.SitesChecked++
			result.AlertsSent += out.sent
			result.Suppressed += out.suppressed
			if out.err != nil {
				result.Errors++
				logger.Error("Site check failed",
					zap.Int64("site_id", site.ID),
					zap.String("site", site.Name),
					zap.Error(out.err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.ElapsedSeconds = e.Clock.Since(started).Seconds()
	e.Metrics.SitesChecked.Add(float64(result.SitesChecked))

	logger.Info("Alert run complete",
		zap.Int("sites_checked", result.SitesChecked),
		zap.Int("alerts_sent", result.AlertsSent),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("errors", result.Errors),
		zap.Float64("elapsed_seconds", result.ElapsedSeconds),
	)
	return result, nil
}

func (e *Engine) safeProcessSite(ctx context.Context, runID string, site *database.Site, logger *zap.Logger) (out siteOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.Metrics.SiteErrors.WithLabelValues("panic").Inc()
			out.err = fmt.Errorf("panic while checking site: %v", r)
		}
	}()
	return e.processSite(ctx, runID, site, logger.With(zap.Int64("site_id", site.ID), zap.String("site", site.Name)))
}

func (e *Engine) processSite(ctx context.Context, runID string, site *database.Site, logger *zap.Logger) siteOutcome {
	var out siteOutcome

	fetchCtx, cancel := withTimeout(ctx, e.cfg.FetchTimeout)
	snap, err := e.Provider.Fetch(fetchCtx, site.Latitude, site.Longitude)
	cancel()
	if err != nil {
		e.Metrics.SiteErrors.WithLabelValues("fetch").Inc()
		out.err = fmt.Errorf("failed to fetch conditions: %w", err)
		return out
	}

	candidates := e.Evaluator.Evaluate(e.Clock.Now(), snap)
	if len(candidates) == 0 {
		aqi := "N/A"
		if snap.Current.AQI != nil {
			aqi = fmt.Sprintf("%.0f", *snap.Current.AQI)
		}
		logger.Info("All clear",
			zap.Float64("temperature", snap.Current.Temperature),
			zap.Float64("wind_speed", snap.Current.WindSpeed),
			zap.String("aqi", aqi),
		)
		return out
	}

	conditionsJSON, forecastJSON := snapshotJSON(snap)

	for _, c := range candidates {
		e.Metrics.CandidatesFound.WithLabelValues(string(c.Severity)).Inc()
		clog := logger.With(zap.String("alert_type", string(c.Type)), zap.String("severity", string(c.Severity)))

		active, err := e.Cooldowns.IsActive(ctx, site.ID, c.Type)
		if err != nil {
			e.Metrics.SiteErrors.WithLabelValues("store").Inc()
			out.err = err
			return out
		}
		if active {
			out.suppressed++
			e.Metrics.AlertsSuppressed.Inc()
			clog.Info("Cooldown active, skipping alert")
			continue
		}

		sent := e.dispatch(ctx, c, site, snap, clog)

		rec := &database.AlertRecord{
			SiteID:         site.ID,
			AlertType:      string(c.Type),
			Severity:       string(c.Severity),
			Label:          c.Label,
			ThresholdValue: c.Threshold,
			ActualValue:    c.Actual,
			Description:    c.Description,
			ConditionsJSON: conditionsJSON,
			ForecastJSON:   forecastJSON,
			EmailSent:      sent,
			EmailRecipient: site.ManagerEmail,
		}
		storeCtx, cancel := withTimeout(ctx, e.cfg.StoreTimeout)
		_, insertErr := e.Store.InsertAlertRecord(storeCtx, rec)
		cancel()

		// Cooldown is set even when the insert failed.
		if err := e.Cooldowns.Set(ctx, site.ID, c.Type); err != nil {
			clog.Error("Failed to set cooldown", zap.Error(err))
		}

		if insertErr != nil {
			e.Metrics.SiteErrors.WithLabelValues("store").Inc()
			out.err = insertErr
			return out
		}

		out.sent++
		e.Metrics.AlertsRecorded.WithLabelValues(string(c.Severity)).Inc()
		clog.Info("Alert recorded", zap.Int64("alert_id", rec.ID), zap.Bool("email_sent", sent))

		e.publish(ctx, runID, site, c, rec, clog)
	}
	return out
}

func (e *Engine) dispatch(ctx context.Context, c hazard.Candidate, site *database.Site, snap *conditions.Snapshot, logger *zap.Logger) bool {
	if site.ManagerEmail == "" {
		e.Metrics.Dispatches.WithLabelValues("skipped").Inc()
		logger.Info("No manager email on file, skipping notification")
		return false
	}

	content, err := e.Renderer.Render(c, site, snap)
	if err != nil {
		e.Metrics.Dispatches.WithLabelValues("failed").Inc()
		logger.Error("Failed to render notification", zap.Error(err))
		return false
	}

	sendCtx, cancel := withTimeout(ctx, e.cfg.DispatchTimeout)
	defer cancel()
	res := e.Dispatcher.Send(sendCtx, site.ManagerEmail, notification.Subject(c, site), content)
	if !res.Sent {
		e.Metrics.Dispatches.WithLabelValues("failed").Inc()
		logger.Warn("Notification not delivered", zap.String("reason", res.Reason))
		return false
	}
	e.Metrics.Dispatches.WithLabelValues("sent").Inc()
	return true
}

func (e *Engine) publish(ctx context.Context, runID string, site *database.Site, c hazard.Candidate, rec *database.AlertRecord, logger *zap.Logger) {
	if e.Publisher == nil {
		return
	}

	event := &protocol.AlertEvent{
		Version:     protocol.AlertEventVersion,
		EventID:     uuid.NewString(),
		RunID:       runID,
		AlertID:     rec.ID,
		SiteID:      site.ID,
		SiteName:    site.Name,
		AlertType:   string(c.Type),
		BaseType:    string(c.Type.Base()),
		Severity:    string(c.Severity),
		Label:       c.Label,
		Threshold:   c.Threshold,
		Actual:      c.Actual,
		Unit:        c.Unit,
		Description: c.Description,
		EmailSent:   rec.EmailSent,
		Recipient:   rec.EmailRecipient,
		CreatedAt:   rec.CreatedAt,
	}

	pubCtx, cancel := withTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.Publisher.PublishAlert(pubCtx, event); err != nil {
		e.Metrics.EventsPublished.WithLabelValues("error").Inc()
		logger.Warn("Failed to publish alert event", zap.Int64("alert_id", rec.ID), zap.Error(err))
		return
	}
	e.Metrics.EventsPublished.WithLabelValues("success").Inc()
}

func snapshotJSON(snap *conditions.Snapshot) (json.RawMessage, json.RawMessage) {
	current, _ := json.Marshal(snap.Current)
	forecast, _ := json.Marshal(snap.Summary(snap.FetchedAt))
	return current, forecast
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
