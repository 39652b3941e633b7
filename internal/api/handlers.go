package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safetyverse/weather-alerts/internal/alarming"
	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxWeatherFanOut    = 8
)

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.PingContext(ctx); err != nil {
		h.Logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *handler) listSites(c *gin.Context) {
	sites, err := h.Store.ListActiveSites(c.Request.Context())
	if err != nil {
		h.Logger.Error("Failed to list sites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if sites == nil {
		sites = []*database.Site{}
	}
	c.JSON(http.StatusOK, sites)
}

// loadSite resolves the site named by param, writing the error response
// itself when it returns nil.
func (h *handler) loadSite(c *gin.Context, param string) *database.Site {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site id"})
		return nil
	}

	site, err := h.Store.GetSite(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return nil
	}
	if err != nil {
		h.Logger.Error("Failed to get site", zap.Int64("site_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	return site
}

func (h *handler) getSite(c *gin.Context) {
	if site := h.loadSite(c, "id"); site != nil {
		c.JSON(http.StatusOK, site)
	}
}

type weatherResponse struct {
	Site       *database.Site        `json:"site"`
	Current    *conditions.Reading   `json:"current,omitempty"`
	Forecast   []conditions.Reading  `json:"forecast,omitempty"`
	Advisories []conditions.Advisory `json:"advisories,omitempty"`
	Timezone   string                `json:"timezone,omitempty"`
	Hazards    []hazard.Candidate    `json:"hazards,omitempty"`
	FetchedAt  *time.Time            `json:"fetched_at,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func (h *handler) fetchWeather(ctx context.Context, site *database.Site) (*weatherResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, h.FetchTimeout)
	defer cancel()

	snap, err := h.Provider.Fetch(fetchCtx, site.Latitude, site.Longitude)
	if err != nil {
		return &weatherResponse{Site: site, Error: "weather unavailable"}, err
	}
	return &weatherResponse{
		Site:       site,
		Current:    &snap.Current,
		Forecast:   snap.Summary(snap.FetchedAt),
		Advisories: snap.Advisories,
		Timezone:   snap.Timezone,
		Hazards:    h.Evaluator.Evaluate(h.Clock.Now(), snap),
		FetchedAt:  &snap.FetchedAt,
	}, nil
}

func (h *handler) siteWeather(c *gin.Context) {
	site := h.loadSite(c, "siteId")
	if site == nil {
		return
	}

	resp, err := h.fetchWeather(c.Request.Context(), site)
	if err != nil {
		h.Logger.Warn("Weather fetch failed", zap.Int64("site_id", site.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Weather provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// allWeather fetches every active site concurrently. A failed site is
// reported inline rather than failing the request.
func (h *handler) allWeather(c *gin.Context) {
	ctx := c.Request.Context()
	sites, err := h.Store.ListActiveSites(ctx)
	if err != nil {
		h.Logger.Error("Failed to list sites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]*weatherResponse, len(sites))
	var g errgroup.Group
	g.SetLimit(maxWeatherFanOut)
	for i, site := range sites {
		g.Go(func() error {
			resp, err := h.fetchWeather(ctx, site)
			if err != nil {
				h.Logger.Warn("Weather fetch failed", zap.Int64("site_id", site.ID), zap.Error(err))
			}
			out[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, out)
}

func (h *handler) listAlerts(c *gin.Context) {
	var filter database.HistoryFilter
	if raw := c.Query("siteId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid siteId"})
			return
		}
		filter.SiteID = id
	}

	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	alerts, err := h.Store.ListAlertHistory(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.Logger.Error("Failed to list alert history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if alerts == nil {
		alerts = []*database.AlertHistoryEntry{}
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *handler) activeAlerts(c *gin.Context) {
	since := h.Clock.Now().Add(-h.ActiveWindow)
	alerts, err := h.Store.ListActiveAlerts(c.Request.Context(), since)
	if err != nil {
		h.Logger.Error("Failed to list active alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if alerts == nil {
		alerts = []*database.AlertHistoryEntry{}
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *handler) checkNow(c *gin.Context) {
	result, err := h.Trigger.RunNow(c.Request.Context())
	if errors.Is(err, alarming.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "An alert check is already running"})
		return
	}
	if err != nil {
		h.Logger.Error("Manual alert check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Alert check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) thresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"current":          h.Evaluator.CurrentThresholds(),
		"forecast":         h.Evaluator.ForecastThresholds(),
		"cooldown_minutes": h.CooldownWindow.Minutes(),
		"poll_minutes":     h.PollInterval.Minutes(),
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
