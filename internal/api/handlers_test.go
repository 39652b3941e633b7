package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/alarming"
	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)

type fakeStore struct {
	pingErr     error
	sites       []*database.Site
	listErr     error
	history     []*database.AlertHistoryEntry
	historyErr  error
	gotFilter   database.HistoryFilter
	gotLimit    int
	gotOffset   int
	gotSince    time.Time
	activeError error
}

func (s *fakeStore) PingContext(ctx context.Context) error { return s.pingErr }

func (s *fakeStore) ListActiveSites(ctx context.Context) ([]*database.Site, error) {
	return s.sites, s.listErr
}

func (s *fakeStore) GetSite(ctx context.Context, id int64) (*database.Site, error) {
	for _, site := range s.sites {
		if site.ID == id {
			return site, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListAlertHistory(ctx context.Context, filter database.HistoryFilter, limit, offset int) ([]*database.AlertHistoryEntry, error) {
	s.gotFilter, s.gotLimit, s.gotOffset = filter, limit, offset
	return s.history, s.historyErr
}

func (s *fakeStore) ListActiveAlerts(ctx context.Context, since time.Time) ([]*database.AlertHistoryEntry, error) {
	s.gotSince = since
	return s.history, s.activeError
}

type fakeProvider struct {
	snap *conditions.Snapshot
	err  error
}

func (p *fakeProvider) Fetch(ctx context.Context, lat, lon float64) (*conditions.Snapshot, error) {
	if lat == 0 {
		return nil, &conditions.FetchError{Source: "forecast", Status: 502}
	}
	return p.snap, p.err
}

type fakeTrigger struct {
	result *alarming.RunResult
	err    error
}

func (t *fakeTrigger) RunNow(ctx context.Context) (*alarming.RunResult, error) {
	return t.result, t.err
}

type fixture struct {
	store    *fakeStore
	provider *fakeProvider
	trigger  *fakeTrigger
	router   *gin.Engine
}

func newFixture() *fixture {
	thresholds := hazard.Thresholds{HeatIndex: 95, ColdTemp: 20, WindSpeed: 45, AQI: 150}
	f := &fixture{
		store: &fakeStore{sites: []*database.Site{
			{ID: 1, Name: "Riverside Tower", Latitude: 32.7, Longitude: -96.8, ManagerEmail: "ana@example.com", IsActive: true},
			{ID: 2, Name: "Broken Feed", Latitude: 0, Longitude: 0, IsActive: true},
		}},
		provider: &fakeProvider{snap: &conditions.Snapshot{
			Current:   conditions.NewReading(now, 99, 107, 8, 1, nil),
			Timezone:  "America/Chicago",
			FetchedAt: now,
		}},
		trigger: &fakeTrigger{},
	}
	f.router = NewRouter(Deps{
		Store:          f.store,
		Provider:       f.provider,
		Evaluator:      hazard.NewEvaluator(thresholds, thresholds),
		Trigger:        f.trigger,
		Clock:          clockwork.NewFakeClockAt(now),
		Logger:         zap.NewNop(),
		ActiveWindow:   4 * time.Hour,
		CooldownWindow: 4 * time.Hour,
		PollInterval:   30 * time.Minute,
		FetchTimeout:   time.Second,
	})
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz").Code)

	f.store.pingErr = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListSites(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/sites")
	require.Equal(t, http.StatusOK, w.Code)

	var sites []database.Site
	decode(t, w, &sites)
	assert.Len(t, sites, 2)

	f.store.sites = nil
	w = f.do(http.MethodGet, "/api/sites")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetSite(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/api/sites/1")
	require.Equal(t, http.StatusOK, w.Code)
	var site database.Site
	decode(t, w, &site)
	assert.Equal(t, "Riverside Tower", site.Name)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sites/99").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/sites/abc").Code)
}

func TestSiteWeather(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/api/weather/1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp weatherResponse
	decode(t, w, &resp)
	require.NotNil(t, resp.Current)
	assert.Equal(t, 107.0, resp.Current.ApparentTemperature)
	assert.Equal(t, "America/Chicago", resp.Timezone)
	require.Len(t, resp.Hazards, 1)
	assert.Equal(t, hazard.HeatIndex, resp.Hazards[0].Type)
	assert.Equal(t, hazard.SeverityWarning, resp.Hazards[0].Severity)

	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodGet, "/api/weather/2").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/weather/42").Code)
}

func TestAllWeather_ReportsFailuresInline(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/api/weather/all")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []weatherResponse
	decode(t, w, &resp)
	require.Len(t, resp, 2)
	assert.NotNil(t, resp[0].Current)
	assert.Empty(t, resp[0].Error)
	assert.Nil(t, resp[1].Current)
	assert.Equal(t, "weather unavailable", resp[1].Error)
}

func TestListAlerts_Pagination(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/api/alerts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 50, f.store.gotLimit)
	assert.Equal(t, 0, f.store.gotOffset)
	assert.Zero(t, f.store.gotFilter.SiteID)

	f.do(http.MethodGet, "/api/alerts?siteId=1&limit=5000&offset=20")
	assert.Equal(t, int64(1), f.store.gotFilter.SiteID)
	assert.Equal(t, 500, f.store.gotLimit)
	assert.Equal(t, 20, f.store.gotOffset)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/alerts?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/alerts?offset=-1").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/alerts?siteId=x").Code)
}

func TestListAlerts_StoreError(t *testing.T) {
	f := newFixture()
	f.store.historyErr = errors.New("timeout")
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/api/alerts").Code)
}

func TestActiveAlerts_UsesWindow(t *testing.T) {
	f := newFixture()
	f.store.history = []*database.AlertHistoryEntry{{
		AlertRecord: database.AlertRecord{ID: 9, SiteID: 1, AlertType: "heat_index", Severity: "warning"},
		SiteName:    "Riverside Tower",
	}}

	w := f.do(http.MethodGet, "/api/alerts/active")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now.Add(-4*time.Hour), f.store.gotSince)

	var alerts []database.AlertHistoryEntry
	decode(t, w, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Riverside Tower", alerts[0].SiteName)
}

func TestCheckNow(t *testing.T) {
	f := newFixture()
	f.trigger.result = &alarming.RunResult{RunID: "abc", SitesChecked: 2, AlertsSent: 1}

	w := f.do(http.MethodPost, "/api/alerts/check-now")
	require.Equal(t, http.StatusOK, w.Code)
	var result alarming.RunResult
	decode(t, w, &result)
	assert.Equal(t, "abc", result.RunID)
	assert.Equal(t, 1, result.AlertsSent)
}

func TestCheckNow_InProgress(t *testing.T) {
	f := newFixture()
	f.trigger.err = alarming.ErrRunInProgress

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/alerts/check-now").Code)
}

func TestCheckNow_FailureIsGeneric(t *testing.T) {
	f := newFixture()
	f.trigger.err = errors.New("pq: password authentication failed for user alerts")

	w := f.do(http.MethodPost, "/api/alerts/check-now")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestThresholds(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/api/config/thresholds")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Current         hazard.Thresholds `json:"current"`
		Forecast        hazard.Thresholds `json:"forecast"`
		CooldownMinutes float64           `json:"cooldown_minutes"`
		PollMinutes     float64           `json:"poll_minutes"`
	}
	decode(t, w, &body)
	assert.Equal(t, 95.0, body.Current.HeatIndex)
	assert.Equal(t, 150.0, body.Forecast.AQI)
	assert.Equal(t, 240.0, body.CooldownMinutes)
	assert.Equal(t, 30.0, body.PollMinutes)
}
