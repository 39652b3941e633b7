package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/alarming"
	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
)

// Store is the read side of the alert store used by the API.
type Store interface {
	PingContext(ctx context.Context) error
	ListActiveSites(ctx context.Context) ([]*database.Site, error)
	GetSite(ctx context.Context, id int64) (*database.Site, error)
	ListAlertHistory(ctx context.Context, filter database.HistoryFilter, limit, offset int) ([]*database.AlertHistoryEntry, error)
	ListActiveAlerts(ctx context.Context, since time.Time) ([]*database.AlertHistoryEntry, error)
}

// Trigger is satisfied by *alarming.Scheduler.
type Trigger interface {
	RunNow(ctx context.Context) (*alarming.RunResult, error)
}

// Deps wires the handlers to the rest of the service.
type Deps struct {
	Store          Store
	Provider       conditions.Provider
	Evaluator      *hazard.Evaluator
	Trigger        Trigger
	Clock          clockwork.Clock
	Logger         *zap.Logger
	ActiveWindow   time.Duration
	CooldownWindow time.Duration
	PollInterval   time.Duration
	FetchTimeout   time.Duration
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = 30 * time.Second
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/sites", h.listSites)
		api.GET("/sites/:id", h.getSite)

		api.GET("/weather/all", h.allWeather)
		api.GET("/weather/:siteId", h.siteWeather)

		api.GET("/alerts", h.listAlerts)
		api.GET("/alerts/active", h.activeAlerts)
		api.POST("/alerts/check-now", h.checkNow)

		api.GET("/config/thresholds", h.thresholds)
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Server runs the router on an http.Server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(addr string, router http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background. A listen failure is logged as fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
