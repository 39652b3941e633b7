package alarming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/observability"
)

// ErrRunInProgress is returned when a run is triggered while another is active.
var ErrRunInProgress = errors.New("alert run already in progress")

const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// Runner is satisfied by *Engine.
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}

// Scheduler triggers runs after a startup delay and then on a fixed
// interval. At most one run executes at a time.
type Scheduler struct {
	runner       Runner
	interval     time.Duration
	startupDelay time.Duration
	clock        clockwork.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(runner Runner, interval, startupDelay time.Duration, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		runner:       runner,
		interval:     interval,
		startupDelay: startupDelay,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}
}

// Start blocks until ctx is done, then waits for any run it launched.
func (s *Scheduler) Start(ctx context.Context) {
	startup := s.clock.NewTimer(s.startupDelay)
	defer startup.Stop()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Alert scheduler started",
		zap.Duration("startup_delay", s.startupDelay),
		zap.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Alert scheduler stopping, waiting for active run")
			s.wg.Wait()
			return
		case <-startup.Chan():
			s.launch(ctx, TriggerStartup)
		case <-ticker.Chan():
			s.launch(ctx, TriggerInterval)
		}
	}
}

func (s *Scheduler) launch(ctx context.Context, trigger string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(ctx, trigger); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				s.logger.Warn("Previous run still in progress, skipping", zap.String("trigger", trigger))
				return
			}
			s.logger.Error("Alert run failed", zap.String("trigger", trigger), zap.Error(err))
		}
	}()
}

// RunNow runs synchronously on behalf of a manual trigger. The run is not
// cancelled when ctx is.
func (s *Scheduler) RunNow(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, TriggerManual)
}

// Running reports whether a run is executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) run(ctx context.Context, trigger string) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.RunsSkipped.Inc()
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.metrics.RunInProgress.Set(1)
	defer s.metrics.RunInProgress.Set(0)

	start := s.clock.Now()
	result, err := s.runner.Run(context.WithoutCancel(ctx))
	s.metrics.RunDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.metrics.RunsTotal.WithLabelValues(trigger).Inc()
	return result, nil
}
