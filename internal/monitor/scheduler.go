package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stazione/internal/types"
)

// DefaultTickInterval is the scheduler cadence when none is configured.
const DefaultTickInterval = 10 * time.Second

// Ticker is the write side of the Engine.
type Ticker interface {
	Tick(ctx context.Context) (types.RiskPoint, error)
}

// TickResult describes one scheduler tick for observers.
type TickResult struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Point     types.RiskPoint // zero when Err is set
	Err       error
}

// SchedulerConfig holds the scheduler dependencies.
type SchedulerConfig struct {
	Interval  time.Duration
	Observers []TickObserver
	Clock     types.Clock
	Logger    *slog.Logger
}

// Scheduler drives Engine.Tick at a fixed interval. It is the sole writer of
// engine state; one Scheduler per Engine.
type Scheduler struct {
	engine    Ticker
	interval  time.Duration
	observers []TickObserver
	clock     types.Clock
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler for the given engine.
func NewScheduler(engine Ticker, cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		engine:    engine,
		interval:  cfg.Interval,
		observers: cfg.Observers,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Interval returns the tick cadence.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run ticks once immediately and then every interval until ctx is done.
// Failed ticks are logged and skipped; the loop keeps going. Run returns nil
// on cancellation so it can sit in an errgroup next to the HTTP server.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single tick and notifies the observers.
func (s *Scheduler) RunOnce(ctx context.Context) TickResult {
	id := uuid.New().String()
	ctx = types.WithTickID(ctx, id)

	start := s.clock.Now()
	point, err := s.engine.Tick(ctx)
	result := TickResult{
		ID:        id,
		StartedAt: start,
		Duration:  s.clock.Now().Sub(start),
		Point:     point,
		Err:       err,
	}

	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "tick completed",
			"tick_id", id,
			"probability", point.Probability,
			"class", string(point.Class),
		)
	case errors.Is(err, context.Canceled):
		s.logger.DebugContext(ctx, "tick canceled", "tick_id", id)
	default:
		s.logger.WarnContext(ctx, "tick skipped",
			"tick_id", id,
			"error", err,
		)
	}

	for _, o := range s.observers {
		o.ObserveTick(ctx, result)
	}
	return result
}

// LivenessProbe reports the scheduler as unhealthy once no tick has
// succeeded for more than three intervals. It satisfies core.HealthProbe.
type LivenessProbe struct {
	engine   *Engine
	interval time.Duration
	started  time.Time
	clock    types.Clock
}

// NewLivenessProbe creates a probe for the engine ticked every interval.
func NewLivenessProbe(engine *Engine, interval time.Duration, clock types.Clock) *LivenessProbe {
	if clock == nil {
		clock = types.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &LivenessProbe{engine: engine, interval: interval, started: clock.Now(), clock: clock}
}

// Name identifies the probe in the health response.
func (p *LivenessProbe) Name() string { return "scheduler" }

// Check returns an error when the last successful tick is stale.
func (p *LivenessProbe) Check(ctx context.Context) error {
	limit := 3 * p.interval
	last := p.engine.LastTick()
	if last.IsZero() {
		last = p.started
	}
	if age := p.clock.Now().Sub(last); age > limit {
		return fmt.Errorf("no successful tick for %s (limit %s)", age.Truncate(time.Second), limit)
	}
	return nil
}
