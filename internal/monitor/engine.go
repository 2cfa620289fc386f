package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stazione/internal/ring"
	"stazione/internal/risk"
	"stazione/internal/types"
)

// Defaults applied by NewEngine for zero-valued config fields.
const (
	DefaultForecastTimeout = 2 * time.Second
	forecastFlightKey      = "forecast"
)

// EngineConfig holds the dependencies and tuning of an Engine.
type EngineConfig struct {
	Source   SampleSource
	Forecast ForecastSupplier

	// ForecastTimeout bounds each forecast lookup. Zero means
	// DefaultForecastTimeout.
	ForecastTimeout time.Duration
	// ForecastFallback replaces the forecast when it is unavailable. Nil
	// means risk.NeutralForecast.
	ForecastFallback *int
	Fallbacks        FallbackRecorder

	TrendWindow   int // zero means risk.DefaultTrendWindow
	InstantWindow int // zero means risk.DefaultInstantWindow

	Clock  types.Clock
	Logger *slog.Logger
}

// Engine is the risk assessment engine. Tick is its only mutator; every
// other method returns values computed from a consistent copy of the
// buffers taken under the read lock.
type Engine struct {
	mu       sync.RWMutex
	samples  *ring.Ring[types.Sample]
	history  *ring.Ring[types.RiskPoint]
	previous *float64 // estimator state, fraction in [0,1]
	lastTick time.Time

	source           SampleSource
	forecast         ForecastSupplier
	forecastTimeout  time.Duration
	forecastFallback int
	fallbacks        FallbackRecorder
	flight           singleflight.Group

	trendWindow   int
	instantWindow int

	clock  types.Clock
	logger *slog.Logger
}

// NewEngine creates an Engine with empty buffers.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("sample source must not be nil")
	}
	if cfg.Forecast == nil {
		return nil, fmt.Errorf("forecast supplier must not be nil")
	}

	e := &Engine{
		samples:          ring.New[types.Sample](SampleCapacity),
		history:          ring.New[types.RiskPoint](RiskPointCapacity),
		source:           cfg.Source,
		forecast:         cfg.Forecast,
		forecastTimeout:  cfg.ForecastTimeout,
		forecastFallback: risk.NeutralForecast,
		fallbacks:        cfg.Fallbacks,
		trendWindow:      cfg.TrendWindow,
		instantWindow:    cfg.InstantWindow,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
	}
	if e.forecastTimeout <= 0 {
		e.forecastTimeout = DefaultForecastTimeout
	}
	if cfg.ForecastFallback != nil {
		e.forecastFallback = *cfg.ForecastFallback
	}
	if e.trendWindow <= 0 {
		e.trendWindow = risk.DefaultTrendWindow
	}
	if e.instantWindow <= 0 {
		e.instantWindow = risk.DefaultInstantWindow
	}
	if e.clock == nil {
		e.clock = types.RealClock{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Tick acquires one reading, appends it to the sample window, runs the
// estimator against the carried state and appends the resulting RiskPoint.
// Both appends happen under one write lock so readers never observe one
// buffer advanced without the other.
//
// A source failure or an out-of-order reading leaves the engine untouched.
func (e *Engine) Tick(ctx context.Context) (types.RiskPoint, error) {
	sample, err := e.source.NextSample(ctx)
	if err != nil {
		return types.RiskPoint{}, fmt.Errorf("reading sample: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if tail, ok := e.samples.Last(); ok && sample.Timestamp.Before(tail.Timestamp) {
		return types.RiskPoint{}, fmt.Errorf("%w: got %s, tail %s", ErrOutOfOrderSample,
			sample.Timestamp.Format(time.RFC3339Nano), tail.Timestamp.Format(time.RFC3339Nano))
	}

	e.samples.Push(sample)
	point := risk.Estimate(sample, e.previous)
	e.history.Push(point)

	next := risk.Fraction(point)
	e.previous = &next
	e.lastTick = e.clock.Now()

	return point, nil
}

// Backfill seeds the sample window with n readings from the source, stamped
// spacing apart and ending at the current time. It is meant for a warm start
// before the scheduler runs; the hazard history is left empty. Readings the
// source fails to produce are skipped. It returns how many were stored.
func (e *Engine) Backfill(ctx context.Context, n int, spacing time.Duration) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	now := e.clock.Now()

	seeded := make([]types.Sample, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s, err := e.source.NextSample(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping backfill sample", "index", i, "error", err)
			continue
		}
		s.Timestamp = now.Add(-time.Duration(n-i) * spacing)
		seeded = append(seeded, s)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.samples.Len() > 0 {
		return 0, errors.New("monitor: backfill requires an empty sample window")
	}
	for _, s := range seeded {
		e.samples.Push(s)
	}
	return len(seeded), nil
}

// LatestSample returns the newest reading, if any.
func (e *Engine) LatestSample() (types.Sample, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.samples.Last()
}

// Samples returns a copy of the sample window, oldest first.
func (e *Engine) Samples() []types.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.samples.Snapshot()
}

// RiskHistory returns a copy of the hazard history, oldest first.
func (e *Engine) RiskHistory() []types.RiskPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Snapshot()
}

// LastTick returns when the last successful tick completed, or the zero time.
func (e *Engine) LastTick() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTick
}

// AggregateStats summarizes the current window.
func (e *Engine) AggregateStats() types.AggregateStats {
	return risk.ComputeAggregates(e.Samples())
}

// DayRisk classifies the window aggregates.
func (e *Engine) DayRisk() types.RiskAssessment {
	return risk.Classify(e.AggregateStats())
}

// InstantRisk classifies the newest few readings.
func (e *Engine) InstantRisk() types.RiskAssessment {
	e.mu.RLock()
	recent := e.samples.Tail(e.instantWindow)
	e.mu.RUnlock()
	return risk.ClassifyInstant(recent, e.instantWindow)
}

// Trend reports the short-term direction of each variable.
func (e *Engine) Trend() types.Trend {
	e.mu.RLock()
	recent := e.samples.Tail(2 * e.trendWindow)
	e.mu.RUnlock()
	return risk.ComputeTrend(recent, e.trendWindow)
}

// Report builds the narrative summary of the window.
func (e *Engine) Report() types.ConditionsReport {
	samples := e.Samples()
	stats := risk.ComputeAggregates(samples)
	if len(samples) == 0 {
		return risk.Report(stats, nil)
	}
	latest := samples[len(samples)-1]
	return risk.Report(stats, &latest)
}

// Overview derives the aggregates, day risk, trend and rain outlook from a
// single copy of the window, so a tick landing mid-request cannot mix two
// generations of samples.
func (e *Engine) Overview(ctx context.Context) types.Overview {
	samples := e.Samples()
	stats := risk.ComputeAggregates(samples)

	recent := samples
	if n := 2 * e.trendWindow; len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	return types.Overview{
		Averages:    stats,
		Risk:        risk.Classify(stats),
		Trend:       risk.ComputeTrend(recent, e.trendWindow),
		RainOutlook: e.rainOutlook(ctx, stats),
	}
}

// RainOutlook blends the external forecast with the window aggregates. It
// never fails: an unavailable or slow supplier is replaced by the fallback
// value and the outlook is flagged accordingly.
func (e *Engine) RainOutlook(ctx context.Context) types.RainOutlook {
	return e.rainOutlook(ctx, e.AggregateStats())
}

func (e *Engine) rainOutlook(ctx context.Context, stats types.AggregateStats) types.RainOutlook {
	pct, err := e.forecastProbability(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "forecast unavailable, using fallback",
			"fallback", e.forecastFallback,
			"error", err,
		)
		if e.fallbacks != nil {
			e.fallbacks.RecordForecastFallback(ctx, fallbackReason(err))
		}
		out := risk.RainOutlook(stats, e.forecastFallback)
		out.ForecastFallback = true
		return out
	}

	return risk.RainOutlook(stats, pct)
}

// forecastProbability queries the supplier, sharing one in-flight lookup
// between concurrent callers and giving up after forecastTimeout.
func (e *Engine) forecastProbability(ctx context.Context) (int, error) {
	ch := e.flight.DoChan(forecastFlightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.forecastTimeout)
		defer cancel()
		return e.forecast.ForecastProbability(fctx)
	})

	timer := time.NewTimer(e.forecastTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		pct, _ := res.Val.(int)
		if pct < 0 || pct > 100 {
			return 0, fmt.Errorf("forecast probability %d out of range", pct)
		}
		return pct, nil
	case <-timer.C:
		return 0, ErrForecastTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrForecastTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
