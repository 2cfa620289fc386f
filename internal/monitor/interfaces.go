// Package monitor owns the station's live state: the bounded sample window,
// the bounded hazard history and the estimator's carried probability. The
// Engine is the only holder of that state; the Scheduler is its only writer.
package monitor

import (
	"context"
	"errors"

	"stazione/internal/types"
)

// Window capacities.
const (
	// SampleCapacity bounds the sample window.
	SampleCapacity = 100
	// RiskPointCapacity bounds the hazard history (one hour at a 10s tick).
	RiskPointCapacity = 360
)

// ErrOutOfOrderSample is returned by Tick when the source hands back a
// reading older than the newest one already recorded. The tick is skipped.
var ErrOutOfOrderSample = errors.New("monitor: sample timestamp precedes window tail")

// ErrForecastTimeout is returned when the forecast supplier does not answer
// within the configured timeout.
var ErrForecastTimeout = errors.New("monitor: forecast supplier timed out")

// SampleSource yields one reading per scheduler tick. It may be a simulator
// or a real sensor feed.
type SampleSource interface {
	NextSample(ctx context.Context) (types.Sample, error)
}

// ForecastSupplier returns the external chance of rain as a percentage in
// [0,100]. Failures are recoverable; the engine substitutes a neutral value.
type ForecastSupplier interface {
	ForecastProbability(ctx context.Context) (int, error)
}

// FallbackRecorder is told when the engine had to substitute the neutral
// forecast value.
type FallbackRecorder interface {
	RecordForecastFallback(ctx context.Context, reason string)
}

// TickObserver is notified after every scheduler tick, outside the engine
// lock. Observers run on the scheduler goroutine and must bound their own
// latency.
type TickObserver interface {
	ObserveTick(ctx context.Context, result TickResult)
}
