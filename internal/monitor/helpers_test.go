package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"stazione/internal/types"
)

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stepSource hands out copies of template stamped one second apart.
type stepSource struct {
	mu       sync.Mutex
	template types.Sample
	next     time.Time
	err      error
	calls    int
}

func newStepSource(template types.Sample) *stepSource {
	return &stepSource{template: template, next: epoch}
}

func (s *stepSource) NextSample(ctx context.Context) (types.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return types.Sample{}, s.err
	}
	out := s.template
	out.Timestamp = s.next
	s.next = s.next.Add(time.Second)
	return out, nil
}

func (s *stepSource) setTemplate(sample types.Sample) {
	s.mu.Lock()
	s.template = sample
	s.mu.Unlock()
}

func (s *stepSource) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// mockForecast follows the fn-field mock style.
type mockForecast struct {
	ForecastProbabilityFn func(ctx context.Context) (int, error)
}

func (m *mockForecast) ForecastProbability(ctx context.Context) (int, error) {
	if m.ForecastProbabilityFn != nil {
		return m.ForecastProbabilityFn(ctx)
	}
	return 0, errors.New("not configured")
}

func fixedForecast(pct int) *mockForecast {
	return &mockForecast{ForecastProbabilityFn: func(context.Context) (int, error) { return pct, nil }}
}

type fallbackSpy struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fallbackSpy) RecordForecastFallback(_ context.Context, reason string) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
}

type observerSpy struct {
	mu      sync.Mutex
	results []TickResult
}

func (o *observerSpy) ObserveTick(_ context.Context, r TickResult) {
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

func (o *observerSpy) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.results)
}

// calm contributes nothing to the instant estimate.
var calm = types.Sample{Temperature: 22, Humidity: 60, Pressure: 1015, Rainfall: 0}

// wet yields an instant estimate of 0.25.
var wet = types.Sample{Temperature: 22, Humidity: 60, Pressure: 1015, Rainfall: 50}
