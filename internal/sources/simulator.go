// Package sources provides the SampleSource and ForecastSupplier
// implementations the engine can be wired with: a random simulator for
// development, an MQTT sensor feed and an HTTP forecast provider.
package sources

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"stazione/internal/types"
)

// Simulated reading ranges.
const (
	simMinTemperature = 18.0
	simMaxTemperature = 28.0
	simMinHumidity    = 50.0
	simMaxHumidity    = 80.0
	simMinPressure    = 1005.0
	simMaxPressure    = 1020.0
	simMinRain        = 0.0
	simMaxRain        = 5.0

	simMinForecast = 20
	simMaxForecast = 80
)

// NewRand returns a generator seeded from the wall clock.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x57a210e))
}

// Simulator produces plausible random readings, one decimal each, stamped
// with the clock's current time.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock types.Clock
}

// NewSimulator creates a Simulator. A nil rng or clock uses the defaults.
func NewSimulator(rng *rand.Rand, clock types.Clock) *Simulator {
	if rng == nil {
		rng = NewRand()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Simulator{rng: rng, clock: clock}
}

// NextSample never fails.
func (s *Simulator) NextSample(ctx context.Context) (types.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.Sample{
		Timestamp:   s.clock.Now(),
		Temperature: s.uniform(simMinTemperature, simMaxTemperature),
		Humidity:    s.uniform(simMinHumidity, simMaxHumidity),
		Pressure:    s.uniform(simMinPressure, simMaxPressure),
		Rainfall:    s.uniform(simMinRain, simMaxRain),
	}, nil
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return math.Round((lo+s.rng.Float64()*(hi-lo))*10) / 10
}

// SimulatedForecast stands in for an external forecast provider.
type SimulatedForecast struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedForecast creates a SimulatedForecast. A nil rng uses NewRand.
func NewSimulatedForecast(rng *rand.Rand) *SimulatedForecast {
	if rng == nil {
		rng = NewRand()
	}
	return &SimulatedForecast{rng: rng}
}

// ForecastProbability returns a percentage in [20,80].
func (f *SimulatedForecast) ForecastProbability(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return simMinForecast + f.rng.IntN(simMaxForecast-simMinForecast+1), nil
}
