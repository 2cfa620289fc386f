// Package risk holds the pure computations behind the station's risk views:
// window aggregates, short-term trends, threshold classifiers, the smoothed
// landslide hazard estimator and the day rain outlook.
//
// Every function here works on plain values and copies. Locking and sample
// acquisition belong to the monitor package.
package risk

import "stazione/internal/types"

// Trend tuning.
const (
	// DefaultTrendWindow is the number of samples in each half of the trend
	// comparison.
	DefaultTrendWindow = 6

	// TrendDeadband is the absolute difference, in the variable's own unit,
	// below which a change is reported as flat.
	TrendDeadband = 0.3
)

// ComputeAggregates returns the means of temperature, humidity and pressure
// and the total rainfall over samples. An empty slice yields zero stats.
func ComputeAggregates(samples []types.Sample) types.AggregateStats {
	if len(samples) == 0 {
		return types.AggregateStats{}
	}

	var temp, hum, press, rain float64
	for _, s := range samples {
		temp += s.Temperature
		hum += s.Humidity
		press += s.Pressure
		rain += s.Rainfall
	}

	n := float64(len(samples))
	return types.AggregateStats{
		MeanTemperature: temp / n,
		MeanHumidity:    hum / n,
		MeanPressure:    press / n,
		TotalRainfall:   rain,
	}
}

// ComputeTrend compares the mean of the newest w samples against the mean of
// the w samples before them. With fewer than 2w samples every variable is
// flat. A non-positive w falls back to DefaultTrendWindow.
func ComputeTrend(samples []types.Sample, w int) types.Trend {
	if w <= 0 {
		w = DefaultTrendWindow
	}
	if len(samples) < 2*w {
		return types.FlatTrend
	}

	recent := samples[len(samples)-w:]
	older := samples[len(samples)-2*w : len(samples)-w]

	return types.Trend{
		Temperature: direction(meanOf(recent, temperature), meanOf(older, temperature)),
		Humidity:    direction(meanOf(recent, humidity), meanOf(older, humidity)),
		Pressure:    direction(meanOf(recent, pressure), meanOf(older, pressure)),
	}
}

func direction(recent, older float64) types.TrendDirection {
	diff := recent - older
	switch {
	case diff > TrendDeadband:
		return types.TrendUp
	case diff < -TrendDeadband:
		return types.TrendDown
	default:
		return types.TrendFlat
	}
}

type field func(types.Sample) float64

func temperature(s types.Sample) float64 { return s.Temperature }
func humidity(s types.Sample) float64    { return s.Humidity }
func pressure(s types.Sample) float64    { return s.Pressure }
func rainfall(s types.Sample) float64    { return s.Rainfall }

func sumOf(samples []types.Sample, f field) float64 {
	var total float64
	for _, s := range samples {
		total += f(s)
	}
	return total
}

func meanOf(samples []types.Sample, f field) float64 {
	if len(samples) == 0 {
		return 0
	}
	return sumOf(samples, f) / float64(len(samples))
}
