package risk

import (
	"fmt"

	"stazione/internal/types"
)

// Comfort band and thresholds shared by both classifiers.
const (
	MinNormalTemperature = 19.0
	MaxNormalTemperature = 26.0
	HumidityThreshold    = 75.0

	// DayRainThreshold applies to the rainfall summed over the whole window.
	DayRainThreshold = 10.0
	// InstantRainThreshold applies to the rainfall summed over the last
	// DefaultInstantWindow samples.
	InstantRainThreshold = 3.0

	// DefaultInstantWindow is how many of the newest samples the instant
	// classifier looks at.
	DefaultInstantWindow = 4
)

// Day classifier rationales, one per level.
const (
	RationaleLow    = "Temperatures within normal range, low humidity and little rain."
	RationaleMedium = "Slightly critical conditions: one or two variables beyond their threshold."
	RationaleHigh   = "Critical conditions: several variables beyond their threshold, high risk."

	RationaleInsufficientData = "Insufficient data for a reliable instant assessment."
)

// Classify scores the window aggregates: one point each for a mean
// temperature outside [19,26], mean humidity above 75 and total rain above
// 10 mm. Zero points is LOW, one or two MEDIUM, three HIGH.
func Classify(stats types.AggregateStats) types.RiskAssessment {
	score := 0
	if temperatureOutOfRange(stats.MeanTemperature) {
		score++
	}
	if stats.MeanHumidity > HumidityThreshold {
		score++
	}
	if stats.TotalRainfall > DayRainThreshold {
		score++
	}

	switch {
	case score == 0:
		return types.RiskAssessment{Level: types.RiskLow, Rationale: RationaleLow}
	case score <= 2:
		return types.RiskAssessment{Level: types.RiskMedium, Rationale: RationaleMedium}
	default:
		return types.RiskAssessment{Level: types.RiskHigh, Rationale: RationaleHigh}
	}
}

// ClassifyInstant looks only at the newest k samples (DefaultInstantWindow
// when k <= 0) with a stricter rain threshold. Fewer than two samples give
// LOW with an insufficient-data rationale.
func ClassifyInstant(samples []types.Sample, k int) types.RiskAssessment {
	if len(samples) < 2 {
		return types.RiskAssessment{Level: types.RiskLow, Rationale: RationaleInsufficientData}
	}
	if k <= 0 {
		k = DefaultInstantWindow
	}
	if k > len(samples) {
		k = len(samples)
	}
	last := samples[len(samples)-k:]

	meanTemp := meanOf(last, temperature)
	meanHum := meanOf(last, humidity)
	rain := sumOf(last, rainfall)

	score := 0
	if temperatureOutOfRange(meanTemp) {
		score++
	}
	if meanHum > HumidityThreshold {
		score++
	}
	if rain > InstantRainThreshold {
		score++
	}

	level := types.RiskLow
	switch {
	case score == 1:
		level = types.RiskMedium
	case score >= 2:
		level = types.RiskHigh
	}

	return types.RiskAssessment{
		Level: level,
		Rationale: fmt.Sprintf(
			"Instant risk is assessed as %s from the last %d readings. "+
				"Over this interval the mean temperature was %.1f °C, "+
				"mean humidity %.1f %% and accumulated rainfall %.1f mm. "+
				"This reflects recent local conditions and can change quickly.",
			level, len(last), meanTemp, meanHum, rain,
		),
	}
}

func temperatureOutOfRange(t float64) bool {
	return t < MinNormalTemperature || t > MaxNormalTemperature
}
