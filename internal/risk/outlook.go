package risk

import (
	"fmt"

	"stazione/internal/types"
)

// Local adjustments added to the external forecast, in percentage points.
const (
	outlookHumidityBonus = 10 // mean humidity above HumidityThreshold
	outlookPressureBonus = 10 // mean pressure below outlookLowPressure
	outlookRainBonus     = 15 // total rain above outlookRainThreshold

	outlookLowPressure   = 1010.0
	outlookRainThreshold = 2.0

	// NeutralForecast is used in place of the external forecast when it
	// cannot be obtained.
	NeutralForecast = 50
)

// RainOutlook blends the external forecast percentage with the station's own
// aggregates. The result is capped at 100.
func RainOutlook(stats types.AggregateStats, forecastPct int) types.RainOutlook {
	forecastPct = clampPct(forecastPct)

	local := 0
	if stats.MeanHumidity > HumidityThreshold {
		local += outlookHumidityBonus
	}
	if stats.MeanPressure < outlookLowPressure {
		local += outlookPressureBonus
	}
	if stats.TotalRainfall > outlookRainThreshold {
		local += outlookRainBonus
	}

	final := clampPct(forecastPct + local)
	return types.RainOutlook{
		Probability:         final,
		ForecastProbability: forecastPct,
		Rationale: fmt.Sprintf(
			"The estimated chance of rain for the day is %d%%. "+
				"It combines the external weather forecast (%d%%) "+
				"with the local conditions measured by the station.",
			final, forecastPct,
		),
	}
}

func clampPct(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
