package risk

import (
	"fmt"

	"stazione/internal/types"
)

// reportLowTemperature is the mean below which the report calls the day cold.
// It sits one degree above MinNormalTemperature.
const reportLowTemperature = 20.0

// Report builds the narrative summary of the window. latest may be nil when
// no sample has been recorded yet.
func Report(stats types.AggregateStats, latest *types.Sample) types.ConditionsReport {
	obs := make([]string, 0, 3)

	switch {
	case stats.MeanTemperature > MaxNormalTemperature:
		obs = append(obs, "The mean temperature of the day is high.")
	case stats.MeanTemperature < reportLowTemperature:
		obs = append(obs, "The mean temperature is low.")
	default:
		obs = append(obs, "The mean temperature is within the normal range.")
	}

	if stats.MeanHumidity > HumidityThreshold {
		obs = append(obs, "High relative humidity increases surface soil saturation.")
	} else {
		obs = append(obs, "Mean humidity shows no particular concern.")
	}

	if stats.TotalRainfall > DayRainThreshold {
		obs = append(obs, fmt.Sprintf("Accumulated rainfall (%.1f mm) increases the risk.", stats.TotalRainfall))
	} else {
		obs = append(obs, fmt.Sprintf("Rainfall is limited (%.1f mm).", stats.TotalRainfall))
	}

	return types.ConditionsReport{
		Averages:     stats,
		Latest:       latest,
		Observations: obs,
		RiskLevel:    Classify(stats).Level,
	}
}
