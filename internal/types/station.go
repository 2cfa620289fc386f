package types

import "time"

// Sample is one station reading. It is never modified after creation.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %
	Pressure    float64   `json:"pressure"`    // hPa
	Rainfall    float64   `json:"rain"`        // mm
}

// AggregateStats summarizes the whole sample window. Rainfall is summed
// because it is treated as cumulative exposure, the other fields are means.
type AggregateStats struct {
	MeanTemperature float64 `json:"temperature"`
	MeanHumidity    float64 `json:"humidity"`
	MeanPressure    float64 `json:"pressure"`
	TotalRainfall   float64 `json:"rain"`
}

// TrendDirection is the short-term direction of one variable.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Arrow returns the glyph used by the dashboard for the direction.
func (d TrendDirection) Arrow() string {
	switch d {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	default:
		return "→"
	}
}

// Trend holds the direction of each tracked variable.
type Trend struct {
	Temperature TrendDirection `json:"temperature"`
	Humidity    TrendDirection `json:"humidity"`
	Pressure    TrendDirection `json:"pressure"`
}

// FlatTrend is returned when there are not enough samples to compare.
var FlatTrend = Trend{
	Temperature: TrendFlat,
	Humidity:    TrendFlat,
	Pressure:    TrendFlat,
}

// RiskLevel is the three-level risk label.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Probability boundaries for RiskLevelForProbability, in percent.
const (
	MediumRiskThreshold = 33.0
	HighRiskThreshold   = 66.0
)

// RiskLevelForProbability partitions a hazard percentage into a RiskLevel:
// LOW below 33, MEDIUM in [33,66), HIGH from 66.
func RiskLevelForProbability(pct float64) RiskLevel {
	switch {
	case pct < MediumRiskThreshold:
		return RiskLow
	case pct < HighRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RiskAssessment is a RiskLevel with the text shown to operators.
type RiskAssessment struct {
	Level     RiskLevel `json:"level"`
	Rationale string    `json:"rationale"`
}

// RiskPoint is one output of the hazard estimator.
type RiskPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Probability float64   `json:"probability"` // percent, 0..100
	Class       RiskLevel `json:"class"`
}

// RainOutlook is the day-level rain probability blended from the external
// forecast and local conditions.
type RainOutlook struct {
	Probability         int    `json:"probability"`
	ForecastProbability int    `json:"forecast_probability"`
	ForecastFallback    bool   `json:"forecast_fallback,omitempty"`
	Rationale           string `json:"rationale"`
}

// Overview is the home page view. Every field derives from the same sample
// window.
type Overview struct {
	Averages    AggregateStats
	Risk        RiskAssessment
	Trend       Trend
	RainOutlook RainOutlook
}

// ConditionsReport is the narrative summary of the day.
type ConditionsReport struct {
	Averages     AggregateStats `json:"averages"`
	Latest       *Sample        `json:"latest,omitempty"`
	Observations []string       `json:"observations"`
	RiskLevel    RiskLevel      `json:"risk_level"`
}
