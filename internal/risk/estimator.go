package risk

import (
	"math"

	"stazione/internal/types"
)

// Hazard estimator weights and normalization constants.
const (
	rainWeight     = 0.5
	humidityWeight = 0.3
	pressureWeight = 0.2

	rainFullScale     = 100.0  // mm for a saturated rain signal
	humidityBaseline  = 60.0   // % below which humidity adds nothing
	humidityFullScale = 40.0   // % above the baseline for a saturated signal
	pressureBaseline  = 1015.0 // hPa above which pressure adds nothing
	pressureFullScale = 20.0   // hPa below the baseline for a saturated signal

	// PreviousWeight is the share of the previous estimate carried into the
	// next one. The new reading contributes the remaining 0.3.
	PreviousWeight = 0.7
)

// Signals are the three normalized partial signals of a reading. None is
// negative. Rain saturates at 1; humidity and pressure keep growing past
// their full scale, so a deep low can push the instant estimate above 1.
type Signals struct {
	Rain     float64
	Humidity float64
	Pressure float64
}

// SignalsFor normalizes a reading into its partial signals.
func SignalsFor(s types.Sample) Signals {
	return Signals{
		Rain:     unit(s.Rainfall / rainFullScale),
		Humidity: math.Max((s.Humidity-humidityBaseline)/humidityFullScale, 0),
		Pressure: math.Max((pressureBaseline-s.Pressure)/pressureFullScale, 0),
	}
}

// Instant is the weighted sum of the signals. It is not clamped; Estimate
// clamps the blended result.
func (sig Signals) Instant() float64 {
	return rainWeight*sig.Rain + humidityWeight*sig.Humidity + pressureWeight*sig.Pressure
}

// Estimate computes the hazard for sample. previous is the prior estimate
// as a fraction in [0,1], or nil for the first point; when present the
// result is 0.7*previous + 0.3*instant. Only the immediately preceding
// output is needed.
func Estimate(sample types.Sample, previous *float64) types.RiskPoint {
	p := SignalsFor(sample).Instant()
	if previous != nil {
		p = PreviousWeight*(*previous) + (1-PreviousWeight)*p
	}

	pct := unit(p) * 100
	return types.RiskPoint{
		Timestamp:   sample.Timestamp,
		Probability: pct,
		Class:       types.RiskLevelForProbability(pct),
	}
}

// Fraction converts a RiskPoint probability back into the [0,1] state that
// feeds the next Estimate call.
func Fraction(p types.RiskPoint) float64 {
	return p.Probability / 100
}

// unit clamps v to [0,1]. NaN maps to 0.
func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}
