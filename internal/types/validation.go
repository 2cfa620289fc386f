package types

import "math"

// FieldRange is the accepted physical range of one reading field.
type FieldRange struct {
	Unit string
	Min  float64
	Max  float64
}

// ReadingRanges holds the bounds a sensor reading must respect before it is
// allowed into the sample window. Values outside them indicate a faulty
// sensor or a corrupted payload.
var ReadingRanges = map[string]FieldRange{
	FieldTemperature: {Unit: "celsius", Min: -60, Max: 60},
	FieldHumidity:    {Unit: "percent", Min: 0, Max: 100},
	FieldPressure:    {Unit: "hPa", Min: 800, Max: 1100},
	FieldRain:        {Unit: "mm", Min: 0, Max: 500},
}

// ValidateSample checks every field of s against ReadingRanges. The first
// violation is returned as a validation AppError carrying the field name.
func ValidateSample(s Sample) error {
	if s.Timestamp.IsZero() {
		return NewAppErrorWithDetails(ErrCodeValidationReading, "reading has no timestamp", nil,
			map[string]any{"field": "timestamp"})
	}
	fields := []struct {
		name  string
		value float64
	}{
		{FieldTemperature, s.Temperature},
		{FieldHumidity, s.Humidity},
		{FieldPressure, s.Pressure},
		{FieldRain, s.Rainfall},
	}
	for _, f := range fields {
		r := ReadingRanges[f.name]
		if math.IsNaN(f.value) || f.value < r.Min || f.value > r.Max {
			return NewAppErrorWithDetails(ErrCodeValidationReading, "reading outside valid range", nil,
				map[string]any{"field": f.name, "value": f.value, "min": r.Min, "max": r.Max})
		}
	}
	return nil
}
