package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency       = "APILatency"
	MetricAPIRequestCount  = "APIRequestCount"
	MetricRiskProbability  = "RiskProbability"
	MetricTickSuccess      = "TickSuccess"
	MetricTickFailure      = "TickFailure"
	MetricForecastFallback = "ForecastFallback"
	MetricLevelChange      = "RiskLevelChange"

	// Dimension Keys
	DimEndpoint  = "Endpoint"
	DimMethod    = "Method"
	DimStatus    = "Status"
	DimRiskLevel = "RiskLevel"
	DimReason    = "Reason"

	// Metric Namespace
	MetricNamespace = "Stazione"
)

// Reading field names. The MQTT payload and the chart series use these keys.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldPressure    = "pressure"
	FieldRain        = "rain"
)
