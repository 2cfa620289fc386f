// Package config defines the process configuration for the station service.
// Configuration is loaded once at startup from the environment (optionally
// seeded from a .env file) and is immutable thereafter. A missing or invalid
// value fails startup.
package config

import "time"

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"stazione"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Station       StationConfig
	Sensor        SensorConfig
	Forecast      ForecastConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s" validate:"min=1s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"min=1s"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600" validate:"min=0"` // per client IP, 0 disables
}

// StationConfig tunes the scheduler and the warm start.
type StationConfig struct {
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL" default:"10s" validate:"min=100ms"`
	BackfillSamples int           `envconfig:"BACKFILL_SAMPLES" default:"50" validate:"min=0,max=100"`
	BackfillSpacing time.Duration `envconfig:"BACKFILL_SPACING" default:"10m" validate:"min=1s"`
}

// Sample source kinds.
const (
	SourceSimulator = "simulator"
	SourceMQTT      = "mqtt"
)

// SensorConfig selects where readings come from.
type SensorConfig struct {
	Source       string        `envconfig:"SAMPLE_SOURCE" default:"simulator" validate:"oneof=simulator mqtt"`
	MQTTBroker   string        `envconfig:"MQTT_BROKER" validate:"required_if=Source mqtt"` // e.g., tcp://broker:1883
	MQTTTopic    string        `envconfig:"MQTT_TOPIC" default:"stazione/readings"`
	MQTTClientID string        `envconfig:"MQTT_CLIENT_ID" default:"stazione-engine"`
	MQTTUsername string        `envconfig:"MQTT_USERNAME"`
	MQTTPassword SecretString  `envconfig:"MQTT_PASSWORD"`
	MQTTQoS      int           `envconfig:"MQTT_QOS" default:"1" validate:"min=0,max=2"`
	MQTTTimeout  time.Duration `envconfig:"MQTT_CONNECT_TIMEOUT" default:"10s"`
}

// Forecast supplier kinds.
const (
	ForecastSimulated = "simulated"
	ForecastHTTP      = "http"
)

// ForecastConfig selects and tunes the external forecast supplier.
type ForecastConfig struct {
	Source    string        `envconfig:"FORECAST_SOURCE" default:"simulated" validate:"oneof=simulated http"`
	URL       string        `envconfig:"FORECAST_URL" validate:"required_if=Source http,omitempty,url"`
	Timeout   time.Duration `envconfig:"FORECAST_TIMEOUT" default:"2s" validate:"min=10ms"`
	Fallback  int           `envconfig:"FORECAST_FALLBACK" default:"50" validate:"min=0,max=100"`
	UserAgent string        `envconfig:"FORECAST_USER_AGENT" default:"Stazione/1.0"`
}

// AWSConfig holds regional configuration and resource identifiers.
type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"eu-south-1"`
	AlertQueueURL string `envconfig:"ALERT_QUEUE_URL" validate:"omitempty,url"` // empty disables level-change alerts

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled       bool          `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace      string        `envconfig:"METRIC_NAMESPACE" default:"Stazione"`
	MetricsFlushInterval time.Duration `envconfig:"METRICS_FLUSH_INTERVAL" default:"30s" validate:"min=1s"`
}

// NeedsAWS reports whether any AWS client must be built.
func (c *Config) NeedsAWS() bool {
	return c.Observability.MetricsEnabled || c.AWS.AlertQueueURL != ""
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrDotenv indicates an explicitly requested .env file could not be read.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
)
