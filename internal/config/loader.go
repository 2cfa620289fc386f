package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return "[" + string(e.Type) + "] " + e.Message + ": " + e.Err.Error()
	}
	return "[" + string(e.Type) + "] " + e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration.
//
// The sequence is:
//  1. Set the process timezone to UTC.
//  2. Load dotenv files (default ".env"); a missing default file is not an
//     error, existing environment variables are never overridden.
//  3. Populate Config from envconfig tags.
//  4. Populate Config.Build from linker-injected variables.
//  5. Validate with go-playground/validator.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	time.Local = time.UTC

	if err := godotenv.Load(dotenvFiles...); err != nil {
		if len(dotenvFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{
				Type:    ErrDotenv,
				Message: "failed to load dotenv file",
				Err:     err,
			}
		}
	}

	// The empty prefix makes envconfig fall back to the bare tag names
	// (envconfig:"PORT" reads PORT).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}
