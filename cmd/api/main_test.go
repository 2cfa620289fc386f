package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"stazione/internal/config"
	"stazione/internal/telemetry"
)

// setTestEnv isolates the loader from the host environment and selects the
// offline collaborators.
func setTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MQTT_BROKER", "FORECAST_URL", "ALERT_QUEUE_URL", "AWS_ENDPOINT_URL",
		"CORS_ALLOWED_ORIGINS", "REQUEST_TIMEOUT", "SHUTDOWN_TIMEOUT", "TICK_INTERVAL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", "0")
	t.Setenv("SAMPLE_SOURCE", config.SourceSimulator)
	t.Setenv("FORECAST_SOURCE", config.ForecastSimulated)
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("BACKFILL_SAMPLES", "5")
	t.Setenv("BACKFILL_SPACING", "1m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
}

func buildTestApp(t *testing.T) *app {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := buildApp(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func get(t *testing.T, a *app, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBuildApp_OfflineStack(t *testing.T) {
	a := buildTestApp(t)

	if _, ok := a.sink.(telemetry.NopRecorder); !ok {
		t.Errorf("metrics disabled should use NopRecorder, got %T", a.sink)
	}
	if got := len(a.engine.Samples()); got != 5 {
		t.Errorf("backfilled samples: got %d, want 5", got)
	}
	if got := len(a.engine.RiskHistory()); got != 0 {
		t.Errorf("backfill must not produce risk points, got %d", got)
	}
}

func TestBuildApp_ServesStationRoutes(t *testing.T) {
	a := buildTestApp(t)

	rec := get(t, a, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: got %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, a, "/v1/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/latest: got %d", rec.Code)
	}
	var latest map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &latest); err != nil {
		t.Fatalf("unmarshal latest: %v", err)
	}
	for _, key := range []string{"timestamp", "temperature", "humidity", "pressure", "rain"} {
		if _, ok := latest[key]; !ok {
			t.Errorf("latest sample missing %q: %v", key, latest)
		}
	}

	rec = get(t, a, "/v1/rain-outlook")
	var outlook struct {
		Probability         int  `json:"probability"`
		ForecastProbability int  `json:"forecast_probability"`
		ForecastFallback    bool `json:"forecast_fallback"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &outlook); err != nil {
		t.Fatalf("unmarshal outlook: %v", err)
	}
	if outlook.ForecastFallback {
		t.Error("simulated forecast should not fall back")
	}
	if outlook.ForecastProbability < 20 || outlook.ForecastProbability > 80 {
		t.Errorf("forecast probability out of simulated range: %d", outlook.ForecastProbability)
	}
	if outlook.Probability < 0 || outlook.Probability > 100 {
		t.Errorf("probability out of range: %d", outlook.Probability)
	}
}

func TestBuildApp_HTTPForecast(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"probability": 63}`)
	}))
	t.Cleanup(upstream.Close)

	setTestEnv(t)
	t.Setenv("FORECAST_SOURCE", config.ForecastHTTP)
	t.Setenv("FORECAST_URL", upstream.URL+"/forecast")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	a, err := buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.close)

	rec := get(t, a, "/v1/rain-outlook")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/rain-outlook: got %d; body: %s", rec.Code, rec.Body.String())
	}
	var outlook struct {
		ForecastProbability int  `json:"forecast_probability"`
		ForecastFallback    bool `json:"forecast_fallback"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &outlook); err != nil {
		t.Fatalf("unmarshal outlook: %v", err)
	}
	if outlook.ForecastFallback {
		t.Error("reachable forecast should not fall back")
	}
	if outlook.ForecastProbability != 63 {
		t.Errorf("forecast probability: got %d, want 63", outlook.ForecastProbability)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := buildTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(a.engine.RiskHistory()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(a.engine.RiskHistory()) == 0 {
		t.Error("scheduler should tick once at start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(tt.level)
			if !logger.Enabled(ctx, tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(ctx, tt.want-1) {
				t.Errorf("level below %s should be disabled", tt.want)
			}
		})
	}
}
