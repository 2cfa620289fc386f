package core

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stazione/internal/config"
)

type metricsCall struct {
	method   string
	endpoint string
	status   string
	duration time.Duration
}

type mockMetricsCollector struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (m *mockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{method, endpoint, status, duration})
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "stazione",
		Server: config.ServerConfig{
			Port:               "8080",
			CorsAllowedOrigins: []string{"*"},
			RequestTimeout:     5 * time.Second,
		},
		Build: config.BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-04-01T00:00:00Z"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServer_Success(t *testing.T) {
	srv := newTestServer(t)
	if srv.Router() == nil {
		t.Fatal("router should be initialized")
	}
	if srv.Handler() == nil {
		t.Fatal("handler should be initialized")
	}
	if srv.RateLimitStore != nil {
		t.Error("rate limit store should be nil when the limit is disabled")
	}
}

func TestNewServer_RateLimitStore(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitPerMinute = 10
	srv, err := NewServer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if srv.RateLimitStore == nil {
		t.Error("rate limit store should be set when a limit is configured")
	}
}

func TestNewServer_NilConfig(t *testing.T) {
	if _, err := NewServer(nil, discardLogger()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewServer_NilLogger(t *testing.T) {
	if _, err := NewServer(testConfig(), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
