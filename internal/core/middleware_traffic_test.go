package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stazione/internal/types"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingStore struct{}

func (failingStore) IncrementAndCheck(context.Context, string, int, time.Duration) (RateLimitResult, error) {
	return RateLimitResult{}, errors.New("store unavailable")
}

func TestMemoryRateLimitStore_FixedWindow(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	store := NewMemoryRateLimitStore(clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.IncrementAndCheck(ctx, "10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("request %d remaining: got %d", i, res.Remaining)
		}
	}

	res, _ := store.IncrementAndCheck(ctx, "10.0.0.1", 3, time.Minute)
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("4th request: %+v", res)
	}

	other, _ := store.IncrementAndCheck(ctx, "10.0.0.2", 3, time.Minute)
	if !other.Allowed {
		t.Error("keys must be counted independently")
	}

	clock.Advance(time.Minute)
	res, _ = store.IncrementAndCheck(ctx, "10.0.0.1", 3, time.Minute)
	if !res.Allowed || res.Remaining != 2 {
		t.Errorf("new window: %+v", res)
	}
}

func rateLimitedHandler(t *testing.T, limit int, store RateLimitStore) http.Handler {
	t.Helper()
	srv := newTestServer(t)
	srv.Config.Server.RateLimitPerMinute = limit
	srv.RateLimitStore = store
	return srv.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	handler := rateLimitedHandler(t, 2, NewMemoryRateLimitStore(nil))

	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/risk", nil)
		req.RemoteAddr = "192.0.2.10:51000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining: got %q", got)
	}
	if got := decodeError(t, last).Code; got != string(types.ErrCodeRateLimit) {
		t.Errorf("code: got %q", got)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := rateLimitedHandler(t, 1, failingStore{})
	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := rateLimitedHandler(t, 0, NewMemoryRateLimitStore(nil))
	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
	}
}

func TestRateLimit_ForwardedForDoesNotSplitBudget(t *testing.T) {
	handler := rateLimitedHandler(t, 2, NewMemoryRateLimitStore(nil))

	var last *httptest.ResponseRecorder
	for _, xff := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/risk", nil)
		req.RemoteAddr = "192.0.2.20:51000"
		req.Header.Set("X-Forwarded-For", xff)
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", last.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", "", "192.0.2.1"},
		{"forwarded header ignored", "10.0.0.1:1234", "203.0.113.5, 10.0.0.1", "10.0.0.1"},
		{"no port", "192.0.2.9", "", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
