package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/ratelimit"
	"github.com/gestly/gestly/pkg/logger"
)

func TestCORS(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://app.gestly.io", ".gestly.dev"})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.gestly.io", true},
		{"https://preview.gestly.dev", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		got := rr.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allowed {
			t.Errorf("origin %s: allowed = %v, want %v", tt.origin, got, tt.allowed)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.gestly.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	var inner string
	handler := Logging(logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	if inner == "" || rr.Header().Get(RequestIDHeader) != inner {
		t.Fatalf("request id mismatch: ctx=%q header=%q", inner, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if inner != "req-123" {
		t.Fatalf("incoming request id not kept: %q", inner)
	}
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	f.keys = append(f.keys, key)
	return f.decision, f.err
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	denied := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, Limit: 60, RetryAfter: 1500 * time.Millisecond}}
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithAPIKey(context.Background(), apikey.APIKey{ID: "key-9"}))
	rr := httptest.NewRecorder()
	RateLimit(denied, logger.NewDiscard())(ok).ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if denied.keys[0] != "key:key-9" {
		t.Fatalf("limiter key = %q", denied.keys[0])
	}

	allowed := &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 60, Remaining: 59}}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rr = httptest.NewRecorder()
	RateLimit(allowed, logger.NewDiscard())(ok).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("X-RateLimit-Remaining") != "59" {
		t.Fatalf("status = %d remaining = %q", rr.Code, rr.Header().Get("X-RateLimit-Remaining"))
	}
	if allowed.keys[0] != "ip:203.0.113.7" {
		t.Fatalf("limiter key = %q", allowed.keys[0])
	}

	broken := &fakeLimiter{err: errors.New("redis down")}
	rr = httptest.NewRecorder()
	RateLimit(broken, logger.NewDiscard())(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("limiter failure should fail open, got %d", rr.Code)
	}
}
