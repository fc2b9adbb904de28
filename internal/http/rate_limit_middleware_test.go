package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMemoryLimiterCountsWithinWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	first := rl.Allow("user:u-1", 2, time.Minute)
	if !first.allowed || first.count != 1 {
		t.Fatalf("unexpected first decision: %+v", first)
	}
	second := rl.Allow("user:u-1", 2, time.Minute)
	if !second.allowed || second.count != 2 {
		t.Fatalf("unexpected second decision: %+v", second)
	}
	third := rl.Allow("user:u-1", 2, time.Minute)
	if third.allowed {
		t.Fatalf("expected third request denied, got %+v", third)
	}
	if third.count != 2 {
		t.Fatalf("denied decision should report window count, got %d", third.count)
	}
	if third.windowEnd != second.windowEnd {
		t.Fatalf("window end changed on denial: %v vs %v", third.windowEnd, second.windowEnd)
	}

	other := rl.Allow("user:u-2", 2, time.Minute)
	if !other.allowed || other.count != 1 {
		t.Fatalf("keys should not share windows: %+v", other)
	}
}

func TestMemoryLimiterZeroLimitBypasses(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 0; i < 10; i++ {
		if decision := rl.Allow("ip:10.0.0.1", 0, time.Minute); !decision.allowed {
			t.Fatalf("zero limit must always allow, denied on attempt %d", i+1)
		}
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	window := 20 * time.Millisecond
	if decision := rl.Allow("user:u-1", 1, window); !decision.allowed {
		t.Fatalf("first request must pass: %+v", decision)
	}
	if decision := rl.Allow("user:u-1", 1, window); decision.allowed {
		t.Fatalf("second request within the window must be denied")
	}

	time.Sleep(window + 10*time.Millisecond)

	decision := rl.Allow("user:u-1", 1, window)
	if !decision.allowed || decision.count != 1 {
		t.Fatalf("expected fresh window after expiry, got %+v", decision)
	}
}

func TestMemoryLimiterCleanupDropsExpired(t *testing.T) {
	rl := &memoryRateLimiter{entries: make(map[string]rateState), stopCh: make(chan struct{})}
	now := time.Now()
	rl.entries["stale"] = rateState{count: 5, windowEnd: now.Add(-time.Minute)}
	rl.entries["live"] = rateState{count: 1, windowEnd: now.Add(time.Minute)}

	rl.cleanup(now)

	if _, ok := rl.entries["stale"]; ok {
		t.Fatalf("expired entry survived cleanup")
	}
	if _, ok := rl.entries["live"]; !ok {
		t.Fatalf("live entry removed by cleanup")
	}
}

func TestWithRateLimitDeniedResponse(t *testing.T) {
	reset := time.Unix(1_950_100_000, 0)
	limiter := newRateLimiterStub()
	limiter.allowFn = func(key string, limit int, window time.Duration) rateDecision {
		return rateDecision{allowed: false, count: rateLimitUserWrite, windowEnd: reset}
	}
	router := &Router{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter: limiter,
	}

	called := false
	handler := router.withRateLimit("/teams", rateLimitUserWrite, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/teams", nil)
	req.RemoteAddr = "192.0.2.1:4242"
	rr := httptest.NewRecorder()
	handler(rr, req)

	if called {
		t.Fatalf("handler must not run when rate limited")
	}
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Fatalf("unexpected limit header %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("unexpected remaining header %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != "1950100000" {
		t.Fatalf("unexpected reset header %q", got)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.calls) != 1 {
		t.Fatalf("expected one limiter call, got %d", len(limiter.calls))
	}
	if limiter.calls[0].key != "ip:192.0.2.1" {
		t.Fatalf("unexpected limiter key %q", limiter.calls[0].key)
	}
}

func TestWithRateLimitAllowedSetsHeaders(t *testing.T) {
	reset := time.Unix(1_950_100_100, 0)
	limiter := newRateLimiterStub()
	limiter.allowFn = func(key string, limit int, window time.Duration) rateDecision {
		return rateDecision{allowed: true, count: 3, windowEnd: reset}
	}
	router := &Router{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter: limiter,
	}

	handler := router.withRateLimit("/feed", rateLimitUserRead, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.RemoteAddr = "192.0.2.7:1000"
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "117" {
		t.Fatalf("unexpected remaining header %q", got)
	}
}

func TestRateLimitKeyIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.RemoteAddr = "203.0.113.9:55122"
	if key := rateLimitKeyIP(req); key != "ip:203.0.113.9" {
		t.Fatalf("unexpected key %q", key)
	}

	req.RemoteAddr = "203.0.113.9"
	if key := rateLimitKeyIP(req); key != "ip:203.0.113.9" {
		t.Fatalf("expected host without port handled, got %q", key)
	}

	req.RemoteAddr = ""
	if key := rateLimitKeyIP(req); key != "ip:unknown" {
		t.Fatalf("expected unknown fallback, got %q", key)
	}
}

func TestRateMetricKeyStripsIdentity(t *testing.T) {
	cases := map[string]string{
		"user:user-123": "user",
		"ip:10.0.0.1":   "ip",
		"":              "unknown",
		"plain":         "plain",
	}
	for in, want := range cases {
		if got := rateMetricKey(in); got != want {
			t.Fatalf("rateMetricKey(%q) = %q, want %q", in, got, want)
		}
	}
}

type rateLimiterStub struct {
	mu      sync.Mutex
	calls   []rateLimitCall
	allowFn func(key string, limit int, window time.Duration) rateDecision
}

type rateLimitCall struct {
	key    string
	limit  int
	window time.Duration
}

func newRateLimiterStub() *rateLimiterStub {
	return &rateLimiterStub{}
}

func (rl *rateLimiterStub) Allow(key string, limit int, window time.Duration) rateDecision {
	rl.mu.Lock()
	rl.calls = append(rl.calls, rateLimitCall{key: key, limit: limit, window: window})
	fn := rl.allowFn
	rl.mu.Unlock()
	if fn != nil {
		return fn(key, limit, window)
	}
	return rateDecision{allowed: true, count: 1, windowEnd: time.Now().Add(window)}
}

func (rl *rateLimiterStub) Close() {}
