package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(rps float64, burst int) (*Limiter, *time.Time) {
	now := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewLimiter(Config{RequestsPerSecond: rps, Burst: burst, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst refused", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("clients must not share a bucket")
	}

	*now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("token not refilled after one second")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", got)
	}
}

func TestLimiter_CleanExpired(t *testing.T) {
	rl, now := newTestLimiter(1, 1)
	rl.Allow("a")
	*now = now.Add(30 * time.Second)
	rl.Allow("b")
	*now = now.Add(45 * time.Second)

	if removed := rl.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 stale client removed, got %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected 1 client left, got %d", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(2, 1)
	handler := rl.Middleware(func(r *http.Request) string { return "client" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}
