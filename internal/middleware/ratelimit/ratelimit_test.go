package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatalf("first two requests must pass")
	}
	if rl.Allow("u1") {
		t.Fatalf("third request in the window must be rejected")
	}
	if !rl.Allow("u2") {
		t.Fatalf("keys are limited independently")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("u1") {
		t.Fatalf("a new window must reset the counter")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("a")
	*now = now.Add(11 * time.Minute)
	rl.Allow("b")

	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-User-ID") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	do := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
		req.Header.Set("X-User-ID", "u1")
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := do(); rr.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rr.Code)
	}
	rr := do()
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second request status = %d, Retry-After = %q", rr.Code, rr.Header().Get("Retry-After"))
	}
}
