package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	t.Run("plain http", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
			t.Fatalf("missing headers: %v", rr.Header())
		}
		if rr.Header().Get("Strict-Transport-Security") != "" {
			t.Fatalf("HSTS must not be sent over plain HTTP")
		}
	})

	t.Run("tls", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
		req.TLS = &tls.ConnectionState{}
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
			t.Fatalf("HSTS = %q", got)
		}
	})
}
