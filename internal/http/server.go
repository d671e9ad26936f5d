// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "finwise/internal/log"
	"finwise/internal/middleware/ratelimit"
	"finwise/internal/middleware/security"
	"finwise/internal/middleware/trace"
	"finwise/internal/services"
)

// UserHeader carries the caller identity. Authentication happens upstream.
const UserHeader = "X-User-ID"

// Options configures NewServer.
type Options struct {
	Addr          string
	DefaultUserID string
	// ImportsPerMinute limits POST /api/import per user. Zero uses the
	// rate limiter default.
	ImportsPerMinute int
	// Ping reports storage health for /readyz. Nil means always ready.
	Ping   func(ctx context.Context) error
	Logger *applog.Logger
}

type Server struct {
	http.Server
	ledger      *services.LedgerService
	imports     *services.ImportService
	ping        func(ctx context.Context) error
	limiter     *ratelimit.Limiter
	defaultUser string
	logger      *applog.Logger

	shutdownOnce sync.Once
}

func NewServer(opts Options, ledger *services.LedgerService, imports *services.ImportService) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Server{
		ledger:      ledger,
		imports:     imports,
		ping:        opts.Ping,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ImportsPerMinute}),
		defaultUser: opts.DefaultUserID,
		logger:      logger.WithComponent(applog.ComponentHTTP),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, clientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withUser)

		r.Get("/summary", s.handleSummary)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleSubmitTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.With(s.limiter.Middleware(userFromRequest, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "too many imports, try again later")
		})).Post("/import", s.handleImport)
		r.Get("/import/sample", handleImportSample)
		r.Get("/export", s.handleExport)
	})

	return r
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
