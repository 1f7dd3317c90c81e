// Package httpapi is the scanner's optional HTTP surface (§6, C21):
// `GET /`, `GET /health` (authenticated), `POST /dispatch` (authenticated).
// It reuses the teacher's dashboard.Server shape — a go-chi router, a
// constant-time X-API-Key comparison, the same middleware stack (request
// ID, real IP, recoverer, timeout, compression) — but drops the HTML
// position-monitoring templates that shape served, since rendering
// broker positions has no place in a system with no order execution.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/vrpscanner/internal/app"
)

// Server is the chi-backed HTTP surface, constructed once at startup and
// torn down on shutdown (§9).
type Server struct {
	router *chi.Mux
	server *http.Server
	app    *app.App
	logger *logrus.Logger
	apiKey string
}

// Config carries the HTTP surface's port and API key.
type Config struct {
	Port   int
	APIKey string
}

// New constructs a Server wired to app for liveness, health, and dispatch.
func New(cfg Config, a *app.App, logger *logrus.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: logger,
		apiKey: cfg.APIKey,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.logRequests)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/metrics", s.handleMetrics)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/health", s.handleHealth)
		r.Post("/dispatch", s.handleDispatch)
	})

	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until the process is asked to stop.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "vrpscanner",
		"status":       "ok",
		"timestamp_et": time.Now().In(nyseZone()).Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.app.Health(r.Context())
	healthy := true
	for _, c := range checks {
		if !c.Healthy {
			healthy = false
			break
		}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy":    healthy,
		"components": checks,
	})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force")
	result, err := s.app.Scheduler.Dispatch(r.Context(), force)
	if err != nil {
		s.logger.WithError(err).Error("dispatch failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	resp := map[string]any{"status": result.Status, "job": result.Job}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.app.Metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// logRequests logs one line per request at debug level, mirroring the
// teacher's dashboard.Server request logging.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(started).String(),
		}).Debug("http request")
	})
}

// requireAPIKey enforces §6's auth contract: 503 when no key is
// configured, 401 when missing, 403 when it doesn't match, using a
// constant-time comparison to avoid timing side channels (the teacher's
// exact dashboard.Server.authMiddleware pattern).
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			http.Error(w, "api key not configured", http.StatusServiceUnavailable)
			return
		}
		token := r.Header.Get("X-API-Key")
		if token == "" {
			http.Error(w, "missing X-API-Key", http.StatusUnauthorized)
			return
		}
		if len(token) != len(s.apiKey) || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			http.Error(w, "invalid X-API-Key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nyseZone() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}
