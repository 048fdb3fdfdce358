// Package web provides the HTTP API and HTMX fragments for results imports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/raceresults/internal/config"
	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server for the results import API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	auth    *middleware.Authenticator
	router  *chi.Mux
	server  *http.Server
	metrics http.Handler
}

// NewServer wires routes and middleware. A nil gatherer serves the default
// Prometheus registry on /metrics.
func NewServer(service *core.Service, cfg *config.Config, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		auth:    middleware.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer),
		router:  chi.NewRouter(),
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics)

	var apiLimiter, importLimiter *middleware.IPRateLimiter
	if s.cfg.Rate.Enabled {
		apiLimiter = middleware.NewIPRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		importLimiter = middleware.NewIPRateLimiter(s.cfg.Rate.ImportLimit, s.cfg.Rate.ImportLimit)
	}
	writers := s.auth.RequireRole(middleware.RoleOrganizer)
	admins := s.auth.RequireRole(middleware.RoleAdmin)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(apiLimiter))

		// Progress streams stay open for the whole import.
		r.Get("/imports/{importID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.requestTimeout()))

			// Pure parsing, nothing stored
			r.Post("/detect", s.handleDetect)
			r.With(middleware.RateLimit(importLimiter)).Post("/parse", s.handleParse)
			r.With(middleware.RateLimit(importLimiter)).Post("/preview", s.handlePreview)
			r.Get("/mapping/fields", s.handleMappingFields)
			r.Post("/mapping/suggest", s.handleSuggestMapping)

			// Races
			r.With(writers, middleware.RateLimit(importLimiter)).Post("/races/{raceID}/imports", s.handleStartImport)
			r.Get("/races/{raceID}/imports", s.handleListImports)
			r.Get("/races/{raceID}/results", s.handleListResults)

			// Imports
			r.Get("/imports/{importID}", s.handleGetImport)
			r.With(writers).Post("/imports/{importID}/cancel", s.handleCancelImport)
			r.Get("/imports/{importID}/errors.csv", s.handleExportErrors)

			// Mapping templates
			r.Get("/mapping-templates", s.handleListTemplates)
			r.Get("/mapping-templates/match", s.handleMatchTemplates)
			r.Get("/mapping-templates/{id}", s.handleGetTemplate)
			r.With(writers).Post("/mapping-templates", s.handleCreateTemplate)
			r.With(writers).Put("/mapping-templates/{id}", s.handleUpdateTemplate)
			r.With(admins).Delete("/mapping-templates/{id}", s.handleDeleteTemplate)
		})
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 60 * time.Second
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeJSONStatus is writeJSON with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
