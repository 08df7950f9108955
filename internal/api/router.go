// Package api serves the loan application HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-api/internal/common/config"
	"loan-api/internal/common/logger"
	"loan-api/internal/store"
	"loan-api/internal/underwriting"
)

// Handler holds all API handler state.
type Handler struct {
	store  *store.Store
	engine *underwriting.Engine
	logger logger.Logger
	now    func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store, engine *underwriting.Engine, log logger.Logger) *Handler {
	return &Handler{
		store:  s,
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
		now:    time.Now,
	}
}

// Routes mounts the application routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.CreateApplication)
		r.Get("/", h.ListApplications)
		r.Get("/{id}", h.GetApplication)
		r.Put("/{id}/status", h.UpdateApplicationStatus)
	})
}

// NewRouter builds the full middleware chain around the application routes.
func NewRouter(h *Handler, log logger.Logger, cfg config.ServerConfig) http.Handler {
	mw := NewMiddleware(log.WithFields(map[string]interface{}{"component": "http"}), cfg.CORSOrigin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.Metrics)
	r.Use(mw.Recover)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, msgEndpointNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	h.Routes(r)
	return r
}

// NewServer wraps the router in an http.Server using the configured timeouts.
func NewServer(handler http.Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}
}
