// Package api exposes the HTTP control surface: target, destination, and
// schedule registries, run triggers, run history, artifacts, and the audit
// trail.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/api/handler"
	mw "github.com/Sokrates1989/backup-restore/internal/api/middleware"
	"github.com/Sokrates1989/backup-restore/internal/config"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
	"github.com/Sokrates1989/backup-restore/internal/secret"
)

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	services    *core.Services
	pool        *pgxpool.Pool
	orch        *orchestrator.Orchestrator
	cfg         *config.Config
	auditLogger *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, orch *orchestrator.Orchestrator,
	secrets secret.Resolver, cfg *config.Config) *Server {

	services := core.NewServices(pool)
	auditLogger := mw.NewAuditLogger(pool, logger)

	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		services:    services,
		pool:        pool,
		orch:        orch,
		cfg:         cfg,
		auditLogger: auditLogger,
	}

	s.setupMiddleware()
	s.setupRoutes(secrets)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes(secrets secret.Resolver) {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))
		r.Use(s.auditLogger.Middleware)

		// Targets
		target := handler.NewTarget(s.services.Targets, s.orch, s.cfg.ConnectTimeout)
		r.With(mw.RequireScope("targets", "read")).Get("/targets", target.List)
		r.With(mw.RequireScope("targets", "write")).Post("/targets", target.Create)
		r.With(mw.RequireScope("targets", "read")).Get("/targets/{id}", target.Get)
		r.With(mw.RequireScope("targets", "write")).Put("/targets/{id}", target.Update)
		r.With(mw.RequireScope("targets", "write")).Delete("/targets/{id}", target.Delete)
		r.With(mw.RequireScope("targets", "read")).Post("/targets/test-connection", target.TestCandidate)
		r.With(mw.RequireScope("targets", "read")).Post("/targets/{id}/test-connection", target.TestConnection)
		r.With(mw.RequireScope("targets", "read")).Get("/targets/{id}/stats", target.Stats)

		// Run triggers
		run := handler.NewRun(s.services.Runs, s.orch)
		r.With(mw.RequireScope("runs", "create")).Post("/targets/{id}/backups", run.TriggerBackup)
		r.With(mw.RequireScope("runs", "restore")).Post("/targets/{id}/restores", run.TriggerRestore)

		// Destinations
		dest := handler.NewDestination(s.services.Destinations, secrets, s.cfg.ConnectTimeout)
		r.With(mw.RequireScope("destinations", "read")).Get("/destinations", dest.List)
		r.With(mw.RequireScope("destinations", "write")).Post("/destinations", dest.Create)
		r.With(mw.RequireScope("destinations", "read")).Post("/destinations/test", dest.Test)
		r.With(mw.RequireScope("destinations", "read")).Get("/destinations/{id}", dest.Get)
		r.With(mw.RequireScope("destinations", "write")).Put("/destinations/{id}", dest.Update)
		r.With(mw.RequireScope("destinations", "write")).Delete("/destinations/{id}", dest.Delete)

		// Artifacts
		artifact := handler.NewArtifact(s.services.Destinations, secrets, s.cfg.LocalBackupDir)
		r.With(mw.RequireScope("artifacts", "read")).Get("/destinations/{id}/artifacts", artifact.List)
		r.With(mw.RequireScope("artifacts", "download")).Get("/destinations/{id}/artifacts/{name}", artifact.Download)
		r.With(mw.RequireScope("artifacts", "delete")).Delete("/destinations/{id}/artifacts/{name}", artifact.Delete)

		// Schedules
		sched := handler.NewSchedule(s.services.Schedules)
		r.With(mw.RequireScope("schedules", "read")).Get("/schedules", sched.List)
		r.With(mw.RequireScope("schedules", "write")).Post("/schedules", sched.Create)
		r.With(mw.RequireScope("schedules", "read")).Get("/schedules/{id}", sched.Get)
		r.With(mw.RequireScope("schedules", "write")).Put("/schedules/{id}", sched.Update)
		r.With(mw.RequireScope("schedules", "write")).Delete("/schedules/{id}", sched.Delete)

		// Runs
		r.With(mw.RequireScope("runs", "read")).Get("/runs", run.List)
		r.With(mw.RequireScope("runs", "read")).Get("/runs/{id}", run.Get)
		r.With(mw.RequireScope("runs", "cancel")).Post("/runs/{id}/cancel", run.Cancel)

		// Audit trail
		audit := handler.NewAudit(s.services.Audit)
		r.With(mw.RequireScope("audit", "read")).Get("/audit-events", audit.List)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKeys)
		r.With(mw.RequireScope("api-keys", "admin")).Get("/api-keys", apiKey.List)
		r.With(mw.RequireScope("api-keys", "admin")).Post("/api-keys", apiKey.Create)
		r.With(mw.RequireScope("api-keys", "admin")).Get("/api-keys/{id}", apiKey.Get)
		r.With(mw.RequireScope("api-keys", "admin")).Delete("/api-keys/{id}", apiKey.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["state_db"] = err.Error()
		healthy = false
	} else {
		checks["state_db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close flushes the async audit writer.
func (s *Server) Close() {
	s.auditLogger.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
