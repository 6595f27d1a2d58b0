package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/config"
	"github.com/chebacca/agentcore/internal/handler"
	"github.com/chebacca/agentcore/internal/middleware"
	"github.com/chebacca/agentcore/internal/security"
)

// routes mounts the API on a chi router.
func routes(cfg *config.Config, st *Stack, limiter *middleware.RateLimiter) http.Handler {
	// ─── Security ───────────────────────────────────────────────────────────────
	validator := security.NewMessageValidator(cfg.MaxMessageLength)
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)
	var piiDetector *security.PIIDetector
	if cfg.EnablePIIDetection {
		piiDetector = security.NewPIIDetector(cfg.PIIKeywords)
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(st.Registry, st.Router, st.deps)
	agentH := handler.NewAgentHandler(st.Router, validator, piiDetector, auditLogger)
	toolsH := handler.NewToolsHandler(st.Registry)
	plansH := handler.NewPlansHandler(st.Templates)

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins, cfg.CORSMaxAge)))

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}
		r.Use(middleware.RateLimit(limiter))

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Route("/agents", func(r chi.Router) {
				r.Get("/", agentH.ListAgents)
				r.Post("/invoke", agentH.Invoke)
			})
			r.Route("/tools", func(r chi.Router) {
				r.Get("/", toolsH.List)
				r.Post("/refresh", toolsH.Refresh)
			})
			r.Route("/plans", func(r chi.Router) {
				r.Post("/", plansH.Build)
				r.Get("/templates", plansH.ListTemplates)
				r.Post("/templates/{name}", plansH.Instantiate)
			})
		})
	})

	return r
}
