package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chebacca/agentcore/internal/agent"
	"github.com/chebacca/agentcore/internal/models"
	"github.com/chebacca/agentcore/internal/tools"
)

const version = "1.0.0"

const healthTimeout = 5 * time.Second

// HealthChecker is a tool backend that can report connectivity.
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

type HealthHandler struct {
	registry *tools.Registry
	router   *agent.Router
	deps     map[string]HealthChecker
}

// NewHealthHandler creates a health handler. deps maps a name to a tool
// backend; a nil checker is reported as disabled.
func NewHealthHandler(registry *tools.Registry, router *agent.Router, deps map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{registry: registry, router: router, deps: deps}
}

// Health handles GET /health. Backends are probed concurrently; the
// endpoint only answers 503 when nothing in the tool catalog is usable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := h.probe(ctx)
	checks["server"] = "ok"

	catalog := h.registry.All(ctx)
	checks["registry"] = "ok"
	if !h.registry.Loaded() {
		checks["registry"] = "partial"
	}

	status := "healthy"
	for _, c := range checks {
		if c != "ok" && c != "disabled" {
			status = "degraded"
			break
		}
	}

	tiers := make([]models.TierInfo, 0, len(h.router.Tiers()))
	for _, t := range h.router.Tiers() {
		tiers = append(tiers, models.TierInfo{Tier: t.Name, Provider: t.Adapter.Name()})
	}

	code := http.StatusOK
	if status == "degraded" && len(catalog) == 0 {
		code = http.StatusServiceUnavailable
	}
	models.WriteJSON(w, code, models.HealthResponse{
		Status:  status,
		Version: version,
		Checks:  checks,
		Tools:   len(catalog),
		Tiers:   tiers,
	})
}

func (h *HealthHandler) probe(ctx context.Context) map[string]string {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.deps)+2)
	)
	set := func(name, v string) {
		mu.Lock()
		checks[name] = v
		mu.Unlock()
	}

	var g errgroup.Group
	for name, dep := range h.deps {
		if dep == nil {
			set(name, "disabled")
			continue
		}
		g.Go(func() error {
			if err := dep.TestConnection(ctx); err != nil {
				set(name, "unavailable: "+err.Error())
				return nil
			}
			set(name, "ok")
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
