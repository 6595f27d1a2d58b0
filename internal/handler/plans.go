package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chebacca/agentcore/internal/models"
	"github.com/chebacca/agentcore/internal/planner"
)

// PlansHandler orders proposed actions and instantiates workflow templates.
// It never executes a plan.
type PlansHandler struct {
	templates *planner.Templates
}

// planErrorKind tags responses for plans that fail validation.
const planErrorKind = "invalid_plan"

func NewPlansHandler(templates *planner.Templates) *PlansHandler {
	return &PlansHandler{templates: templates}
}

// Build handles POST /api/v1/plans
func (h *PlansHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	steps := make([]planner.Step, len(req.Actions))
	for i, a := range req.Actions {
		steps[i] = planner.Step{ID: a.ID, Type: a.Type, Params: a.Params, DependsOn: a.DependsOn}
	}

	plan, err := planner.Build(steps)
	if err != nil {
		models.WriteErrorKind(w, http.StatusUnprocessableEntity, planErrorKind, err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, plan)
}

// ListTemplates handles GET /api/v1/plans/templates
func (h *PlansHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list := h.templates.List()
	models.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"templates": list,
		"count":     len(list),
	})
}

// Instantiate handles POST /api/v1/plans/templates/{name}
func (h *PlansHandler) Instantiate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req models.TemplateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	plan, err := h.templates.Instantiate(name, req.Params)
	switch {
	case errors.Is(err, planner.ErrUnknownTemplate):
		models.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrMissingParam):
		models.WriteError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		models.WriteErrorKind(w, http.StatusUnprocessableEntity, planErrorKind, err.Error(), nil)
	default:
		models.WriteJSON(w, http.StatusOK, plan)
	}
}
