package handler

import (
	"net/http"

	"github.com/chebacca/agentcore/internal/models"
	"github.com/chebacca/agentcore/internal/tools"
)

// ToolsHandler exposes the tool catalog
type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// List handles GET /api/v1/tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.response(h.registry.All(r.Context())))
}

// Refresh handles POST /api/v1/tools/refresh
func (h *ToolsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.response(h.registry.Refresh(r.Context())))
}

func (h *ToolsHandler) response(list []tools.Tool) models.ToolsResponse {
	out := models.ToolsResponse{
		Tools:   make([]models.ToolInfo, 0, len(list)),
		Count:   len(list),
		Version: h.registry.Version(),
		Loaded:  h.registry.Loaded(),
	}
	for _, t := range list {
		info := models.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema.Map(),
		}
		for _, c := range t.Capabilities {
			info.Capabilities = append(info.Capabilities, string(c))
		}
		out.Tools = append(out.Tools, info)
	}
	return out
}
