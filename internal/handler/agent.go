package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/agent"
	"github.com/chebacca/agentcore/internal/middleware"
	"github.com/chebacca/agentcore/internal/models"
	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/security"
)

// AgentHandler handles the /api/v1/agents routes
type AgentHandler struct {
	router    *agent.Router
	validator *security.MessageValidator
	pii       *security.PIIDetector // nil when PII detection is disabled
	audit     *security.AuditLogger
}

func NewAgentHandler(
	router *agent.Router,
	validator *security.MessageValidator,
	pii *security.PIIDetector,
	audit *security.AuditLogger,
) *AgentHandler {
	return &AgentHandler{
		router:    router,
		validator: validator,
		pii:       pii,
		audit:     audit,
	}
}

// Invoke handles POST /api/v1/agents/invoke
func (h *AgentHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req models.InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	apiKey := middleware.APIKey(r)

	if req.Context.OrganizationID == "" {
		models.WriteError(w, http.StatusBadRequest, "context.organizationId is required")
		return
	}
	if !h.screen(w, req.Message, "message", apiKey) {
		return
	}
	for i, m := range req.Context.History {
		field := fmt.Sprintf("context.history[%d]", i)
		if !slices.Contains(models.HistoryRoles, m.Role) {
			h.audit.LogRejected(m.Content, apiKey, "history role "+m.Role)
			models.WriteError(w, http.StatusBadRequest, fmt.Sprintf("%s: role must be one of %s", field, strings.Join(models.HistoryRoles, ", ")))
			return
		}
		if !h.screen(w, m.Content, field, apiKey) {
			return
		}
	}

	start := time.Now()
	out, err := h.router.Route(r.Context(), toAgentRequest(req))

	evt := security.InvocationEvent{
		Message:        req.Message,
		APIKey:         apiKey,
		OrganizationID: req.Context.OrganizationID,
		DurationMs:     time.Since(start).Milliseconds(),
		Err:            err,
	}
	if out != nil {
		evt.Agent = out.AgentID
		evt.Tier = out.Routing.ProviderTier
		evt.ToolsUsed = out.ToolsUsed
		if out.Plan != nil {
			evt.Planned = len(out.Plan.Actions)
		}
	}
	h.audit.LogInvocation(evt)

	if err != nil {
		writeRouteError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// screen runs the message validator and PII check over text, writing a 400
// and returning false when it is rejected.
func (h *AgentHandler) screen(w http.ResponseWriter, text, field, apiKey string) bool {
	if err := h.validator.Validate(text); err != nil {
		h.audit.LogRejected(text, apiKey, err.Error())
		models.WriteError(w, http.StatusBadRequest, field+": "+err.Error())
		return false
	}
	if h.pii != nil {
		if found, kw := h.pii.Detect(text); found {
			h.audit.LogRejected(text, apiKey, "pii:"+kw)
			models.WriteError(w, http.StatusBadRequest, field+" references sensitive data ("+kw+"); rephrase without it")
			return false
		}
	}
	return true
}

// ListAgents handles GET /api/v1/agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.router.Agents()
	resp := models.AgentsResponse{Agents: make([]models.AgentInfo, 0, len(agents))}
	for _, a := range agents {
		names, err := a.AllowedTools(r.Context())
		if err != nil {
			models.WriteError(w, http.StatusServiceUnavailable, "tool catalog unavailable: "+err.Error())
			return
		}
		if names == nil {
			names = []string{}
		}
		p := a.Profile()
		resp.Agents = append(resp.Agents, models.AgentInfo{
			ID:           a.ID(),
			Profile:      p.ID,
			Risk:         string(p.Risk),
			AllowedTools: names,
		})
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

func toAgentRequest(req models.InvokeRequest) agent.Request {
	cc := provider.Context{
		Mode:           req.Context.Mode,
		OrganizationID: req.Context.OrganizationID,
		ProjectID:      req.Context.ProjectID,
		SessionID:      req.Context.SessionID,
	}
	for _, m := range req.Context.History {
		cc.History = append(cc.History, provider.Message{Role: m.Role, Content: m.Content})
	}
	return agent.Request{AgentID: req.AgentID, Message: req.Message, Context: cc}
}

func writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	var re *agent.RoutingError
	switch {
	case errors.As(err, &re):
		code := http.StatusBadGateway
		if re.Kind == agent.ProviderRejected {
			code = http.StatusUnprocessableEntity
		}
		models.WriteErrorKind(w, code, string(re.Kind), re.Error(), map[string]interface{}{
			"agent":    re.Agent,
			"attempts": re.Attempts,
		})
	case errors.Is(err, agent.ErrEmptyMessage), errors.Is(err, agent.ErrUnknownAgent):
		models.WriteError(w, http.StatusBadRequest, err.Error())
	case planner.IsPlanError(err):
		models.WriteErrorKind(w, http.StatusUnprocessableEntity, planErrorKind, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		models.WriteError(w, http.StatusGatewayTimeout, "request cancelled: "+err.Error())
	default:
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("agent invocation failed")
		models.WriteError(w, http.StatusInternalServerError, "agent invocation failed")
	}
}
