package models

import "strings"

// HistoryMessage is one prior turn supplied by the caller.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InvokeContext carries the caller's scope for one invocation.
type InvokeContext struct {
	Mode           string           `json:"mode"`
	OrganizationID string           `json:"organizationId"`
	ProjectID      string           `json:"projectId,omitempty"`
	SessionID      string           `json:"sessionId,omitempty"`
	History        []HistoryMessage `json:"history,omitempty"`
}

// InvokeRequest for POST /api/v1/agents/invoke
type InvokeRequest struct {
	AgentID string        `json:"agentId,omitempty"`
	Message string        `json:"message"`
	Context InvokeContext `json:"context"`
}

// maxHistory bounds the prior turns forwarded to a provider.
const maxHistory = 20

// HistoryRoles are the roles a caller may use in context.history.
var HistoryRoles = []string{"user", "assistant"}

func (r *InvokeRequest) SetDefaults() {
	r.AgentID = strings.ToLower(strings.TrimSpace(r.AgentID))
	if r.Context.Mode == "" {
		r.Context.Mode = "chat"
	}
	history := r.Context.History[:0]
	for _, m := range r.Context.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		m.Role = strings.ToLower(strings.TrimSpace(m.Role))
		history = append(history, m)
	}
	r.Context.History = history
	if n := len(r.Context.History); n > maxHistory {
		r.Context.History = r.Context.History[n-maxHistory:]
	}
}

// PlanStep is one proposed action in a plan request.
type PlanStep struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	Params    map[string]interface{} `json:"params,omitempty"`
	DependsOn []string               `json:"dependsOn,omitempty"`
}

// PlanRequest for POST /api/v1/plans
type PlanRequest struct {
	Actions []PlanStep `json:"actions"`
}

// TemplateRequest for POST /api/v1/plans/templates/{name}
type TemplateRequest struct {
	Params map[string]string `json:"params"`
}
