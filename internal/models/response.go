package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
	Tools   int               `json:"tools"`
	Tiers   []TierInfo        `json:"tiers"`
}

// TierInfo names a provider at a fallback position.
type TierInfo struct {
	Tier     string `json:"tier"`
	Provider string `json:"provider"`
}

// AgentInfo describes a registered agent and the tools it currently offers.
type AgentInfo struct {
	ID           string   `json:"id"`
	Profile      string   `json:"profile"`
	Risk         string   `json:"risk"`
	AllowedTools []string `json:"allowedTools"`
}

// AgentsResponse is returned by GET /api/v1/agents
type AgentsResponse struct {
	Agents []AgentInfo `json:"agents"`
}

// ToolInfo is the provider-facing declaration of one tool.
type ToolInfo struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Parameters   map[string]interface{} `json:"parameters"`
	Capabilities []string               `json:"capabilities,omitempty"`
}

// ToolsResponse is returned by GET /api/v1/tools and POST /api/v1/tools/refresh
type ToolsResponse struct {
	Tools   []ToolInfo `json:"tools"`
	Count   int        `json:"count"`
	Version uint64     `json:"version"`
	Loaded  bool       `json:"loaded"`
}
