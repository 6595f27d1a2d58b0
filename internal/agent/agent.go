// Package agent holds the specialized agents and the master router that
// classifies requests, dispatches them and falls back across provider tiers.
package agent

import (
	"context"
	"strings"

	"github.com/chebacca/agentcore/internal/capability"
	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
)

// Agent IDs.
const (
	QueryAgentID   = "query"
	ActionAgentID  = "action"
	GeneralAgentID = "general"
)

// Request is one invocation of an agent.
type Request struct {
	AgentID string
	Message string
	Context provider.Context
}

// Result is an agent's answer.
type Result struct {
	Answer    string
	ToolsUsed []string
	Data      *provider.Response
	Plan      *planner.Plan
	// Rejected is set when the provider answered with Success false.
	Rejected bool
}

// Agent handles one category of intent with a capability-filtered tool set.
type Agent interface {
	ID() string
	Profile() capability.Profile
	// Score rates how strongly text matches this agent's intent; 0 means no match.
	Score(text string) int
	// AllowedTools returns the tool names the agent offers to providers.
	AllowedTools(ctx context.Context) ([]string, error)
	// Execute runs the request against p. Provider errors are returned
	// unchanged; agents never retry or fall back.
	Execute(ctx context.Context, req Request, p provider.Adapter) (*Result, error)
}

// keywordScore counts the keywords contained in the lowercased text.
func keywordScore(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}
