package agent

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/capability"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/tools"
)

var queryKeywords = []string{
	"find", "search", "get", "list", "show", "display", "query", "fetch", "retrieve",
	"what", "where", "when", "who", "how many", "count", "check", "lookup",
}

// IsQueryIntent reports whether text reads like an informational request.
func IsQueryIntent(text string) bool {
	return keywordScore(text, queryKeywords) > 0
}

const querySystemPrompt = `You answer read-only questions about the user's organization.

RULES:
1. Use the available tools to look data up; never guess identifiers or values
2. You cannot create, change or delete anything; say so if asked
3. Answer concisely in plain language and mention which records you used`

// QueryResult is the answer to a read-only query.
type QueryResult struct {
	Answer    string             `json:"answer"`
	ToolsUsed []string           `json:"toolsUsed"`
	Data      *provider.Response `json:"data"`
}

// QueryAgent answers informational requests with read-only tools.
type QueryAgent struct {
	view    *toolView
	profile capability.Profile
}

// NewQueryAgent starts computing the agent's tool list in the background.
func NewQueryAgent(registry *tools.Registry) *QueryAgent {
	p := capability.QueryProfile()
	return &QueryAgent{view: newToolView(registry, p), profile: p}
}

func (a *QueryAgent) ID() string                  { return QueryAgentID }
func (a *QueryAgent) Profile() capability.Profile { return a.profile }
func (a *QueryAgent) Score(text string) int       { return keywordScore(text, queryKeywords) }

func (a *QueryAgent) AllowedTools(ctx context.Context) ([]string, error) {
	return a.view.Names(ctx)
}

// ExecuteQuery sends query to p with the read-only tool set.
func (a *QueryAgent) ExecuteQuery(ctx context.Context, query string, cc provider.Context, p provider.Adapter) (*QueryResult, error) {
	allowed, err := a.view.Names(ctx)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("provider", p.Name()).Strs("tools", allowed).Msg("executing query")

	resp, err := p.GenerateChatResponse(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: querySystemPrompt},
		{Role: provider.RoleUser, Content: query},
	}, allowed, cc)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Answer: resp.Message, ToolsUsed: resp.ToolNames(), Data: resp}, nil
}

func (a *QueryAgent) Execute(ctx context.Context, req Request, p provider.Adapter) (*Result, error) {
	qr, err := a.ExecuteQuery(ctx, req.Message, req.Context, p)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: qr.Answer, ToolsUsed: qr.ToolsUsed, Data: qr.Data, Rejected: !qr.Data.Success}, nil
}
