package agent

import (
	"context"

	"github.com/chebacca/agentcore/internal/capability"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/tools"
)

const generalSystemPrompt = `You are a helpful assistant for a production management platform.
Use the available tools when they help answer the request. Ask for missing details instead of guessing.
Your tools are read-only. If the user wants to create or change something, say what would be done; do not claim it was done.`

// GeneralAgent is the default agent when no intent matches.
type GeneralAgent struct {
	view    *toolView
	profile capability.Profile
}

func NewGeneralAgent(registry *tools.Registry) *GeneralAgent {
	p := capability.GeneralProfile()
	return &GeneralAgent{view: newToolView(registry, p), profile: p}
}

func (a *GeneralAgent) ID() string                  { return GeneralAgentID }
func (a *GeneralAgent) Profile() capability.Profile { return a.profile }

// Score is always 0; the general agent is only chosen by default or by ID.
func (a *GeneralAgent) Score(string) int { return 0 }

func (a *GeneralAgent) AllowedTools(ctx context.Context) ([]string, error) {
	return a.view.Names(ctx)
}

func (a *GeneralAgent) Execute(ctx context.Context, req Request, p provider.Adapter) (*Result, error) {
	allowed, err := a.view.Names(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.GenerateChatResponse(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: generalSystemPrompt},
		{Role: provider.RoleUser, Content: req.Message},
	}, allowed, req.Context)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: resp.Message, ToolsUsed: resp.ToolNames(), Data: resp, Rejected: !resp.Success}, nil
}
