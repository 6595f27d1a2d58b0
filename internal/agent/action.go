package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/capability"
	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/tools"
)

var actionKeywords = []string{
	"create", "update", "delete", "remove", "assign", "add", "send", "schedule",
	"cancel", "set up", "book", "invite", "and then",
}

// IsActionIntent reports whether text asks for something to be changed.
func IsActionIntent(text string) bool {
	return keywordScore(text, actionKeywords) > 0
}

const actionSystemPrompt = `You plan changes across the user's apps. You do not perform them.

Use the lookup tools if you need existing identifiers. Then reply with ONLY a JSON document:
{"actions":[{"id":"<unique id>","type":"<action tool name>","params":{...},"dependsOn":["<id>", ...]}]}

RULES:
1. "type" must be one of: %s
2. A step that needs the output of an earlier step lists it in dependsOn and uses the
   value "%s" for that parameter
3. Never depend on a step that is not in the list and never create cycles`

// ActionAgent turns mutation requests into an ordered ActionPlan. Lookup
// tools are offered to the provider; mutating tools only appear as plan
// step types for an external executor.
type ActionAgent struct {
	actions *toolView
	lookups *toolView
	profile capability.Profile
}

func NewActionAgent(registry *tools.Registry) *ActionAgent {
	p := capability.ActionProfile()
	return &ActionAgent{
		actions: newToolView(registry, p),
		lookups: newToolView(registry, capability.QueryProfile()),
		profile: p,
	}
}

func (a *ActionAgent) ID() string                  { return ActionAgentID }
func (a *ActionAgent) Profile() capability.Profile { return a.profile }
func (a *ActionAgent) Score(text string) int       { return keywordScore(text, actionKeywords) }

func (a *ActionAgent) AllowedTools(ctx context.Context) ([]string, error) {
	return a.actions.Names(ctx)
}

// Execute asks p for an action list and builds the plan. Planning errors
// are returned as is.
func (a *ActionAgent) Execute(ctx context.Context, req Request, p provider.Adapter) (*Result, error) {
	actions, err := a.actions.Names(ctx)
	if err != nil {
		return nil, err
	}
	lookups, err := a.lookups.Names(ctx)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(actionSystemPrompt, strings.Join(actions, ", "), planner.Placeholder)
	resp, err := p.GenerateChatResponse(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: req.Message},
	}, lookups, req.Context)
	if err != nil {
		return nil, err
	}

	res := &Result{Answer: resp.Message, ToolsUsed: resp.ToolNames(), Data: resp}
	if !resp.Success {
		res.Rejected = true
		return res, nil
	}

	steps, err := planner.ParseActions(resp.Message)
	if errors.Is(err, planner.ErrNoActions) {
		// the model answered in prose, e.g. asking for missing details
		log.Info().Str("provider", p.Name()).Msg("action agent produced no plan")
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(actions))
	for _, n := range actions {
		known[n] = true
	}
	for _, s := range steps {
		if len(known) > 0 && !known[s.Type] {
			log.Warn().Str("step", s.Key()).Str("type", s.Type).Msg("plan step type is not a known action tool")
		}
	}

	plan, err := planner.Build(steps)
	if err != nil {
		return nil, err
	}
	res.Plan = plan
	res.Answer = fmt.Sprintf("Planned %d action(s).", len(plan.Actions))
	return res, nil
}
