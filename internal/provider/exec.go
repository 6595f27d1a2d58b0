package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/tools"
)

const (
	defaultMaxIterations = 8
	finalAnswerPrompt    = "You have enough data. Please provide your final answer now without calling any more tools."
)

// toolbox is the set of tools one call may execute.
type toolbox struct {
	byName map[string]tools.Tool
	order  []tools.Tool
}

func newToolbox(ctx context.Context, catalog Catalog, allowed []string) *toolbox {
	tb := &toolbox{byName: map[string]tools.Tool{}}
	if catalog == nil || len(allowed) == 0 {
		return tb
	}
	for _, t := range catalog.Find(ctx, allowed) {
		tb.byName[t.Name] = t
		tb.order = append(tb.order, t)
	}
	return tb
}

// run executes one tool call. Tool failures become error results handed
// back to the model, never adapter errors.
func (tb *toolbox) run(ctx context.Context, name string, input map[string]interface{}) ToolResult {
	t, ok := tb.byName[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("model requested a tool outside its allowed set")
		return ToolResult{ToolName: name, Output: fmt.Sprintf("error: unknown tool: %s", name), IsError: true}
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	out, err := t.Execute(ctx, input)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool execution error")
		return ToolResult{ToolName: name, Output: fmt.Sprintf("error: %v", err), IsError: true}
	}
	return ToolResult{ToolName: name, Output: out}
}

// scoped attaches the caller's tenancy so tools can read it.
func scoped(ctx context.Context, cc Context) context.Context {
	return tools.WithScope(ctx, tools.Scope{
		OrganizationID: cc.OrganizationID,
		ProjectID:      cc.ProjectID,
		SessionID:      cc.SessionID,
	})
}

// conversation orders system messages first, then the caller's history,
// then the remaining messages.
func conversation(messages []Message, cc Context) []Message {
	out := make([]Message, 0, len(cc.History)+len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			out = append(out, m)
		}
	}
	for _, m := range cc.History {
		// caller history never adds instructions
		if m.Role == RoleUser || m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	for _, m := range messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
