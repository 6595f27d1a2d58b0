// Package provider adapts model backends (local Ollama, Anthropic, remote
// collaborators) to one tool-calling chat contract.
package provider

import (
	"context"

	"github.com/chebacca/agentcore/internal/tools"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the caller's conversation context. It is built per request
// and never persisted here.
type Context struct {
	Mode           string    `json:"mode,omitempty"`
	OrganizationID string    `json:"organizationId"`
	ProjectID      string    `json:"projectId,omitempty"`
	SessionID      string    `json:"sessionId,omitempty"`
	History        []Message `json:"history,omitempty"`
}

// ToolResult records one tool invocation made while answering.
type ToolResult struct {
	ToolName string `json:"tool_name"`
	Output   string `json:"output"`
	IsError  bool   `json:"is_error,omitempty"`
}

// Response is what an adapter returns when the backend answered.
// Success is false when the backend answered but could not complete the
// request; transport failures are returned as *Error instead.
type Response struct {
	Message     string       `json:"message"`
	ToolResults []ToolResult `json:"tool_results"`
	Success     bool         `json:"success"`
}

// ToolNames returns the names of the tools invoked, in call order.
func (r *Response) ToolNames() []string {
	names := make([]string, 0, len(r.ToolResults))
	for _, tr := range r.ToolResults {
		names = append(names, tr.ToolName)
	}
	return names
}

// Adapter is a model backend. Implementations execute the tools the model
// asks for, restricted to allowedTools.
type Adapter interface {
	Name() string
	GenerateChatResponse(ctx context.Context, messages []Message, allowedTools []string, cc Context) (*Response, error)
}

// Catalog resolves tool names to executable tools. *tools.Registry satisfies it.
type Catalog interface {
	Find(ctx context.Context, names []string) []tools.Tool
}
