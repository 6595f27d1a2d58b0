package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chebacca/agentcore/internal/tools"
)

// RemoteConfig configures an HTTP collaborator that answers with the
// Response JSON shape directly.
type RemoteConfig struct {
	Name    string
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Remote forwards the conversation and tool declarations to a collaborator
// that runs the model and its tools itself.
type Remote struct {
	name    string
	url     string
	apiKey  string
	client  *http.Client
	catalog Catalog
}

func NewRemote(cfg RemoteConfig, catalog Catalog) *Remote {
	if cfg.Name == "" {
		cfg.Name = "remote"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Remote{
		name:    cfg.Name,
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		catalog: catalog,
	}
}

func (r *Remote) Name() string { return r.name }

type remoteRequest struct {
	Messages []Message           `json:"messages"`
	Tools    []tools.Declaration `json:"tools"`
	Context  Context             `json:"context"`
}

func (r *Remote) GenerateChatResponse(ctx context.Context, messages []Message, allowedTools []string, cc Context) (*Response, error) {
	tb := newToolbox(ctx, r.catalog, allowedTools)
	body := remoteRequest{
		Messages: conversation(messages, Context{History: cc.History}),
		Tools:    make([]tools.Declaration, 0, len(tb.order)),
		Context:  cc,
	}
	body.Context.History = nil
	for _, t := range tb.order {
		body.Tools = append(body.Tools, t.Declaration())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal remote request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Provider: r.name, Kind: KindUnreachable, Err: fmt.Errorf("status %d: %s", resp.StatusCode, b)}
	}

	var out struct {
		Message     *string      `json:"message"`
		ToolResults []ToolResult `json:"tool_results"`
		Success     *bool        `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, malformed(r.name, fmt.Errorf("decode response: %w", err))
	}
	if out.Message == nil || out.Success == nil {
		return nil, malformed(r.name, fmt.Errorf("response missing message or success"))
	}
	return &Response{Message: *out.Message, ToolResults: out.ToolResults, Success: *out.Success}, nil
}
