package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// OllamaConfig configures the local Ollama tier.
type OllamaConfig struct {
	Host          string
	Model         string
	Timeout       time.Duration
	MaxIterations int
}

// Ollama talks to a local Ollama server over /api/chat with function tools.
type Ollama struct {
	baseURL string
	model   string
	maxIter int
	client  *http.Client
	catalog Catalog
}

// NewOllama creates the local adapter. Tools are resolved through catalog.
func NewOllama(cfg OllamaConfig, catalog Catalog) *Ollama {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:latest"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return &Ollama{
		baseURL: cfg.Host,
		model:   cfg.Model,
		maxIter: cfg.MaxIterations,
		client:  &http.Client{Timeout: cfg.Timeout},
		catalog: catalog,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type chatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// GenerateChatResponse runs the tool loop until the model answers without
// requesting tools.
func (o *Ollama) GenerateChatResponse(ctx context.Context, messages []Message, allowedTools []string, cc Context) (*Response, error) {
	ctx = scoped(ctx, cc)
	tb := newToolbox(ctx, o.catalog, allowedTools)

	var decl []ollamaTool
	for _, t := range tb.order {
		decl = append(decl, ollamaTool{
			Type:     "function",
			Function: ollamaFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}

	var msgs []ollamaMessage
	for _, m := range conversation(messages, cc) {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	out := &Response{}
	for iter := 0; iter < o.maxIter; iter++ {
		req := chatRequest{Model: o.model, Messages: msgs, Tools: decl}
		// last round: no tools offered so the model has to answer
		if iter == o.maxIter-1 && iter > 0 {
			req.Tools = nil
			req.Messages = append(req.Messages, ollamaMessage{Role: RoleUser, Content: finalAnswerPrompt})
		}

		resp, err := o.chat(ctx, req)
		if err != nil {
			return nil, err
		}

		log.Debug().
			Int("iter", iter).
			Str("text_preview", preview(resp.Message.Content)).
			Int("tool_calls", len(resp.Message.ToolCalls)).
			Msg("ollama iteration")

		if len(resp.Message.ToolCalls) == 0 || req.Tools == nil {
			out.Message = resp.Message.Content
			out.Success = true
			return out, nil
		}

		msgs = append(msgs, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			tr := tb.run(ctx, tc.Function.Name, tc.Function.Arguments)
			out.ToolResults = append(out.ToolResults, tr)
			msgs = append(msgs, ollamaMessage{Role: "tool", Content: tr.Output, ToolName: tr.ToolName})
		}
	}

	out.Message = fmt.Sprintf("no final answer after %d iterations", o.maxIter)
	return out, nil
}

func (o *Ollama) chat(ctx context.Context, body chatRequest) (*chatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, o.Name(), fmt.Errorf("ollama connection failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Provider: o.Name(), Kind: KindUnreachable, Err: fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, b)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, malformed(o.Name(), fmt.Errorf("decode chat response: %w", err))
	}
	return &cr, nil
}
