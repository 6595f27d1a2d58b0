package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// AnthropicConfig configures the cloud tier.
type AnthropicConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxTokens     int
	MaxIterations int
	// MaxRetries overrides the SDK retry count; 0 keeps the default, negative disables retries.
	MaxRetries int
}

type toolCall struct {
	id    string
	name  string
	input map[string]interface{}
}

// Anthropic wraps the Anthropic SDK in a multi-turn tool-calling loop.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	maxIter   int
	catalog   Catalog
}

// NewAnthropic creates an adapter backed by Anthropic Claude or a compatible endpoint.
func NewAnthropic(cfg AnthropicConfig, catalog Catalog) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-6"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	switch {
	case cfg.MaxRetries > 0:
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	case cfg.MaxRetries < 0:
		opts = append(opts, option.WithMaxRetries(0))
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		maxIter:   cfg.MaxIterations,
		catalog:   catalog,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

// GenerateChatResponse runs the tool loop until stop_reason is no longer
// tool_use. The tool results before the last round carry a request for a
// final answer, and tool calls in that round are ignored.
func (a *Anthropic) GenerateChatResponse(ctx context.Context, messages []Message, allowedTools []string, cc Context) (*Response, error) {
	ctx = scoped(ctx, cc)
	tb := newToolbox(ctx, a.catalog, allowedTools)

	toolParams := make([]anthropic.ToolUnionUnionParam, 0, len(tb.order))
	for _, t := range tb.order {
		toolParams = append(toolParams, anthropic.ToolParam{
			Name:        anthropic.String(t.Name),
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.F[interface{}](t.InputSchema.Map()),
		})
	}

	var system string
	var msgs []anthropic.MessageParam
	for _, m := range conversation(messages, cc) {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	out := &Response{}
	for iter := 0; iter < a.maxIter; iter++ {
		final := iter == a.maxIter-1 && iter > 0

		params := anthropic.MessageNewParams{
			Model:     anthropic.F(anthropic.Model(a.model)),
			MaxTokens: anthropic.F(int64(a.maxTokens)),
			Messages:  anthropic.F(msgs),
		}
		// tools stay declared on the final round because msgs holds tool blocks
		if len(toolParams) > 0 {
			params.Tools = anthropic.F(toolParams)
		}
		if system != "" {
			params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(system)})
		}

		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return nil, transportError(ctx, a.Name(), fmt.Errorf("LLM call failed: %w", err))
		}

		var text string
		var pending []toolCall
		for _, block := range resp.Content {
			switch b := block.AsUnion().(type) {
			case anthropic.TextBlock:
				text += b.Text
			case anthropic.ToolUseBlock:
				var input map[string]interface{}
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, malformed(a.Name(), fmt.Errorf("tool %s input: %w", b.Name, err))
				}
				pending = append(pending, toolCall{id: b.ID, name: b.Name, input: input})
			}
		}

		log.Debug().
			Int("iter", iter).
			Str("stop_reason", string(resp.StopReason)).
			Str("text_preview", preview(text)).
			Int("tool_calls", len(pending)).
			Msg("anthropic iteration")

		if resp.StopReason != "tool_use" || len(pending) == 0 || final {
			out.Message = text
			out.Success = true
			return out, nil
		}

		msgs = append(msgs, resp.ToParam())
		var results []anthropic.ContentBlockParamUnion
		for _, c := range pending {
			tr := tb.run(ctx, c.name, c.input)
			out.ToolResults = append(out.ToolResults, tr)
			results = append(results, anthropic.NewToolResultBlock(c.id, tr.Output, tr.IsError))
		}
		if iter+1 == a.maxIter-1 {
			results = append(results, anthropic.NewTextBlock(finalAnswerPrompt))
		}
		msgs = append(msgs, anthropic.NewUserMessage(results...))
	}

	out.Message = fmt.Sprintf("no final answer after %d iterations", a.maxIter)
	return out, nil
}
