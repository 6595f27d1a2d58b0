package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/agent"
	"github.com/chebacca/agentcore/internal/config"
	"github.com/chebacca/agentcore/internal/handler"
	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/security"
	"github.com/chebacca/agentcore/internal/service"
	"github.com/chebacca/agentcore/internal/tools"
)

// Stack holds the long-lived components shared by the HTTP server and the CLI.
type Stack struct {
	Registry  *tools.Registry
	Router    *agent.Router
	Templates *planner.Templates

	deps    map[string]handler.HealthChecker
	closers []func()
}

// NewStack connects the configured tool backends and builds the registry,
// provider tiers and agents. Backends that fail to connect are logged and
// left out; a missing provider tier is skipped unless it was the only one.
func NewStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	s := NewToolStack(ctx, cfg)

	// ─── Provider tiers ─────────────────────────────────────────────────────────
	factory := provider.NewFactory(provider.Settings{
		Ollama: provider.OllamaConfig{
			Host:          cfg.OllamaHost,
			Model:         cfg.OllamaModel,
			Timeout:       cfg.TierTimeout(),
			MaxIterations: cfg.MaxIterations,
		},
		Anthropic: provider.AnthropicConfig{
			APIKey:        cfg.AnthropicAPIKey,
			Model:         cfg.AnthropicModel,
			BaseURL:       cfg.AnthropicBaseURL,
			MaxTokens:     cfg.MaxTokens,
			MaxIterations: cfg.MaxIterations,
		},
		Remote: provider.RemoteConfig{
			URL:     cfg.RemoteURL,
			APIKey:  cfg.RemoteAPIKey,
			Timeout: cfg.TierTimeout(),
		},
	}, s.Registry)

	var adapters []provider.Adapter
	for _, kind := range cfg.ProviderTiers {
		a, err := factory.Create(provider.Kind(kind))
		if err != nil {
			log.Warn().Err(err).Str("provider", kind).Msg("provider tier skipped")
			continue
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		s.Close()
		return nil, fmt.Errorf("no usable provider tier in %v", cfg.ProviderTiers)
	}

	// ─── Agents ─────────────────────────────────────────────────────────────────
	router, err := agent.NewRouter(agent.RouterConfig{
		MaxFallbacks: cfg.MaxFallbacks,
		Budget:       cfg.Budget(),
		TierTimeout:  cfg.TierTimeout(),
		Threshold:    cfg.ClassifierThreshold,
	}, adapters,
		agent.NewGeneralAgent(s.Registry),
		agent.NewQueryAgent(s.Registry),
		agent.NewActionAgent(s.Registry),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Router = router

	// ─── Workflow templates ─────────────────────────────────────────────────────
	if cfg.TemplatesDir != "" {
		s.Templates, err = planner.LoadTemplatesDir(cfg.TemplatesDir)
	} else {
		s.Templates, err = planner.DefaultTemplates()
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}

	tiers := make([]string, 0, len(router.Tiers()))
	for _, t := range router.Tiers() {
		tiers = append(tiers, t.Name+"="+t.Adapter.Name())
	}
	log.Info().
		Bool("postgres_enabled", s.deps["postgres"] != nil).
		Bool("elasticsearch_enabled", s.deps["elasticsearch"] != nil).
		Bool("bigquery_enabled", s.deps["bigquery"] != nil).
		Strs("tiers", tiers).
		Int("max_fallbacks", cfg.MaxFallbacks).
		Dur("budget", cfg.Budget()).
		Int("templates", len(s.Templates.List())).
		Msg("agent stack ready")

	return s, nil
}

// NewToolStack connects only the tool backends and the registry over them.
func NewToolStack(ctx context.Context, cfg *config.Config) *Stack {
	s := &Stack{deps: map[string]handler.HealthChecker{
		"postgres":      nil,
		"elasticsearch": nil,
		"bigquery":      nil,
	}}

	var masker *security.DataMasker
	if cfg.EnableDataMasking {
		masker = security.NewDataMasker(cfg.SensitiveColumns)
	}

	// ─── Tool sources ───────────────────────────────────────────────────────────
	var sources []tools.Source

	if cfg.PostgresDSN != "" {
		store, err := service.NewProjectStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("project store unavailable")
		} else {
			s.deps["postgres"] = store
			s.closers = append(s.closers, store.Close)
			sources = append(sources, tools.NewProjectSource(store))
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set - project tools disabled")
	}

	if len(cfg.ElasticsearchAddresses) > 0 {
		svc, err := service.NewSearchService(service.SearchConfig{
			Addresses:       cfg.ElasticsearchAddresses,
			Username:        cfg.ElasticsearchUser,
			Password:        cfg.ElasticsearchPassword,
			VerifyCerts:     cfg.ElasticsearchVerifyCerts,
			MaxRetries:      cfg.ElasticsearchMaxRetries,
			AllowedPatterns: cfg.ESAllowedPatterns,
		})
		if err != nil {
			log.Warn().Err(err).Msg("search service unavailable")
		} else {
			s.deps["elasticsearch"] = svc
			sources = append(sources, tools.NewSearchSource(svc, masker))
		}
	}

	if cfg.GCPProjectID != "" && cfg.BigQueryDataset != "" {
		svc, err := service.NewAnalyticsService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryDataset, cfg.MaxQueryBytesProcessed)
		if err != nil {
			log.Warn().Err(err).Msg("analytics service unavailable")
		} else {
			s.deps["bigquery"] = svc
			s.closers = append(s.closers, func() {
				if err := svc.Close(); err != nil {
					log.Warn().Err(err).Msg("error closing BigQuery client")
				}
			})
			sources = append(sources, tools.NewAnalyticsSource(svc, masker))
		}
	}

	if len(sources) == 0 {
		log.Warn().Msg("WARNING: no tool sources configured - agents will answer without tools")
	}
	s.Registry = tools.NewRegistry(sources...)
	return s
}

// Close releases backend connections.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
