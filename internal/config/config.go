package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loaded from defaults, an optional YAML file named by
// AGENTCORE_CONFIG, and environment overrides, in that order.
type Config struct {
	// Server
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	APIPrefix   string `yaml:"api_prefix"`
	LogLevel    string `yaml:"log_level"`

	// CORS
	CORSOrigins []string `yaml:"cors_origins"`
	CORSMaxAge  int      `yaml:"cors_max_age"` // seconds

	// Auth
	APIKeyHeader string   `yaml:"api_key_header"`
	APIKeys      []string `yaml:"api_keys"`
	EnableAuth   bool     `yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Routing
	ProviderTiers       []string `yaml:"provider_tiers"` // fallback order
	MaxFallbacks        int      `yaml:"max_fallbacks"`  // -1 = all tiers
	BudgetSeconds       int      `yaml:"budget_seconds"` // shared by all attempts, 0 = none
	TierTimeoutSeconds  int      `yaml:"tier_timeout_seconds"`
	ClassifierThreshold int      `yaml:"classifier_threshold"`
	MaxIterations       int      `yaml:"max_iterations"`

	// Providers
	OllamaHost       string `yaml:"ollama_host"`
	OllamaModel      string `yaml:"ollama_model"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"` // override for a compatible proxy
	AnthropicModel   string `yaml:"anthropic_model"`
	MaxTokens        int    `yaml:"max_tokens"`
	RemoteURL        string `yaml:"remote_url"`
	RemoteAPIKey     string `yaml:"remote_api_key"`

	// Tool sources
	PostgresDSN string `yaml:"postgres_dsn"`

	ElasticsearchAddresses   []string `yaml:"elasticsearch_addresses"`
	ElasticsearchUser        string   `yaml:"elasticsearch_user"`
	ElasticsearchPassword    string   `yaml:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool     `yaml:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int      `yaml:"elasticsearch_max_retries"`
	ESAllowedPatterns        []string `yaml:"es_allowed_patterns"`

	GCPProjectID                 string `yaml:"gcp_project_id"`
	GoogleApplicationCredentials string `yaml:"google_application_credentials"`
	BigQueryDataset              string `yaml:"bigquery_dataset"`
	MaxQueryBytesProcessed       int64  `yaml:"max_query_bytes_processed"`

	// Planner
	TemplatesDir string `yaml:"templates_dir"`

	// Security
	MaxMessageLength   int      `yaml:"max_message_length"`
	EnableDataMasking  bool     `yaml:"enable_data_masking"`
	EnablePIIDetection bool     `yaml:"enable_pii_detection"`
	SensitiveColumns   []string `yaml:"sensitive_columns"`
	PIIKeywords        []string `yaml:"pii_keywords"`
	EnableAuditLogging bool     `yaml:"enable_audit_logging"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              slices.Clone(DefaultCORSOrigins),
		CORSMaxAge:               DefaultCORSMaxAge,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		ProviderTiers:            slices.Clone(DefaultProviderTiers),
		MaxFallbacks:             DefaultMaxFallbacks,
		BudgetSeconds:            DefaultBudgetSeconds,
		TierTimeoutSeconds:       DefaultTierTimeout,
		ClassifierThreshold:      DefaultThreshold,
		MaxIterations:            DefaultMaxIterations,
		OllamaHost:               DefaultOllamaHost,
		OllamaModel:              DefaultOllamaModel,
		AnthropicModel:           DefaultAnthropicModel,
		MaxTokens:                DefaultMaxTokens,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		MaxQueryBytesProcessed:   DefaultMaxQueryBytesProcessed,
		MaxMessageLength:         DefaultMaxMessageLength,
		EnableDataMasking:        true,
		EnablePIIDetection:       true,
		SensitiveColumns:         slices.Clone(DefaultSensitiveColumns),
		PIIKeywords:              slices.Clone(DefaultPIIKeywords),
		EnableAuditLogging:       true,
	}

	// file first, then the environment on top
	if path, ok := lookup("AGENTCORE_CONFIG"); ok {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first request.
func (c *Config) Validate() error {
	if len(c.ProviderTiers) == 0 {
		return fmt.Errorf("config: provider_tiers must list at least one provider")
	}
	for _, t := range c.ProviderTiers {
		switch t {
		case "ollama", "anthropic", "remote":
		default:
			return fmt.Errorf("config: unknown provider tier %q", t)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

// Budget is the latency budget shared by all provider attempts.
func (c *Config) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// TierTimeout bounds a single provider attempt.
func (c *Config) TierTimeout() time.Duration {
	return time.Duration(c.TierTimeoutSeconds) * time.Second
}

// loadFile reads a YAML config file. JSON files parse too, since JSON is a
// subset of YAML.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	envString("AGENTCORE_HOST", &cfg.Host)
	envInt("AGENTCORE_PORT", &cfg.Port)
	envString("AGENTCORE_ENV", &cfg.Environment)
	envString("AGENTCORE_LOG_LEVEL", &cfg.LogLevel)
	envList("AGENTCORE_CORS_ORIGINS", &cfg.CORSOrigins)
	envInt("AGENTCORE_CORS_MAX_AGE", &cfg.CORSMaxAge)
	envList("AGENTCORE_API_KEYS", &cfg.APIKeys)
	envBool("ENABLE_AUTH", &cfg.EnableAuth)
	envInt("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)

	envList("AGENTCORE_PROVIDER_TIERS", &cfg.ProviderTiers)
	envInt("AGENTCORE_MAX_FALLBACKS", &cfg.MaxFallbacks)
	envInt("AGENTCORE_BUDGET_SECONDS", &cfg.BudgetSeconds)
	envInt("AGENTCORE_TIER_TIMEOUT_SECONDS", &cfg.TierTimeoutSeconds)
	envString("AGENTCORE_TEMPLATES_DIR", &cfg.TemplatesDir)

	envString("OLLAMA_HOST", &cfg.OllamaHost)
	envString("OLLAMA_MODEL", &cfg.OllamaModel)
	envString("ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	envString("ANTHROPIC_BASE_URL", &cfg.AnthropicBaseURL)
	envString("ANTHROPIC_MODEL", &cfg.AnthropicModel)
	envString("AGENTCORE_REMOTE_URL", &cfg.RemoteURL)
	envString("AGENTCORE_REMOTE_API_KEY", &cfg.RemoteAPIKey)

	envString("DATABASE_URL", &cfg.PostgresDSN)
	envList("ELASTICSEARCH_ADDRESSES", &cfg.ElasticsearchAddresses)
	envString("ELASTICSEARCH_USER", &cfg.ElasticsearchUser)
	envString("ELASTICSEARCH_PASSWORD", &cfg.ElasticsearchPassword)
	envString("GCP_PROJECT_ID", &cfg.GCPProjectID)
	envString("GOOGLE_APPLICATION_CREDENTIALS", &cfg.GoogleApplicationCredentials)
	envString("BIGQUERY_DATASET", &cfg.BigQueryDataset)

	if v, ok := lookup("MAX_QUERY_BYTES_PROCESSED"); ok {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}

	envBool("ENABLE_DATA_MASKING", &cfg.EnableDataMasking)
	envBool("ENABLE_PII_DETECTION", &cfg.EnablePIIDetection)
	envBool("ENABLE_AUDIT_LOGGING", &cfg.EnableAuditLogging)
}

// lookup returns a non-empty environment value.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

// envInt ignores values that do not parse.
func envInt(key string, dst *int) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envList(key string, dst *[]string) {
	if v, ok := lookup(key); ok {
		*dst = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
