package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60
	DefaultCORSMaxAge         = 300

	DefaultMaxFallbacks  = 1
	DefaultBudgetSeconds = 180
	DefaultTierTimeout   = 90 // seconds
	DefaultMaxIterations = 8
	DefaultThreshold     = 1

	DefaultOllamaHost     = "http://localhost:11434"
	DefaultOllamaModel    = "qwen2.5:latest"
	DefaultAnthropicModel = "claude-sonnet-4-6"
	DefaultMaxTokens      = 4096

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchMaxRetries = 3

	DefaultMaxMessageLength = 4000
)

// DefaultProviderTiers is the fallback order: local first, then cloud.
var DefaultProviderTiers = []string{"ollama", "anthropic"}

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key", "salary",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "private key", "access token", "api key",
}
