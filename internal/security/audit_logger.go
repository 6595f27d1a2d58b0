package security

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// AuditLogger records agent invocations with hashed message and key.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// InvocationEvent describes one routed request.
type InvocationEvent struct {
	Message        string
	APIKey         string
	OrganizationID string
	Agent          string
	Tier           string
	ToolsUsed      []string
	Planned        int
	DurationMs     int64
	Err            error
}

// LogInvocation writes an invocation audit event.
func (a *AuditLogger) LogInvocation(e InvocationEvent) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "agent_audit").
		Str("message_hash", shortHash(e.Message)).
		Str("api_key_hash", shortHash(e.APIKey)).
		Str("organization", e.OrganizationID).
		Str("agent", e.Agent).
		Str("tier", e.Tier).
		Strs("tools_used", e.ToolsUsed).
		Int("planned_actions", e.Planned).
		Int64("execution_time_ms", e.DurationMs).
		Bool("success", e.Err == nil)
	if e.Err != nil {
		evt = evt.Str("error", e.Err.Error())
	}
	evt.Msg("audit")
}

// LogRejected records a message refused before routing.
func (a *AuditLogger) LogRejected(message, apiKey, reason string) {
	if !a.enabled {
		return
	}
	log.Warn().
		Str("event", "agent_rejected").
		Str("message_hash", shortHash(message)).
		Str("api_key_hash", shortHash(apiKey)).
		Str("reason", reason).
		Msg("audit")
}

func shortHash(s string) string {
	if s == "" {
		return ""
	}
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}
