package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxMessageLength bounds an agent request message.
const DefaultMaxMessageLength = 4000

// ErrInvalidMessage is wrapped by every MessageValidator rejection.
var ErrInvalidMessage = errors.New("invalid message")

// injectionPatterns flag shell commands, path probing and attempts to
// override the system prompt.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-`),
	regexp.MustCompile(`(?i)\bcurl\s+`),
	regexp.MustCompile(`(?i)\bwget\s+`),
	regexp.MustCompile(`(?i)\bbash\s+-`),
	regexp.MustCompile(`(?i)\bsudo\s+`),

	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`/etc/(passwd|shadow)`),
	regexp.MustCompile(`id_rsa|\.ssh/`),

	regexp.MustCompile(`(?i)\b(eval|exec|system|popen|subprocess)\s*\(`),
	regexp.MustCompile(`(?i)__import__|os\.system`),

	regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior)\s+instructions`),
	regexp.MustCompile(`(?i)(new|change)\s+context\s*:`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+system\s+prompt`),
}

// MessageValidator screens request messages before they reach a provider.
type MessageValidator struct {
	maxLen int
}

func NewMessageValidator(maxLen int) *MessageValidator {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	return &MessageValidator{maxLen: maxLen}
}

// Validate returns an error wrapping ErrInvalidMessage when msg is empty,
// too long or matches an injection pattern.
func (v *MessageValidator) Validate(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidMessage)
	}
	if len(msg) > v.maxLen {
		return fmt.Errorf("%w: message too long: %d chars (max %d)", ErrInvalidMessage, len(msg), v.maxLen)
	}
	for _, p := range injectionPatterns {
		if p.MatchString(msg) {
			return fmt.Errorf("%w: disallowed pattern %s", ErrInvalidMessage, p.String())
		}
	}
	return nil
}
