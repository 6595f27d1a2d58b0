package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL is wrapped by every SQLValidator rejection.
var ErrUnsafeSQL = errors.New("unsafe SQL")

var sqlDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|TRUNCATE|MERGE|EXECUTE)\s+`),
	regexp.MustCompile(`(?i);\s*EXEC\s*\(?`),
	regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`), // UNION ALL SELECT stays allowed
	regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b|\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\b(BENCHMARK|SLEEP)\s*\(|\bWAITFOR\s+DELAY\b`),
	regexp.MustCompile(`'.*--`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`/\*.*?\*/`),
	regexp.MustCompile(`(?i)\b(or|and)\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+'1'\s*=\s*'1'`),
}

// SQLValidator only lets single read-only queries through.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns an error wrapping ErrUnsafeSQL, or nil if sql may run.
func (v *SQLValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: SQL cannot be empty", ErrUnsafeSQL)
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("%w: only SELECT queries are allowed", ErrUnsafeSQL)
	}

	for _, p := range sqlDangerousPatterns {
		if p.MatchString(sql) {
			return fmt.Errorf("%w: injection pattern detected: %s", ErrUnsafeSQL, p.String())
		}
	}
	return nil
}
