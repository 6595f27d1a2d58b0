package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe      = regexp.MustCompile(`(?i)email`)
	phoneRe      = regexp.MustCompile(`(?i)phone|mobile`)
	ssnRe        = regexp.MustCompile(`(?i)ssn|social_security`)
	creditCardRe = regexp.MustCompile(`(?i)credit_card|card_number`)
	secretRe     = regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`)
)

// DataMasker masks sensitive fields in tool output before it is handed to
// a model provider.
type DataMasker struct {
	sensitive []string
}

func NewDataMasker(sensitiveFields []string) *DataMasker {
	lower := make([]string, len(sensitiveFields))
	for i, f := range sensitiveFields {
		lower[i] = strings.ToLower(f)
	}
	return &DataMasker{sensitive: lower}
}

// MaskRows returns masked copies of rows.
func (m *DataMasker) MaskRows(rows []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = m.Mask(row)
	}
	return out
}

// Mask returns a copy of doc with sensitive keys masked at any depth.
func (m *DataMasker) Mask(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = m.maskField(k, v)
	}
	return out
}

func (m *DataMasker) maskField(key string, v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return m.Mask(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = m.maskField(key, x)
		}
		return out
	}
	if !m.isSensitive(key) {
		return v
	}
	return maskValue(key, fmt.Sprintf("%v", v))
}

func (m *DataMasker) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range m.sensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return emailRe.MatchString(key) || phoneRe.MatchString(key) ||
		ssnRe.MatchString(key) || creditCardRe.MatchString(key) || secretRe.MatchString(key)
}

func maskValue(key, val string) string {
	switch {
	case emailRe.MatchString(key):
		return maskEmail(val)
	case phoneRe.MatchString(key):
		return "***-***-" + lastDigits(val, "****")
	case ssnRe.MatchString(key):
		return "***-**-****"
	case creditCardRe.MatchString(key):
		return "****-****-****-" + lastDigits(val, "****")
	default:
		return "***"
	}
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return fmt.Sprintf("%s***@***.%s", local, ext)
}

// lastDigits returns the last four digits of s, or fallback if it has fewer.
func lastDigits(s, fallback string) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) < 4 {
		return fallback
	}
	return string(digits[len(digits)-4:])
}
