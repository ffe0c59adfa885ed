// Package logging keeps credentials used by herald's adapters out of log
// output. Confluence and Jira API tokens, SMTP passwords and bearer tokens
// are redacted before anything reaches the log file.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// sensitivePatterns match credential formats herald handles.
//
//nolint:gochecknoglobals // compiled once
var sensitivePatterns = []*regexp.Regexp{
	// Atlassian cloud API tokens
	regexp.MustCompile(`ATATT[a-zA-Z0-9_=-]{20,}`),

	// Authorization headers
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?(basic|bearer)\s+[a-zA-Z0-9+/=._-]{8,}`),

	// Bare bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),

	// Credentials embedded in URLs
	regexp.MustCompile(`(?i)\b(https?|smtps?)://[^\s:/@]+:[^\s/@]+@`),

	// SMTP AUTH PLAIN/LOGIN exchanges
	regexp.MustCompile(`(?i)AUTH\s+(PLAIN|LOGIN)\s+[a-zA-Z0-9+/=]{8,}`),

	// key=value and key: value assignments
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|api[_-]?token|api[_-]?key|smtp[_-]?pass)\s*[:=]\s*["']?[^\s"',}]{6,}["']?`),
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=._-]{24,}["']?`),
}

// sensitiveFieldNames are redacted whatever their value looks like.
//
//nolint:gochecknoglobals // lookup table
var sensitiveFieldNames = map[string]struct{}{
	"password":      {},
	"passwd":        {},
	"secret":        {},
	"token":         {},
	"api_token":     {},
	"apitoken":      {},
	"api_key":       {},
	"apikey":        {},
	"authorization": {},
	"bearer":        {},
	"credential":    {},
	"credentials":   {},
	"smtp_pass":     {},
}

// SensitiveDataHook flags log events whose message looks like it carries a
// credential. zerolog hooks cannot rewrite the message; the filtering writer
// does the actual redaction.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any credential pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every credential match in value with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveFieldName reports whether a field name denotes a credential.
// A name matches when it equals a known name or contains one as a whole
// word separated by '_' or '-' (smtp_password, confluence-api-token).
func IsSensitiveFieldName(fieldName string) bool {
	name := strings.ToLower(fieldName)
	if _, ok := sensitiveFieldNames[name]; ok {
		return true
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i := range words {
		if _, ok := sensitiveFieldNames[words[i]]; ok {
			return true
		}
		if i+1 < len(words) {
			if _, ok := sensitiveFieldNames[words[i]+"_"+words[i+1]]; ok {
				return true
			}
		}
	}
	return false
}

// RedactIfSensitive returns RedactedValue for credential fields and the
// pattern-filtered value otherwise.
//
//	log.Debug().Str("token_env", logging.RedactIfSensitive("token_env", v)).Msg("adapter configured")
func RedactIfSensitive(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// FilteringWriter redacts credentials from everything written through it.
// The CLI wraps the rotating log file with it.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write filters p and writes it to the wrapped writer. It reports len(p) on
// success so callers never see a short write caused by redaction.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
