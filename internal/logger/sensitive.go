package logger

import (
	"regexp"
	"strings"
)

// SensitiveDataPatterns match credentials that must never reach a log line
var SensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((access_token|refresh_token|password|passwd|secret|api[_-]?key)["']?\s*[:=]\s*["']?)([^"'&;,\s]{3,})`),
	regexp.MustCompile(`([a-z][a-z0-9+.\-]*://[^:@/\s]+:)([^@/\s]+)(@)`),
}

// SensitiveKeywords mark field keys whose values are always redacted
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "authorization", "api_key", "apikey", "cookie",
}

// RedactSensitiveData replaces credentials embedded in free text with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	input = SensitiveDataPatterns[0].ReplaceAllString(input, "${1}[REDACTED]")
	input = SensitiveDataPatterns[1].ReplaceAllString(input, "${1}[REDACTED]")
	input = SensitiveDataPatterns[2].ReplaceAllString(input, "${1}[REDACTED]${3}")
	return input
}

// RedactSensitiveValue hides a secret entirely, keeping only whether it was set.
func RedactSensitiveValue(value string) string {
	if value == "" {
		return ""
	}
	return "[REDACTED]"
}

// IsSensitiveKey reports whether a field or header name carries a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
