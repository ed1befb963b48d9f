package unitfile

import (
	"fmt"
	"slices"
	"strings"
)

// sensitiveKeywords identifies environment variable names that carry secrets.
var sensitiveKeywords = []string{
	"password", "secret", "key", "token", "auth", "credential",
	"private", "cert", "ssl", "tls",
}

// IsSensitive reports whether an environment variable name looks like it
// holds a secret.
func IsSensitive(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

// Redact masks the value of a sensitive KEY=VALUE pair for display.
func Redact(pair string) string {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || !IsSensitive(key) {
		return pair
	}
	if len(value) <= 4 {
		return key + "=[REDACTED]"
	}
	return key + "=" + value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// AuditEnv returns a finding for every sensitive variable whose value looks
// weak: a well-known default, fewer than eight characters or mostly one
// repeated character.
func AuditEnv(env []string) []string {
	testValues := []string{"password", "secret", "123456", "admin", "test", "default", "changeme"}

	var findings []string
	for _, pair := range env {
		key, value, _ := strings.Cut(pair, "=")
		if !IsSensitive(key) {
			continue
		}

		lowerValue := strings.ToLower(strings.TrimSpace(value))
		switch {
		case slices.Contains(testValues, lowerValue):
			findings = append(findings, fmt.Sprintf("%s appears to contain a test or default value", key))
		case len(value) < 8:
			findings = append(findings, fmt.Sprintf("%s is short (%d characters)", key, len(value)))
		case isRepeatingPattern(value):
			findings = append(findings, fmt.Sprintf("%s has low entropy", key))
		}
	}
	return findings
}

// isRepeatingPattern checks if a string consists mostly of one character.
func isRepeatingPattern(s string) bool {
	if len(s) < 4 {
		return false
	}

	charCount := make(map[rune]int)
	for _, r := range s {
		charCount[r]++
	}

	threshold := len(s) / 2
	for _, count := range charCount {
		if count > threshold {
			return true
		}
	}
	return false
}
