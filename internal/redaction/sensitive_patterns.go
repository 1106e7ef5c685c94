// Package redaction scrubs credentials from log records.
package redaction

import (
	"regexp"
)

// SensitivePatterns holds compiled patterns that mark log attribute keys as
// credentials.
type SensitivePatterns struct {
	CredentialPatterns []*regexp.Regexp
}

// DefaultSensitivePatterns returns the patterns used by DefaultConfig.
func DefaultSensitivePatterns() *SensitivePatterns {
	return &SensitivePatterns{
		CredentialPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(password|passwd|secret|token|api_key)`),
			regexp.MustCompile(`(?i)authorization`),
		},
	}
}

// IsSensitiveKey reports whether a log attribute key names a credential.
func (sp *SensitivePatterns) IsSensitiveKey(key string) bool {
	for _, pattern := range sp.CredentialPatterns {
		if pattern.MatchString(key) {
			return true
		}
	}
	return false
}

// DefaultKeyValuePatterns returns keys whose "key=value" occurrences inside
// text are redacted.
func DefaultKeyValuePatterns() []string {
	return []string{
		"password",
		"token",
		"secret",
		"api_key",
	}
}
