// Package redact provides utilities for scrubbing sensitive values from
// strings before they are logged. The bot handles user-supplied generation-API
// keys and two kinds of bearer tokens, any of which can surface inside error
// messages from external calls.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
)

// Precompiled patterns for the credential shapes this application touches.
var (
	// OpenAI-style API keys (sk-..., sk-proj-...).
	openAIKeyRegex = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}`)

	// JWTs: three base64url segments, the first two starting with eyJ.
	jwtTokenRegex = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// Bearer scheme followed by any token material.
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`)

	// Key-value shaped credentials (api_key=..., token: ...).
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// Database connection strings with inline credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := openAIKeyRegex.ReplaceAllString(input, RedactedKeyPlaceholder)
	result = jwtTokenRegex.ReplaceAllString(result, RedactedTokenPlaceholder)
	result = bearerRegex.ReplaceAllString(result, RedactedTokenPlaceholder)
	result = apiKeyRegex.ReplaceAllString(result, "${1}${2}"+RedactedKeyPlaceholder)
	result = dbConnRegex.ReplaceAllString(result, RedactedCredentialPlaceholder+"@")

	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
