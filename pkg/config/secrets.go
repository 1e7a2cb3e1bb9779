package config

import "regexp"

// secretPatterns matches values that look like credentials. Grounded on the
// teacher's pkg/core/secrets.go detector, trimmed to the provider-agnostic
// subset relevant to a single GOOGLE_AI_STUDIO_API_KEY-shaped credential
// surface: long opaque tokens and bearer-style headers, since this system
// has no user-supplied request bodies to scan.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(sk|pk|api|key|token|secret|password|passwd|pwd|auth|bearer)[-_]?[a-zA-Z0-9]{8,}`),
	regexp.MustCompile(`(?i)^bearer\s+[a-zA-Z0-9_\-\.]+`),
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), // Google API key shape
	regexp.MustCompile(`^[a-zA-Z0-9_\-]{32,}$`),   // long opaque token
}

// sensitiveKeyPatterns flags config/env keys whose values should be
// redacted regardless of shape.
var sensitiveKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)`),
	regexp.MustCompile(`(?i)(secret|password|passwd|pwd)`),
	regexp.MustCompile(`(?i)(auth[_-]?token|bearer[_-]?token)`),
}

// IsSecretValue reports whether value looks like a credential.
func IsSecretValue(value string) bool {
	if len(value) < 8 {
		return false
	}
	for _, p := range secretPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// IsSecretKey reports whether key is a name that conventionally holds a
// credential (e.g. "GOOGLE_AI_STUDIO_API_KEY").
func IsSecretKey(key string) bool {
	for _, p := range sensitiveKeyPatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// MaskSecret returns a masked version of a secret value, safe to embed in a
// trace event: "****" for values of 8 characters or fewer, the first 2 and
// last 2 characters for values of 9-11 characters, and the first 4 and last
// 4 characters otherwise.
func MaskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	if len(value) < 12 {
		return value[:2] + "..." + value[len(value)-2:]
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// Redact returns value unchanged unless key or value look like a secret, in
// which case a masked form is returned. The orchestrator hands it to
// trace.NewLog, so every string value in a trace event's data map passes
// through it before hitting disk; manifest writes are not redacted.
func Redact(key, value string) string {
	if IsSecretKey(key) || IsSecretValue(value) {
		return MaskSecret(value)
	}
	return value
}

// RedactMap applies Redact to every string value in a shallow map, returning
// a new map safe to serialize into an artifact.
func RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = Redact(k, s)
			continue
		}
		out[k] = v
	}
	return out
}
