package common

import (
	"net/url"
	"strings"
)

// MaskSecret masks sensitive strings for safe logging. Shows the first and
// last 4 characters for strings longer than 8 chars.
//
//	MaskSecret("")                       // "<not set>"
//	MaskSecret("short")                  // "***"
//	MaskSecret("myverylongsecretkey123") // "myve...y123"
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// secretKeyHints are substrings that, if found in a query parameter name,
// mark the value as something to redact before the URL is ever logged.
var secretKeyHints = []string{"token", "secret", "key", "password", "pass", "auth", "signature"}

// MaskURL returns u with any query parameters that look secret replaced by
// a masked value. Upstream client errors always log the redacted form —
// POS/finance/cloud URLs routinely carry session tokens in the query string.
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := parsed.Query()
	changed := false
	for key := range q {
		lower := strings.ToLower(key)
		for _, hint := range secretKeyHints {
			if strings.Contains(lower, hint) {
				q.Set(key, MaskSecret(q.Get(key)))
				changed = true
				break
			}
		}
	}
	if changed {
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

// IsSecretLike reports whether a config/env var name looks like it holds a
// credential, for log-field redaction at the configuration layer.
func IsSecretLike(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range secretKeyHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
