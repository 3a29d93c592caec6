package log

import (
	"strings"
)

// sensitiveKeywords marks log keys whose values must be masked. DSNs get
// dedicated handling because only the password segment is sensitive.
var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"token", "secret", "auth",
	"credential", "api_key", "apikey",
	"webhook_url",
}

// SanitizeField checks if the key contains sensitive keywords and sanitizes the value
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)

	if strings.Contains(lowerKey, "dsn") || strings.Contains(lowerKey, "source") {
		return sanitizeDSN(value)
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return sanitizeSecret(value)
		}
	}

	return value
}

// sanitizeSecret masks a secret showing only first 4 and last 4 characters.
func sanitizeSecret(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// sanitizeDSN masks the password segment of a user:password@host DSN. A
// value without that shape is returned unchanged.
func sanitizeDSN(value string) string {
	at := strings.Index(value, "@")
	if at < 0 {
		return value
	}
	colon := strings.Index(value[:at], ":")
	if colon < 0 {
		return value
	}
	return value[:colon+1] + "****" + value[at:]
}
