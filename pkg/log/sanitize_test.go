package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSanitizeField_MasksSecrets verifies secret-bearing keys are masked
// while ordinary fields pass through untouched.
func TestSanitizeField_MasksSecrets(t *testing.T) {
	assert.Equal(t, "supe***********word", SanitizeField("password", "supersecretpassword"))
	assert.Equal(t, "sk-l*******4567", SanitizeField("api_key", "sk-live-1234567"))
	assert.Equal(t, "plex", SanitizeField("target", "plex"))
	assert.Equal(t, "on-battery", SanitizeField("state", "on-battery"))
}

// TestSanitizeField_ShortSecrets verifies short secrets never leak more
// than their edges.
func TestSanitizeField_ShortSecrets(t *testing.T) {
	assert.Equal(t, "a******h", SanitizeField("token", "abcdefgh"))
	assert.Equal(t, "**", SanitizeField("token", "ab"))
	assert.Equal(t, "", SanitizeField("token", ""))
}

// TestSanitizeField_MasksDSNPassword verifies only the password segment of
// a DSN is replaced.
func TestSanitizeField_MasksDSNPassword(t *testing.T) {
	got := SanitizeField("data.database.source", "labsentry:hunter2@tcp(127.0.0.1:3306)/labsentry")
	assert.Equal(t, "labsentry:****@tcp(127.0.0.1:3306)/labsentry", got)

	// A DSN without a password segment is left alone
	assert.Equal(t, "tcp(127.0.0.1:3306)/labsentry", SanitizeField("dsn", "tcp(127.0.0.1:3306)/labsentry"))
}

// TestSanitizeField_KeyMatchIsCaseInsensitive verifies mixed-case keys
// still trigger masking.
func TestSanitizeField_KeyMatchIsCaseInsensitive(t *testing.T) {
	assert.NotEqual(t, "verysecretvalue", SanitizeField("API_Key", "verysecretvalue"))
	assert.NotEqual(t, "verysecretvalue", SanitizeField("WebhookURL", "verysecretvalue"))
}

// TestGenerateRequestID verifies ids are 10 chars and unique enough to
// tell requests apart.
func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		assert.Len(t, id, 10)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

// TestRequestContext_RoundTrip verifies the request context travels through
// a context.Context and degrades to a placeholder when absent.
func TestRequestContext_RoundTrip(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "req1234567")

	assert.Equal(t, "req1234567", GetRequestID(ctx))
	assert.False(t, GetRequestContext(ctx).StartTime.IsZero())

	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}
