package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorRecoverability(t *testing.T) {
	cases := []struct {
		name        string
		err         *Error
		recoverable bool
	}{
		{"auth", AuthError("bad key"), false},
		{"config", ConfigError("missing key"), false},
		{"rate limit", RateLimitError("slow down", time.Second), true},
		{"timeout", TimeoutError("deadline", 30 * time.Second), true},
		{"network recoverable", NetworkError("reset", true, nil), true},
		{"network fatal", NetworkError("dns", false, nil), false},
		{"api 400", APIError("bad request", 400), false},
		{"api 404", APIError("not found", 404), false},
		{"api 500", APIError("server error", 500), true},
		{"api 503", APIError("unavailable", 503), true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.recoverable, tc.err.IsRecoverable(), tc.name)
	}
}

func TestRetryAfterOnlySetForRateLimits(t *testing.T) {
	assert.Equal(t, 3*time.Second, RateLimitError("x", 3*time.Second).RetryAfter())
	assert.Zero(t, APIError("x", 500).RetryAfter())
	assert.Zero(t, TimeoutError("x", time.Second).RetryAfter())
}

func TestErrorMessageIncludesStatusCode(t *testing.T) {
	err := APIError("upstream exploded", 502)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}
