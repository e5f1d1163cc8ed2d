package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		message string
		limited bool
		wait    time.Duration
	}{
		{
			name:    "marker with retry hint",
			message: "Rate limit exceeded. Please retry after 45 seconds.",
			limited: true,
			wait:    45 * time.Second,
		},
		{
			name:    "retry in form",
			message: "too many requests, retrying in 5s",
			limited: true,
			wait:    5 * time.Second,
		},
		{
			name:    "marker without hint",
			message: "429 Too Many Requests",
			limited: true,
			wait:    defaultRetryAfter,
		},
		{
			name:    "quota form",
			message: "quota exceeded for this project",
			limited: true,
			wait:    defaultRetryAfter,
		},
		{
			name:    "plain failure",
			message: "upstream database unavailable",
			limited: false,
		},
		{
			name:    "empty message",
			message: "",
			limited: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rle, ok := ParseRateLimit("Legal", tt.message)
			assert.Equal(t, tt.limited, ok)
			if !tt.limited {
				return
			}
			require.NotNil(t, rle)
			assert.Equal(t, "Legal", rle.Agent)
			assert.Equal(t, tt.wait, rle.RetryAfter)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	rle := &RateLimitError{Agent: "Legal", RetryAfter: 10 * time.Second, Message: "slow down"}
	assert.Contains(t, rle.Error(), "Legal")
	assert.Contains(t, rle.Error(), "10s")

	perr := &ProtocolError{Agent: "Finance", Message: "ledger locked"}
	assert.Contains(t, perr.Error(), "Finance")
	assert.Contains(t, perr.Error(), "ledger locked")
}
