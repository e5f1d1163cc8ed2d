package orchestrator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrAgentNotFound marks a step whose agent could not be resolved
// against the session registry or the catalog. Not retried.
var ErrAgentNotFound = errors.New("agent not found")

// ErrPlannerLoopDetected marks the safety break that stops the planning
// loop when one agent keeps receiving retry tasks. It converts to a
// completed-with-warning outcome, never a crash.
var ErrPlannerLoopDetected = errors.New("planner loop detected")

// RateLimitError is a failure carrying a rate-limit signal parsed from
// a remote agent's failure message.
type RateLimitError struct {
	Agent      string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("agent %q rate limited (retry after %s): %s",
		e.Agent, e.RetryAfter, e.Message)
}

// ProtocolError is a remote agent's failed terminal state without a
// rate-limit signal.
type ProtocolError struct {
	Agent   string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("agent %q reported failure: %s", e.Agent, e.Message)
}

const defaultRetryAfter = 30 * time.Second

var (
	rateLimitMarkerRe = regexp.MustCompile(`(?i)rate.?limit|too many requests|quota exceeded|\b429\b`)
	retryAfterRe      = regexp.MustCompile(`(?i)retry(?:ing)?\s+(?:after|in)\s+(\d+)\s*s(?:econds?)?\b`)
)

// ParseRateLimit scans a failure message for a rate-limit marker and an
// embedded "retry after N seconds" hint. Without a hint the error
// carries a default wait.
func ParseRateLimit(agent, message string) (*RateLimitError, bool) {
	if message == "" || !rateLimitMarkerRe.MatchString(message) {
		return nil, false
	}

	retryAfter := defaultRetryAfter
	if m := retryAfterRe.FindStringSubmatch(message); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	return &RateLimitError{Agent: agent, RetryAfter: retryAfter, Message: message}, true
}
