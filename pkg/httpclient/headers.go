package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// parseRateLimitHeaders extracts throttling hints from standard headers.
// Retry-After may be either a delay in seconds or an HTTP date.
func parseRateLimitHeaders(h http.Header) RateLimitInfo {
	var info RateLimitInfo

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(v); err == nil {
			info.RetryAfter = time.Until(t)
		}
	}

	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.ResetTime = epoch
		}
	}

	return info
}
