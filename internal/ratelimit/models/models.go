// Package models holds the rate limiting value types.
package models

import (
	"math"
	"strings"
	"time"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult is the outcome of one limiter check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; set when denied
	Degraded   bool
}

// NewResult fills in the derived fields of a sliding-window decision.
// count is the number of requests in the window including this one if it
// was admitted; oldest is the earliest admitted request still in the window.
func NewResult(allowed bool, limit, count int, oldest, now time.Time, window time.Duration) *RateLimitResult {
	if oldest.IsZero() {
		oldest = now
	}
	resetAt := oldest.Add(window)
	res := &RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		res.Remaining = 0
		res.RetryAfter = max(int(math.Ceil(resetAt.Sub(now).Seconds())), 1)
	}
	return res
}

const keyPrefix = "contactlink:rl:"

// NewIPKey builds the bucket key for a client IP.
func NewIPKey(ip, endpoint string) string {
	return keyPrefix + "ip:" + SanitizeKeySegment(ip) + ":" + SanitizeKeySegment(endpoint)
}

// SanitizeKeySegment escapes the key delimiter so caller-controlled values
// cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RateLimitExceededResponse is the API response when the limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}
