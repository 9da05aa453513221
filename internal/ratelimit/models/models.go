package models

import "time"

// RateLimitResult is the outcome of one rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the whole seconds until another request would pass.
	RetryAfter int
	ResetAt    time.Time
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
