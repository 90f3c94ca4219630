package models

import (
	"math"
	"time"
)

// EndpointClass groups routes that share one limit.
type EndpointClass string

const ClassDonate EndpointClass = "donate"

// Limit allows Requests per sliding Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (r *Result) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Key is the bucket key for a client of an endpoint class.
func Key(class EndpointClass, clientIP string) string {
	return "fasela:ratelimit:" + string(class) + ":" + clientIP
}

type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
