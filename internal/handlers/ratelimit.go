package handlers

import (
	"net/http"

	"github.com/vidcms/backend/internal/middleware"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest reports whether the caller may proceed and writes a 429 when not.
func allowRequest(w http.ResponseWriter, r *http.Request, limiter RateLimiter, scope string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(scope + ":" + middleware.ClientIP(r)) {
		return true
	}
	middleware.TooManyRequests(w)
	return false
}
