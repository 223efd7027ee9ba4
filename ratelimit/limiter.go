// Package ratelimit throttles repeated requests per key within a fixed window.
package ratelimit

import (
	"context"
	"strings"
)

// Limiter admits at most one attempt per key per window.
type Limiter interface {
	// Allow records an attempt for key and reports whether it was admitted.
	Allow(ctx context.Context, key string) (bool, error)
}

// Key builds a limiter key from a scope and an email, normalising the email so
// case and surrounding spaces cannot be used to dodge the window.
func Key(scope, email string) string {
	return scope + ":" + strings.ToLower(strings.TrimSpace(email))
}
