// Package ratelimit provides per-key attempt counting with lockout for the
// money-movement entry points. Failed operations increment a key's counter;
// successful operations reset it. Once a key reaches its attempt budget inside
// the window it locks out for a configured duration regardless of further
// increments.
package ratelimit

import (
	"context"
	"time"
)

// Config holds the counting window and lockout duration shared by all keys.
type Config struct {
	Window          time.Duration
	LockoutDuration time.Duration
}

// Limiter is the attempt-counter contract. Keys are identity+action
// composites, e.g. "transfer:<account>" or "verify:<device>".
type Limiter interface {
	// CheckLimit reports whether the key may proceed given maxAttempts. It
	// transitions the key into lockout when the budget is exhausted.
	CheckLimit(ctx context.Context, key string, maxAttempts int) (bool, error)

	// Increment records a failed attempt and returns the count in the current
	// window. It never resets the counter.
	Increment(ctx context.Context, key string) (int64, error)

	// ResetLimit clears the counter and any lockout for the key.
	ResetLimit(ctx context.Context, key string) error

	// GetLockoutTime returns the instant the key unlocks, or nil when the key
	// is not locked out.
	GetLockoutTime(ctx context.Context, key string) (*time.Time, error)
}
