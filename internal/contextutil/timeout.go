package contextutil

import (
	"context"
	"time"
)

// WithTimeout returns parent unchanged when d <= 0; otherwise it bounds it by d.
// A nil parent is treated as context.Background().
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d)
}

// Seconds converts a stub timeout in whole seconds to a Duration.
func Seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
