// Package tilecache stores generated zone collections per grid tile so repeat
// viewport requests skip clustering.
package tilecache

import (
	"context"
	"time"
)

// Backend is a byte-oriented key/value store with per-entry expiry.
type Backend interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key for ttl. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
