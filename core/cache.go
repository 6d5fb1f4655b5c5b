package core

import (
	"context"
	"time"
)

// KeyValueStore holds short-lived string values.
// A Put on an existing key replaces its value and restarts its TTL.
type KeyValueStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// GetAndDelete returns the value and removes it. ok is false when the key is absent or expired.
	GetAndDelete(ctx context.Context, key string) (value string, ok bool, err error)
	// Consume removes the key only if its current value equals value.
	Consume(ctx context.Context, key, value string) (bool, error)
}
