// internal/cache/store.go

// Package cache provides the pluggable cache-aside store backends used by the
// cache execution context. A store holds opaque encoded values together with
// the time they were stored; freshness decisions belong to the caller.
package cache

import (
	"context"
	"time"
)

// Store is the cache-aside contract. Get returns the stored value and its age;
// ok is false when the key is absent. Put records a value with an explicit
// stored-at timestamp so callers (and tests) control entry age.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, age time.Duration, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, storedAt time.Time) error
}
