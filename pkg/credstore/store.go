// Package credstore is the shared key/value store that the identity service
// and the gateway coordinate through. Every entry carries a TTL; nothing in
// this store lives forever.
package credstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get for absent or expired keys.
	ErrNotFound = errors.New("credstore: not found")

	// ErrUnavailable wraps every backend or transport failure. It is the only
	// error worth retrying.
	ErrUnavailable = errors.New("credstore: unavailable")

	// ErrInvalidTTL is returned for writes without a positive TTL.
	ErrInvalidTTL = errors.New("credstore: ttl must be positive")

	// ErrInvalidKey is returned for empty keys or prefixes.
	ErrInvalidKey = errors.New("credstore: invalid key")
)

// Store is implemented by the redis, sqlite and in-memory drivers. All
// operations are idempotent; atomicity is per key only.
type Store interface {
	// Put writes value under key with the given TTL, overwriting any prior value.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the live value under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// CompareAndSwap atomically replaces the value under key with next, and
	// resets its TTL, only if the current live value equals old.
	CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error)

	// DeletePrefix removes every key starting with prefix and reports how
	// many live keys were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Sweeper is implemented by drivers that need help expiring entries.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// ValidateWrite checks the arguments common to Put and CompareAndSwap.
func ValidateWrite(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Unavailable wraps a backend error so callers can match ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string {
	return "credstore: " + e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error { return []error{ErrUnavailable, e.err} }

// HasGlobMeta reports whether s contains characters that are special in
// store glob patterns. Key components must not contain them.
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, `*?[]\`)
}
