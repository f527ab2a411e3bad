// Package redisstore implements credstore.Store on Redis. Expiry is native
// (SET PX), rotation is a server-side compare-and-swap script and prefix
// deletion walks the keyspace with SCAN.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/redis/go-redis/v9"
)

// casScript swaps KEYS[1] from ARGV[1] to ARGV[2] with a PX of ARGV[3].
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

const defaultScanCount = 256

// Store is a credstore.Store backed by a single Redis deployment.
type Store struct {
	client    *redis.Client
	scanCount int64
}

var _ credstore.Store = (*Store)(nil)

// New connects using a redis:// or rediss:// URL.
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts)), nil
}

// NewWithClient wraps an existing client. The store takes ownership of it.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, scanCount: defaultScanCount}
}

func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return credstore.Unavailable("put", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", credstore.Unavailable("get", err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return credstore.Unavailable("delete", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, credstore.Unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error) {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return false, err
	}

	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	n, err := casScript.Run(ctx, s.client, []string{key}, old, next, ms).Int()
	if err != nil {
		return false, credstore.Unavailable("cas", err)
	}
	return n == 1, nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, credstore.ErrInvalidKey
	}

	pattern := escapeGlob(prefix) + "*"
	deleted := 0

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return deleted, credstore.Unavailable("scan", err)
		}

		if len(keys) > 0 {
			n, err := s.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, credstore.Unavailable("delete prefix", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return credstore.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob makes s match literally inside a SCAN MATCH pattern.
func escapeGlob(s string) string { return globEscaper.Replace(s) }
