package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/credstore/memstore"
	"github.com/aussiebroadwan/tokengate/pkg/credstore/redisstore"
	"github.com/aussiebroadwan/tokengate/pkg/credstore/sqlitestore"
)

const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// StoreConfig selects the credential store driver and its retry policy.
type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"redis"`
	RedisURL   string `env:"STORE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath string `env:"STORE_SQLITE_PATH" envDefault:"credentials.db"`

	MaxRetries     uint64        `env:"STORE_MAX_RETRIES" envDefault:"2"`
	AttemptTimeout time.Duration `env:"STORE_ATTEMPT_TIMEOUT" envDefault:"250ms"`
	InitialBackoff time.Duration `env:"STORE_INITIAL_BACKOFF" envDefault:"25ms"`
	MaxBackoff     time.Duration `env:"STORE_MAX_BACKOFF" envDefault:"200ms"`
}

// RetryPolicy returns the configured policy.
func (c StoreConfig) RetryPolicy() credstore.RetryPolicy {
	return credstore.RetryPolicy{
		MaxRetries:     c.MaxRetries,
		AttemptTimeout: c.AttemptTimeout,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
	}
}

// Open connects the configured driver and wraps it with retries. The memory
// driver only suits a single process running both roles, such as tests.
func (c StoreConfig) Open() (*credstore.Retrying, error) {
	var (
		s   credstore.Store
		err error
	)

	switch strings.ToLower(c.Driver) {
	case StoreRedis:
		s, err = redisstore.New(c.RedisURL)
	case StoreSQLite:
		s, err = sqlitestore.New("file:" + c.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	case StoreMemory:
		s = memstore.New(nil)
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", c.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.Driver, err)
	}

	return credstore.WithRetry(s, c.RetryPolicy()), nil
}
