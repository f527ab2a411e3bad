// Package sqlitestore implements credstore.Store on a SQLite file. It suits a
// single host where the identity service and gateway share a volume; expired
// rows are hidden by every query and purged by DeleteExpired.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/credstore/sqlitestore/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// MigrationsTable keeps this schema's version apart from other schemas that
// share the database file.
const MigrationsTable = "credstore_schema_migrations"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ credstore.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens dsn and applies the embedded migrations.
func New(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One writer at a time; CAS relies on single statement atomicity and
	// SQLite would otherwise answer concurrent writers with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", src, "", driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) nowMillis() int64 { return s.now().UnixMilli() }

func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.now().Add(ttl).UnixMilli(),
	)
	return credstore.Unavailable("put", err)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE key = ? AND expires_at > ?`,
		key, s.nowMillis(),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", credstore.Unavailable("get", err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key)
	return credstore.Unavailable("delete", err)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM credentials WHERE key = ? AND expires_at > ?`,
		key, s.nowMillis(),
	).Scan(&n)
	if err != nil {
		return false, credstore.Unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error) {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return false, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET value = ?, expires_at = ?
		WHERE key = ? AND value = ? AND expires_at > ?`,
		next, now.Add(ttl).UnixMilli(), key, old, now.UnixMilli(),
	)
	if err != nil {
		return false, credstore.Unavailable("cas", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, credstore.Unavailable("cas", err)
	}
	return n == 1, nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, credstore.ErrInvalidKey
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, credstore.Unavailable("delete prefix", err)
	}
	defer func() { _ = tx.Rollback() }()

	plen := utf8.RuneCountInString(prefix)

	var live int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM credentials WHERE substr(key, 1, ?) = ? AND expires_at > ?`,
		plen, prefix, s.nowMillis(),
	).Scan(&live); err != nil {
		return 0, credstore.Unavailable("delete prefix", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM credentials WHERE substr(key, 1, ?) = ?`, plen, prefix,
	); err != nil {
		return 0, credstore.Unavailable("delete prefix", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, credstore.Unavailable("delete prefix", err)
	}
	return live, nil
}

// DeleteExpired purges rows whose TTL has passed.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, credstore.Unavailable("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, credstore.Unavailable("delete expired", err)
	}
	return int(n), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return credstore.Unavailable("ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error { return s.db.Close() }
