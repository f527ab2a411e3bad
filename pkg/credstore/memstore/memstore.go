// Package memstore is an in-process credstore.Store for tests and single
// process development setups. It cannot coordinate separate processes.
package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
)

var errClosed = errors.New("store closed")

type entry struct {
	value     string
	expiresAt time.Time
}

// Store keeps entries in a map guarded by a mutex. Expired entries are
// invisible immediately and removed lazily or by DeleteExpired.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	closed  bool
}

// New returns an empty store. A nil clock means time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{entries: make(map[string]entry), now: now}
}

var _ credstore.Store = (*Store)(nil)

// live returns the entry under key if it has not expired. The caller holds mu.
func (s *Store) live(key string, now time.Time) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return credstore.Unavailable("memstore", err)
	}
	if s.closed {
		return credstore.Unavailable("memstore", errClosed)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}

	e, ok := s.live(key, s.now())
	if !ok {
		return "", credstore.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	delete(s.entries, key)
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}

	_, ok := s.live(key, s.now())
	return ok, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error) {
	if err := credstore.ValidateWrite(key, ttl); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}

	now := s.now()
	e, ok := s.live(key, now)
	if !ok || e.value != old {
		return false, nil
	}

	s.entries[key] = entry{value: next, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, credstore.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	n := 0
	for k, e := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if now.Before(e.expiresAt) {
			n++
		}
		delete(s.entries, k)
	}
	return n, nil
}

// DeleteExpired drops every expired entry.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
