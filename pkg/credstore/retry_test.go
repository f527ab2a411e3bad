package credstore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/credstore/memstore"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("connection reset")

// flakyStore fails the first `failures` calls with an unavailable error.
type flakyStore struct {
	credstore.Store
	failures int32
	calls    atomic.Int32
	failWith error
}

func (f *flakyStore) fail(op string) error {
	if f.calls.Add(1) <= f.failures {
		if f.failWith != nil {
			return f.failWith
		}
		return credstore.Unavailable(op, errBoom)
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if err := f.fail("get"); err != nil {
		return "", err
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.fail("exists"); err != nil {
		return false, err
	}
	return f.Store.Exists(ctx, key)
}

func (f *flakyStore) CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error) {
	if err := f.fail("cas"); err != nil {
		return false, err
	}
	return f.Store.CompareAndSwap(ctx, key, old, next, ttl)
}

var fastPolicy = credstore.RetryPolicy{
	MaxRetries:     2,
	AttemptTimeout: 100 * time.Millisecond,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

func TestRetrying(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers from transient failures", func(t *testing.T) {
		inner := memstore.New(nil)
		require.NoError(t, inner.Put(ctx, "k", "v", time.Minute))

		f := &flakyStore{Store: inner, failures: 2}
		s := credstore.WithRetry(f, fastPolicy)

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", v)
		require.EqualValues(t, 3, f.calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		f := &flakyStore{Store: memstore.New(nil), failures: 10}
		s := credstore.WithRetry(f, fastPolicy)

		_, err := s.Exists(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrUnavailable)
		require.ErrorIs(t, err, errBoom)
		require.EqualValues(t, 3, f.calls.Load())
	})

	t.Run("does not retry not found", func(t *testing.T) {
		f := &flakyStore{Store: memstore.New(nil)}
		s := credstore.WithRetry(f, fastPolicy)

		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, credstore.ErrNotFound)
		require.EqualValues(t, 1, f.calls.Load())
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		f := &flakyStore{Store: memstore.New(nil), failures: 5, failWith: errBoom}
		s := credstore.WithRetry(f, fastPolicy)

		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, errBoom)
		require.NotErrorIs(t, err, credstore.ErrUnavailable)
		require.EqualValues(t, 1, f.calls.Load())
	})

	t.Run("compare and swap is attempted once", func(t *testing.T) {
		f := &flakyStore{Store: memstore.New(nil), failures: 1}
		s := credstore.WithRetry(f, fastPolicy)

		_, err := s.CompareAndSwap(ctx, "k", "a", "b", time.Minute)
		require.ErrorIs(t, err, credstore.ErrUnavailable)
		require.EqualValues(t, 1, f.calls.Load())
	})

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		f := &flakyStore{Store: memstore.New(nil), failures: 10}
		s := credstore.WithRetry(f, fastPolicy)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Exists(cctx, "k")
		require.ErrorIs(t, err, credstore.ErrUnavailable)
	})

	t.Run("forwards sweeping", func(t *testing.T) {
		inner := memstore.New(nil)
		s := credstore.WithRetry(inner, credstore.RetryPolicy{})

		n, err := s.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestUnavailable(t *testing.T) {
	require.NoError(t, credstore.Unavailable("get", nil))

	err := credstore.Unavailable("get", errBoom)
	require.ErrorIs(t, err, credstore.ErrUnavailable)
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "get")
}

func TestValidateWrite(t *testing.T) {
	require.NoError(t, credstore.ValidateWrite("k", time.Second))
	require.ErrorIs(t, credstore.ValidateWrite("", time.Second), credstore.ErrInvalidKey)
	require.ErrorIs(t, credstore.ValidateWrite("k", 0), credstore.ErrInvalidTTL)
}
