// Package storetest is a behavioural suite every credstore driver must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/stretchr/testify/require"
)

// Harness is a fresh, empty store plus a way to move its clock forward.
type Harness struct {
	Store   credstore.Store
	Advance func(d time.Duration)
}

// Clock is a manually advanced time source for drivers that accept one.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Run exercises the credstore.Store contract against harnesses built by newHarness.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("put get delete", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		_, err := h.Store.Get(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrNotFound)

		require.NoError(t, h.Store.Put(ctx, "k", "v1", time.Minute))
		v, err := h.Store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v1", v)

		require.NoError(t, h.Store.Put(ctx, "k", "v2", time.Minute), "put overwrites")
		v, err = h.Store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v2", v)

		ok, err := h.Store.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, h.Store.Delete(ctx, "k"))
		require.NoError(t, h.Store.Delete(ctx, "k"), "delete is idempotent")

		ok, err = h.Store.Exists(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ttl is mandatory", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		require.ErrorIs(t, h.Store.Put(ctx, "k", "v", 0), credstore.ErrInvalidTTL)
		require.ErrorIs(t, h.Store.Put(ctx, "k", "v", -time.Second), credstore.ErrInvalidTTL)

		_, err := h.Store.CompareAndSwap(ctx, "k", "a", "b", 0)
		require.ErrorIs(t, err, credstore.ErrInvalidTTL)
	})

	t.Run("entries expire", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		require.NoError(t, h.Store.Put(ctx, "k", "v", 2*time.Second))

		h.Advance(time.Second)
		ok, err := h.Store.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)

		h.Advance(time.Second)
		ok, err = h.Store.Exists(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok, "gone exactly at ttl")

		_, err = h.Store.Get(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("compare and swap", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		swapped, err := h.Store.CompareAndSwap(ctx, "k", "a", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, swapped, "absent key never swaps")

		require.NoError(t, h.Store.Put(ctx, "k", "a", time.Second))

		swapped, err = h.Store.CompareAndSwap(ctx, "k", "wrong", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, swapped)

		swapped, err = h.Store.CompareAndSwap(ctx, "k", "a", "b", time.Minute)
		require.NoError(t, err)
		require.True(t, swapped)

		v, err := h.Store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "b", v)

		h.Advance(30 * time.Second)
		ok, err := h.Store.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok, "swap resets the ttl")
	})

	t.Run("concurrent compare and swap has one winner", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Store.Put(ctx, "k", "seed", time.Minute))

		const racers = 16
		var wg sync.WaitGroup
		results := make(chan bool, racers)
		errs := make(chan error, racers)
		for i := range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := h.Store.CompareAndSwap(ctx, "k", "seed", fmt.Sprintf("next-%d", i), time.Minute)
				if err != nil {
					errs <- err
					return
				}
				results <- ok
			}()
		}
		wg.Wait()
		close(results)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		wins := 0
		for ok := range results {
			if ok {
				wins++
			}
		}
		require.Equal(t, 1, wins)
	})

	t.Run("delete prefix", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		for i := range 5 {
			require.NoError(t, h.Store.Put(ctx, fmt.Sprintf("refresh_token:u1:s%d", i), "v", time.Minute))
		}
		require.NoError(t, h.Store.Put(ctx, "refresh_token:u10:s0", "v", time.Minute))
		require.NoError(t, h.Store.Put(ctx, "refresh_token:u2:s0", "v", time.Minute))

		n, err := h.Store.DeletePrefix(ctx, "refresh_token:u1:")
		require.NoError(t, err)
		require.Equal(t, 5, n)

		for _, k := range []string{"refresh_token:u10:s0", "refresh_token:u2:s0"} {
			ok, err := h.Store.Exists(ctx, k)
			require.NoError(t, err)
			require.True(t, ok, k)
		}

		n, err = h.Store.DeletePrefix(ctx, "refresh_token:u1:")
		require.NoError(t, err)
		require.Zero(t, n)

		_, err = h.Store.DeletePrefix(ctx, "")
		require.ErrorIs(t, err, credstore.ErrInvalidKey)
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Ping(context.Background()))
	})
}
