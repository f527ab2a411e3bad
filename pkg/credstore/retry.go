package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how a Store call is attempted.
type RetryPolicy struct {
	// MaxRetries after the first attempt. Zero means a single attempt.
	MaxRetries uint64
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
	// InitialBackoff is the first pause between attempts.
	InitialBackoff time.Duration
	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy suits request-path access-control reads.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     2,
	AttemptTimeout: 250 * time.Millisecond,
	InitialBackoff: 25 * time.Millisecond,
	MaxBackoff:     200 * time.Millisecond,
}

// Retrying decorates a Store with per-attempt timeouts and bounded retries.
// Only ErrUnavailable is retried. CompareAndSwap gets a single attempt: if the
// reply to a successful swap is lost, a retry would misreport a lost race.
type Retrying struct {
	Store
	policy RetryPolicy
}

// WithRetry wraps s. A zero policy falls back to DefaultRetryPolicy.
func WithRetry(s Store, policy RetryPolicy) *Retrying {
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy
	}
	return &Retrying{Store: s, policy: policy}
}

func (r *Retrying) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialBackoff > 0 {
		b.InitialInterval = r.policy.InitialBackoff
	}
	if r.policy.MaxBackoff > 0 {
		b.MaxInterval = r.policy.MaxBackoff
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxRetries), ctx)
}

func (r *Retrying) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	actx := ctx
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}
	return fn(actx)
}

func (r *Retrying) do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := backoff.Retry(func() error {
		err := r.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, r.newBackOff(ctx))

	// A caller deadline hit between attempts still means the store could
	// not answer.
	if err != nil && !errors.Is(err, ErrUnavailable) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Unavailable("retry", err)
	}
	return err
}

func (r *Retrying) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.Store.Put(ctx, key, value, ttl)
	})
}

func (r *Retrying) Get(ctx context.Context, key string) (string, error) {
	var out string
	err := r.do(ctx, func(ctx context.Context) error {
		v, err := r.Store.Get(ctx, key)
		out = v
		return err
	})
	return out, err
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.Store.Delete(ctx, key)
	})
}

func (r *Retrying) Exists(ctx context.Context, key string) (bool, error) {
	var out bool
	err := r.do(ctx, func(ctx context.Context) error {
		ok, err := r.Store.Exists(ctx, key)
		out = ok
		return err
	})
	return out, err
}

func (r *Retrying) CompareAndSwap(ctx context.Context, key, old, next string, ttl time.Duration) (bool, error) {
	var out bool
	err := r.attempt(ctx, func(ctx context.Context) error {
		ok, err := r.Store.CompareAndSwap(ctx, key, old, next, ttl)
		out = ok
		return err
	})
	return out, err
}

func (r *Retrying) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var out int
	err := r.do(ctx, func(ctx context.Context) error {
		n, err := r.Store.DeletePrefix(ctx, prefix)
		out += n
		return err
	})
	return out, err
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.do(ctx, r.Store.Ping)
}

// DeleteExpired forwards to the wrapped store when it sweeps.
func (r *Retrying) DeleteExpired(ctx context.Context) (int, error) {
	s, ok := r.Store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return s.DeleteExpired(ctx)
}
