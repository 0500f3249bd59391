package xstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Middleware composes processing concerns around a consumer handler.
type Middleware[In, Out any] func(next HandlerFunc[In, Out]) HandlerFunc[In, Out]

// RetryConfig controls in-process retries of a handler.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	RetryIf func(err error) bool
	// Jitter adds up to [0, Jitter] random delay to the base backoff.
	Jitter time.Duration
}

// Retry re-runs a failing handler on the same entry before the cycle gives
// up and leaves it pending. Empty deliveries are never retried.
func Retry[In, Out any](cfg RetryConfig) Middleware[In, Out] {
	return func(next HandlerFunc[In, Out]) HandlerFunc[In, Out] {
		return func(ctx context.Context, d Delivery, in In) (Out, error) {
			if _, ok := d.(Received); !ok {
				return next(ctx, d, in)
			}
			attempts := max(cfg.MaxAttempts, 1)
			shouldRetry := cfg.RetryIf
			if shouldRetry == nil {
				shouldRetry = func(error) bool { return true }
			}
			var (
				out Out
				err error
			)
			for i := 1; i <= attempts; i++ {
				out, err = next(ctx, d, in)
				if err == nil {
					return out, nil
				}
				if ctx.Err() != nil || i == attempts || !shouldRetry(err) {
					return out, err
				}
				if cfg.Backoff != nil {
					wait := cfg.Backoff(i)
					if cfg.Jitter > 0 {
						wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
					}
					select {
					case <-ctx.Done():
						return out, err
					case <-time.After(wait):
					}
				}
			}
			return out, err
		}
	}
}

// Timeout bounds the processing time of a handler. On expiry the cycle fails
// with context.DeadlineExceeded and the entry stays pending.
func Timeout[In, Out any](d time.Duration) Middleware[In, Out] {
	if d <= 0 {
		return func(next HandlerFunc[In, Out]) HandlerFunc[In, Out] { return next }
	}
	return func(next HandlerFunc[In, Out]) HandlerFunc[In, Out] {
		return func(ctx context.Context, dl Delivery, in In) (Out, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				out Out
				err error
			}
			ch := make(chan result, 1)
			go func() {
				var r result
				defer func() {
					if p := recover(); p != nil {
						r.err = &PanicError{Value: p}
					}
					ch <- r
				}()
				r.out, r.err = next(tctx, dl, in)
			}()

			select {
			case <-tctx.Done():
				var zero Out
				if errors.Is(tctx.Err(), context.DeadlineExceeded) {
					return zero, fmt.Errorf("xstream: handler exceeded %s: %w", d, context.DeadlineExceeded)
				}
				return zero, tctx.Err()
			case r := <-ch:
				return r.out, r.err
			}
		}
	}
}

// Recover turns handler panics into *PanicError. Consumers always install it
// innermost.
func Recover[In, Out any]() Middleware[In, Out] {
	return func(next HandlerFunc[In, Out]) HandlerFunc[In, Out] {
		return func(ctx context.Context, d Delivery, in In) (out Out, err error) {
			defer func() {
				if r := recover(); r != nil {
					var zero Out
					out, err = zero, &PanicError{Value: r}
				}
			}()
			return next(ctx, d, in)
		}
	}
}

// Chain composes middlewares around a handler in order.
func Chain[In, Out any](h HandlerFunc[In, Out], mws ...Middleware[In, Out]) HandlerFunc[In, Out] {
	wrapped := h
	// apply in reverse so that the first middleware is outermost
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
