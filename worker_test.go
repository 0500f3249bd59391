package xstream_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/trickstertwo/xstream"
)

// TestWorker_StopsOnCancel tests Serve returns nil once its context ends.
func TestWorker_StopsOnCancel(t *testing.T) {
	var n atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	w := xstream.NewWorker("counter", xstream.RunnerFunc(func(ctx context.Context) error {
		if n.Add(1) == 5 {
			cancel()
		}
		return nil
	}))

	require.NoError(t, w.Serve(ctx))
	assert.Equal(t, int64(5), n.Load())
	assert.Equal(t, uint64(5), w.Stats().Iterations)
	assert.Equal(t, "counter", w.String())
}

// TestWorker_ErrorHandlerStops tests a non-nil error handler result ends the worker.
func TestWorker_ErrorHandlerStops(t *testing.T) {
	boom := errors.New("boom")
	stop := errors.New("stop")
	var seen []error

	w := xstream.NewWorker("failing",
		xstream.RunnerFunc(func(ctx context.Context) error { return boom }),
		xstream.WithErrorHandler(func(err error) error {
			seen = append(seen, err)
			if len(seen) == 3 {
				return stop
			}
			return nil
		}),
		xstream.WithBackoff(&backoff.ZeroBackOff{}),
	)

	err := w.Serve(context.Background())
	require.ErrorIs(t, err, stop)
	assert.Len(t, seen, 3)
	assert.Equal(t, uint64(3), w.Stats().Failures)
}

// TestWorker_BackoffStop tests a policy returning Stop ends the worker with the last error.
func TestWorker_BackoffStop(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64

	w := xstream.NewWorker("bounded",
		xstream.RunnerFunc(func(ctx context.Context) error {
			calls.Add(1)
			return boom
		}),
		xstream.WithBackoff(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)),
	)

	err := w.Serve(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), calls.Load())
}

// TestWorker_CircuitBreaker tests the breaker stops calling a failing engine.
func TestWorker_CircuitBreaker(t *testing.T) {
	var calls atomic.Int64
	var skipped atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := xstream.NewWorker("breaker",
		xstream.RunnerFunc(func(ctx context.Context) error {
			calls.Add(1)
			return xstream.NewEngineError("read_group", xstream.ErrEngineUnavailable, errors.New("connection refused"))
		}),
		xstream.WithCircuitBreaker(gobreaker.Settings{
			Name:    "engine",
			Timeout: time.Hour,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		xstream.WithBackoff(&backoff.ZeroBackOff{}),
		xstream.WithErrorHandler(func(err error) error {
			if errors.Is(err, gobreaker.ErrOpenState) && skipped.Add(1) == 5 {
				cancel()
			}
			return nil
		}),
	)

	require.NoError(t, w.Serve(ctx))
	assert.Equal(t, int64(3), calls.Load())
}

// TestWorker_BreakerIgnoresHandlerErrors tests only engine failures count against the breaker.
func TestWorker_BreakerIgnoresHandlerErrors(t *testing.T) {
	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := xstream.NewWorker("handler-errors",
		xstream.RunnerFunc(func(ctx context.Context) error {
			if calls.Add(1) == 10 {
				cancel()
			}
			return errors.New("handler failed")
		}),
		xstream.WithCircuitBreaker(gobreaker.Settings{
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
		}),
		xstream.WithBackoff(&backoff.ZeroBackOff{}),
		xstream.WithErrorHandler(func(error) error { return nil }),
	)

	require.NoError(t, w.Serve(ctx))
	assert.Equal(t, int64(10), calls.Load())
}

// TestWorker_RateLimitPastDeadline tests a token due after the deadline keeps the worker waiting until ctx ends.
func TestWorker_RateLimitPastDeadline(t *testing.T) {
	var n atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w := xstream.NewWorker("limited", xstream.RunnerFunc(func(ctx context.Context) error {
		n.Add(1)
		return nil
	}), xstream.WithRateLimit(rate.Every(time.Hour), 1))

	start := time.Now()
	require.NoError(t, w.Serve(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Error(t, ctx.Err())
	assert.Equal(t, int64(1), n.Load())
}

// TestWorker_NilRunner tests a worker without a runner fails at once.
func TestWorker_NilRunner(t *testing.T) {
	err := xstream.NewWorker("", nil).Serve(context.Background())
	require.ErrorIs(t, err, xstream.ErrInvalidHandler)
}

// TestWorkerGroup_RunsConsumers tests two consumers of one group drain a stream together.
func TestWorkerGroup_RunsConsumers(t *testing.T) {
	client, _ := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, client.CreateGroup(ctx, "jobs", "workers"))
	seed(t, client, "jobs", 20)

	var handled atomic.Int64
	handler := func(ctx context.Context, d xstream.Delivery, _ none) (none, error) {
		if _, ok := d.(xstream.Received); ok {
			handled.Add(1)
		}
		return none{}, nil
	}

	group := xstream.NewWorkerGroup("test", client.Logger(), xstream.GroupConfig{ShutdownTimeout: time.Second})
	for _, name := range []string{"w1", "w2"} {
		c, err := xstream.NewConsumer(client, "jobs", "workers", handler,
			xstream.WithConsumerName(name), xstream.WithBlock(20*time.Millisecond))
		require.NoError(t, err)
		group.Add(xstream.NewWorker(name, c.Runner(none{})))
	}

	runCtx, stop := context.WithCancel(ctx)
	errCh := group.ServeBackground(runCtx)

	require.Eventually(t, func() bool { return handled.Load() == 20 }, 5*time.Second, 10*time.Millisecond)
	stop()
	<-errCh

	n, err := client.PendingCount(ctx, "jobs", "workers")
	require.NoError(t, err)
	assert.Zero(t, n)
}
