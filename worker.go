package xstream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"github.com/trickstertwo/xlog"
	"golang.org/x/time/rate"
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the logger iteration failures go to.
func WithWorkerLogger(l *xlog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithErrorHandler is called with every failed iteration. Returning a non-nil
// error stops the worker with that error.
func WithErrorHandler(fn func(error) error) WorkerOption {
	return func(w *Worker) { w.onError = fn }
}

// WithBackoff replaces the pause policy between failed iterations. A policy
// returning backoff.Stop ends the worker with the last error.
func WithBackoff(b backoff.BackOff) WorkerOption {
	return func(w *Worker) { w.backoff = b }
}

// WithRateLimit caps iterations per second.
func WithRateLimit(limit rate.Limit, burst int) WorkerOption {
	return func(w *Worker) { w.limiter = rate.NewLimiter(limit, max(burst, 1)) }
}

// WithCircuitBreaker stops calling the runner while the engine keeps failing.
// Unless st.IsSuccessful is set, only ErrEngineUnavailable counts as failure.
func WithCircuitBreaker(st gobreaker.Settings) WorkerOption {
	return func(w *Worker) {
		if st.IsSuccessful == nil {
			st.IsSuccessful = func(err error) bool {
				return !errors.Is(err, ErrEngineUnavailable)
			}
		}
		if st.OnStateChange == nil {
			st.OnStateChange = func(name string, from, to gobreaker.State) {
				w.logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("xstream: worker circuit breaker state changed")
			}
		}
		w.breaker = gobreaker.NewCircuitBreaker[struct{}](st)
	}
}

// defaultBackoff mirrors a poller's 100ms..5s exponential pause and never gives up.
func defaultBackoff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
}

// Worker calls a Runner in a loop until its context ends. It implements
// suture.Service.
type Worker struct {
	name    string
	runner  Runner
	logger  *xlog.Logger
	onError func(error) error
	backoff backoff.BackOff
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]

	iterations atomic.Uint64
	failures   atomic.Uint64
}

// WorkerStats counts iterations of one worker.
type WorkerStats struct {
	Iterations uint64
	Failures   uint64
}

func NewWorker(name string, runner Runner, opts ...WorkerOption) *Worker {
	if name == "" {
		name = "xstream-worker"
	}
	w := &Worker{
		name:    name,
		runner:  runner,
		logger:  xlog.Default(),
		backoff: defaultBackoff(),
	}
	for _, o := range opts {
		if o != nil {
			o(w)
		}
	}
	return w
}

func (w *Worker) String() string { return w.name }

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{Iterations: w.iterations.Load(), Failures: w.failures.Load()}
}

// Serve runs iterations back to back. Each iteration finishes before
// cancellation is checked again. It returns nil once ctx is done.
func (w *Worker) Serve(ctx context.Context) error {
	if w.runner == nil {
		return ErrInvalidHandler
	}
	lg := w.logger.With(xlog.Str("worker", w.name))
	lg.Debug().Msg("xstream: worker started")
	defer lg.Debug().Msg("xstream: worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if w.limiter != nil && !w.waitToken(ctx) {
			return nil
		}

		err := w.runOnce(ctx)
		w.iterations.Add(1)
		if err == nil {
			if w.backoff != nil {
				w.backoff.Reset()
			}
			continue
		}
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil
		}

		w.failures.Add(1)
		if w.onError != nil {
			if stop := w.onError(err); stop != nil {
				return stop
			}
		} else if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			lg.Debug().Err(err).Msg("xstream: worker iteration skipped")
		} else {
			lg.Warn().Err(err).Msg("xstream: worker iteration failed")
		}

		if w.backoff == nil {
			continue
		}
		wait := w.backoff.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	if w.breaker == nil {
		return w.runner.RunOnce(ctx)
	}
	_, err := w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.runner.RunOnce(ctx)
	})
	return err
}

// waitToken blocks until the limiter grants the next iteration and reports
// false only once ctx is done. Unlike rate.Limiter.Wait it does not give up
// early when the token is due after the ctx deadline.
func (w *Worker) waitToken(ctx context.Context) bool {
	r := w.limiter.Reserve()
	if !r.OK() {
		w.logger.Warn().Str("worker", w.name).Msg("xstream: rate limit can never grant an iteration")
		<-ctx.Done()
		return false
	}
	if !sleepCtx(ctx, r.Delay()) {
		r.Cancel()
		return false
	}
	return true
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
