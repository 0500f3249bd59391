package xstream

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Client owns one engine handle and every binding built on top of it.
type Client struct {
	engine       Engine
	clock        xclock.Clock
	logger       *xlog.Logger
	ackTimeout   time.Duration
	groupExists  GroupExistsPolicy
	retention    Retention
	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer
	metrics      *clientMetrics
	closed       atomic.Bool
	closeOnce    sync.Once
}

// clientMetrics uses lock-free atomics.
type clientMetrics struct {
	produced  atomic.Uint64
	received  atomic.Uint64
	claimed   atomic.Uint64
	acked     atomic.Uint64
	failed    atomic.Uint64
	empty     atomic.Uint64
	trimmed   atomic.Uint64
	errors    atomic.Uint64
	handlerNs atomic.Int64
}

// Engine exposes the underlying engine.
func (c *Client) Engine() Engine { return c.engine }

func (c *Client) Logger() *xlog.Logger { return c.logger }

// Open verifies the engine is reachable.
func (c *Client) Open(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.engine.Ping(ctx); err != nil {
		return c.fail("ping", "", "", err)
	}
	c.logger.Debug().Msg("xstream: engine reachable")
	return nil
}

// Append writes one entry with the given retention and returns its id.
func (c *Client) Append(ctx context.Context, stream string, fields Fields, r Retention) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}
	if stream == "" {
		return "", ErrInvalidStream
	}
	if err := fields.Validate(); err != nil {
		return "", err
	}

	start := c.clock.Now()
	id, err := c.engine.Append(ctx, stream, fields, r)
	if err != nil {
		return "", c.fail("append", stream, "", err)
	}
	c.metrics.produced.Add(1)
	c.notify(Event{Type: EventProduced, Stream: stream, EntryID: id, Duration: c.clock.Since(start)})
	return id, nil
}

// Range returns entries between start and end inclusive; "" means open.
func (c *Client) Range(ctx context.Context, stream, start, end string) ([]Entry, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if stream == "" {
		return nil, ErrInvalidStream
	}
	if start == "" {
		start = "-"
	}
	if end == "" {
		end = "+"
	}
	entries, err := c.engine.Range(ctx, stream, start, end)
	if err != nil {
		return nil, c.fail("range", stream, "", err)
	}
	return entries, nil
}

// FlushAll wipes every stream of the engine.
func (c *Client) FlushAll(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.engine.FlushAll(ctx); err != nil {
		return c.fail("flushall", "", "", err)
	}
	c.logger.Warn().Msg("xstream: engine flushed")
	return nil
}

// ack acknowledges id. It survives cancellation of ctx so that a handler
// success is not lost to a shutdown racing the acknowledgement.
func (c *Client) ack(ctx context.Context, stream, group, consumer, id string) error {
	actx := context.WithoutCancel(ctx)
	cancel := func() {}
	if c.ackTimeout > 0 {
		actx, cancel = context.WithTimeout(actx, c.ackTimeout)
	}
	defer cancel()

	if _, err := c.engine.Ack(actx, stream, group, id); err != nil {
		return c.fail("ack", stream, group, err)
	}
	c.metrics.acked.Add(1)
	c.notify(Event{Type: EventAcked, Stream: stream, Group: group, Consumer: consumer, EntryID: id})
	return nil
}

// fail records an engine error and returns it untouched.
func (c *Client) fail(op, stream, group string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.metrics.errors.Add(1)
	c.notify(Event{Type: EventError, Op: op, Stream: stream, Group: group, Err: err})
	return err
}

// Metrics returns current client counters.
func (c *Client) Metrics() Metrics {
	m := Metrics{
		Produced:         c.metrics.produced.Load(),
		Received:         c.metrics.received.Load(),
		Claimed:          c.metrics.claimed.Load(),
		Acked:            c.metrics.acked.Load(),
		HandlerFailures:  c.metrics.failed.Load(),
		Empty:            c.metrics.empty.Load(),
		Trimmed:          c.metrics.trimmed.Load(),
		Errors:           c.metrics.errors.Load(),
		AvgHandlerTimeMs: float64(c.metrics.handlerNs.Load()) / 1e6,
	}
	if c.observerPool != nil {
		m.EventsDropped = c.observerPool.Stats().Dropped
	}
	return m
}

// Health reports "unhealthy" once closed and "degraded" above a 5% error rate.
func (c *Client) Health(ctx context.Context) HealthStatus {
	now := c.clock.Now()
	if c.closed.Load() {
		return HealthStatus{Status: "unhealthy", Timestamp: now, Message: "client is closed"}
	}

	m := c.Metrics()
	status := "healthy"
	ops := m.Produced + m.Received + m.Empty
	if m.Errors > 0 && ops > 0 && float64(m.Errors)/float64(ops) > 0.05 {
		status = "degraded"
	}
	if err := c.engine.Ping(ctx); err != nil {
		return HealthStatus{Status: "unhealthy", Metrics: m, Timestamp: now, Message: err.Error()}
	}
	return HealthStatus{Status: status, Metrics: m, Timestamp: now}
}

// Close drains the observer pool and releases the engine. Bindings built
// from the client fail with ErrClientClosed afterwards.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.closed.Store(true)

		if c.observerPool != nil {
			timeout := 5 * time.Second
			if dl, ok := ctx.Deadline(); ok {
				timeout = time.Until(dl)
			}
			if err := c.observerPool.Close(timeout); err != nil {
				c.logger.Warn().Err(err).Msg("xstream: observer pool shutdown timeout")
				closeErr = err
			}
		}

		if err := c.engine.Close(); err != nil {
			c.logger.Error().Err(err).Msg("xstream: engine close failed")
			closeErr = err
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (c *Client) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	c.observers = append(c.observers, obs)
	c.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (c *Client) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	for i, o := range c.observers {
		if sameObserver(o, obs) {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
}

// sameObserver compares observers without panicking on func-backed ones.
func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	switch ta.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// notify hands e to the pool, or calls observers inline when none is configured.
func (c *Client) notify(e Event) {
	if c.closed.Load() {
		return
	}
	c.observersMu.RLock()
	if len(c.observers) == 0 {
		c.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.observersMu.RUnlock()

	if c.observerPool != nil {
		c.observerPool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		o.OnEvent(e)
	}
}

// recordHandlerTime keeps an exponential moving average of handler latency.
func (c *Client) recordHandlerTime(ns int64) {
	const alpha = 0.2
	current := c.metrics.handlerNs.Load()
	if current == 0 {
		c.metrics.handlerNs.Store(ns)
		return
	}
	c.metrics.handlerNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}
