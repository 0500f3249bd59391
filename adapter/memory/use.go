package memory

import (
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xstream"
)

func init() {
	_ = xstream.RegisterEngine(EngineName, func(cfg map[string]any) (xstream.Engine, error) {
		return NewEngine(ConfigFromMap(cfg)), nil
	})
}

// New builds a Client on a fresh in-memory engine.
//
// Example:
//
//	client, err := memory.New(memory.Config{NodeSize: 100},
//	    memory.WithLogger(logger),
//	    memory.WithObserver(observer),
//	)
func New(cfg Config, opts ...Option) (*xstream.Client, error) {
	cb := xstream.NewClientBuilder().
		WithEngine(EngineName, cfg.toMap())
	for _, o := range opts {
		if o != nil {
			o(cb)
		}
	}
	return cb.Build()
}

// Option configures the xstream.Client built by New.
type Option func(*xstream.ClientBuilder)

// WithEngine uses e instead of a fresh engine, e.g. one with WithNow.
func WithEngine(e *Engine) Option {
	return func(b *xstream.ClientBuilder) { b.WithEngineInstance(e) }
}

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xstream.ClientBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xstream.ClientBuilder) { b.WithClock(c) }
}

// WithAckTimeout sets the acknowledgement timeout (default: 5s).
func WithAckTimeout(d time.Duration) Option {
	return func(b *xstream.ClientBuilder) { b.WithAckTimeout(d) }
}

// WithRetention sets the default producer retention.
func WithRetention(r xstream.Retention) Option {
	return func(b *xstream.ClientBuilder) { b.WithRetention(r) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xstream.Observer) Option {
	return func(b *xstream.ClientBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures the async observer pool.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xstream.ClientBuilder) { b.WithObserverPool(workers, bufferSize) }
}

// WithSyncObservers delivers events inline, useful in tests.
func WithSyncObservers() Option {
	return func(b *xstream.ClientBuilder) { b.WithSyncObservers() }
}
