package redisstream

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xstream"
)

// Option configures the xstream.Client construction when calling New.
type Option func(*xstream.ClientBuilder)

// WithRedisClient reuses an existing go-redis client instead of dialing.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(b *xstream.ClientBuilder) { b.WithEngineInstance(NewEngineFromClient(c)) }
}

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xstream.ClientBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xstream.ClientBuilder) { b.WithClock(c) }
}

// WithAckTimeout sets the acknowledgement timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(b *xstream.ClientBuilder) { b.WithAckTimeout(d) }
}

// WithRetention sets the default retention of producers.
func WithRetention(r xstream.Retention) Option {
	return func(b *xstream.ClientBuilder) { b.WithRetention(r) }
}

// WithGroupExistsPolicy sets how CreateGroup treats an existing group.
func WithGroupExistsPolicy(p xstream.GroupExistsPolicy) Option {
	return func(b *xstream.ClientBuilder) { b.WithGroupExistsPolicy(p) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xstream.Observer) Option {
	return func(b *xstream.ClientBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures the async observer pool.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xstream.ClientBuilder) { b.WithObserverPool(workers, bufferSize) }
}

// WithSyncObservers delivers events inline.
func WithSyncObservers() Option {
	return func(b *xstream.ClientBuilder) { b.WithSyncObservers() }
}
