package xstream

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xstream (prevents collisions).
type ctxKey string

const (
	consumerCtxKey ctxKey = "xstream:consumer"
	loggerCtxKey   ctxKey = "xstream:logger"
	clockCtxKey    ctxKey = "xstream:clock"
)

func injectConsumer(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, consumerCtxKey, name)
}

// ConsumerFromContext returns the consumer name of the cycle running ctx.
func ConsumerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(consumerCtxKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}
