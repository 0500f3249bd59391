package xstream

import (
	"context"
	"time"
)

// Engine is the Strategy interface for the backing log engine. Adapters
// classify failures as *EngineError so callers can match ErrGroupNotFound,
// ErrEngineUnavailable and friends.
type Engine interface {
	// Append adds one entry and applies retention in the same call.
	Append(ctx context.Context, stream string, fields Fields, r Retention) (string, error)
	// CreateGroup creates group at startID, creating the stream if absent.
	// An existing group yields ErrGroupExists.
	CreateGroup(ctx context.Context, stream, group, startID string) error
	DestroyGroup(ctx context.Context, stream, group string) error
	// ReadGroup delivers up to count new entries to consumer. block < 0 returns
	// immediately, 0 waits forever. A timeout yields an empty slice.
	ReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration, count int64) ([]Entry, error)
	// ClaimStale transfers up to count entries idle for at least minIdle to consumer.
	ClaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) (ClaimResult, error)
	Ack(ctx context.Context, stream, group string, ids ...string) (int64, error)
	TrimMaxLen(ctx context.Context, stream string, maxLen int64, approx bool) (int64, error)
	TrimMinID(ctx context.Context, stream, minID string, approx bool) (int64, error)
	// Range returns entries with start <= id <= end; "-" and "+" are open bounds.
	Range(ctx context.Context, stream, start, end string) ([]Entry, error)
	Pending(ctx context.Context, stream, group string) (PendingSummary, error)
	FlushAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Codec is the Strategy for encoding/decoding payload bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// EventCodec maps a domain value to the flat field map of one entry and back.
type EventCodec[T any] interface {
	Encode(v T) (Fields, error)
	Decode(f Fields) (T, error)
}

// Observer receives client lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Runner performs one unit of work for a Worker.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// RunnerFunc is an Adapter that lets a plain function satisfy Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) RunOnce(ctx context.Context) error { return f(ctx) }

var (
	_ HealthChecker = (*Client)(nil)
	_ Runner        = RunnerFunc(nil)
)
