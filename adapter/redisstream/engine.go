package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xstream"
)

// Engine implements xstream.Engine on Redis Streams.
type Engine struct {
	client redis.UniversalClient
	closed atomic.Bool
}

var _ xstream.Engine = (*Engine)(nil)

// NewEngine dials Redis and verifies the connection with PING.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client, cfg.PingTimeout); err != nil {
		_ = client.Close()
		return nil, xstream.NewEngineError("connect", xstream.ErrEngineUnavailable, err)
	}
	return &Engine{client: client}, nil
}

// NewEngineFromClient wraps an existing client. Close closes it.
func NewEngineFromClient(client redis.UniversalClient) *Engine {
	return &Engine{client: client}
}

// Client exposes the underlying go-redis client.
func (e *Engine) Client() redis.UniversalClient { return e.client }

func (e *Engine) Append(ctx context.Context, stream string, fields xstream.Fields, r xstream.Retention) (string, error) {
	strs, err := fields.Strings()
	if err != nil {
		return "", err
	}
	values := make(map[string]any, len(strs))
	for k, v := range strs {
		values[k] = v
	}
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}
	if r.MaxLen > 0 {
		args.MaxLen = r.MaxLen
		args.Approx = r.Approximate
	}
	id, err := e.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", classify("append", err)
	}
	return id, nil
}

func (e *Engine) CreateGroup(ctx context.Context, stream, group, startID string) error {
	if startID == "" {
		startID = "0"
	}
	return classify("create_group", e.client.XGroupCreateMkStream(ctx, stream, group, startID).Err())
}

func (e *Engine) DestroyGroup(ctx context.Context, stream, group string) error {
	return classify("destroy_group", e.client.XGroupDestroy(ctx, stream, group).Err())
}

// ReadGroup reads new entries. A negative block sends no BLOCK argument,
// zero blocks until an entry arrives. BLOCK has millisecond resolution, so a
// positive block below 1ms is raised to 1ms instead of truncating to 0.
func (e *Engine) ReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration, count int64) ([]xstream.Entry, error) {
	if block > 0 && block < time.Millisecond {
		block = time.Millisecond
	}
	res, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, idNew},
		Count:    max(count, 1),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, classify("read_group", err)
	}
	var out []xstream.Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			out = append(out, toEntry(msg))
		}
	}
	return out, nil
}

// ClaimStale runs XAUTOCLAIM from the start of the pending list. go-redis
// drops the deleted-id part of the reply; entries that come back without
// values are the trimmed ones and are reported in Deleted instead.
func (e *Engine) ClaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) (xstream.ClaimResult, error) {
	msgs, next, err := e.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    idStart,
		Count:    max(count, 1),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return xstream.ClaimResult{Next: idStart}, nil
		}
		return xstream.ClaimResult{}, classify("claim", err)
	}
	res := xstream.ClaimResult{Next: next}
	for _, msg := range msgs {
		if msg.Values == nil {
			res.Deleted = append(res.Deleted, msg.ID)
			continue
		}
		res.Entries = append(res.Entries, toEntry(msg))
	}
	if len(res.Deleted) > 0 {
		// Redis 7 already removes them; older servers keep them pending.
		_ = e.client.XAck(ctx, stream, group, res.Deleted...).Err()
	}
	return res, nil
}

func (e *Engine) Ack(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := e.client.XAck(ctx, stream, group, ids...).Result()
	if err != nil {
		return 0, classify("ack", err)
	}
	return n, nil
}

func (e *Engine) TrimMaxLen(ctx context.Context, stream string, maxLen int64, approx bool) (int64, error) {
	var cmd *redis.IntCmd
	if approx {
		cmd = e.client.XTrimMaxLenApprox(ctx, stream, maxLen, 0)
	} else {
		cmd = e.client.XTrimMaxLen(ctx, stream, maxLen)
	}
	n, err := cmd.Result()
	if err != nil {
		return 0, classify("trim_maxlen", err)
	}
	return n, nil
}

func (e *Engine) TrimMinID(ctx context.Context, stream, minID string, approx bool) (int64, error) {
	var cmd *redis.IntCmd
	if approx {
		cmd = e.client.XTrimMinIDApprox(ctx, stream, minID, 0)
	} else {
		cmd = e.client.XTrimMinID(ctx, stream, minID)
	}
	n, err := cmd.Result()
	if err != nil {
		return 0, classify("trim_minid", err)
	}
	return n, nil
}

func (e *Engine) Range(ctx context.Context, stream, start, end string) ([]xstream.Entry, error) {
	if start == "" {
		start = idFirst
	}
	if end == "" {
		end = idLast
	}
	msgs, err := e.client.XRange(ctx, stream, start, end).Result()
	if err != nil {
		return nil, classify("range", err)
	}
	out := make([]xstream.Entry, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toEntry(msg))
	}
	return out, nil
}

func (e *Engine) Pending(ctx context.Context, stream, group string) (xstream.PendingSummary, error) {
	p, err := e.client.XPending(ctx, stream, group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return xstream.PendingSummary{Consumers: map[string]int64{}}, nil
		}
		return xstream.PendingSummary{}, classify("pending", err)
	}
	ps := xstream.PendingSummary{
		Count:     p.Count,
		Lower:     p.Lower,
		Higher:    p.Higher,
		Consumers: make(map[string]int64, len(p.Consumers)),
	}
	for name, n := range p.Consumers {
		ps.Consumers[name] = n
	}
	return ps, nil
}

func (e *Engine) FlushAll(ctx context.Context) error {
	return classify("flush_all", e.client.FlushAll(ctx).Err())
}

func (e *Engine) Ping(ctx context.Context) error {
	if e.closed.Load() {
		return xstream.NewEngineError("ping", xstream.ErrEngineUnavailable, redis.ErrClosed)
	}
	return classify("ping", e.client.Ping(ctx).Err())
}

// Close gracefully shuts down the connection pool.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.client.Close()
}

// classify maps a driver error onto the xstream error kinds. Context errors
// pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	var netErr net.Error
	switch {
	case strings.HasPrefix(msg, prefixBusy):
		return xstream.NewEngineError(op, xstream.ErrGroupExists, err)
	case strings.HasPrefix(msg, prefixNoGr):
		return xstream.NewEngineError(op, xstream.ErrGroupNotFound, err)
	case strings.Contains(msg, msgNoKey):
		return xstream.NewEngineError(op, xstream.ErrStreamNotFound, err)
	case errors.Is(err, redis.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		return xstream.NewEngineError(op, xstream.ErrEngineUnavailable, err)
	}
	return xstream.NewEngineError(op, nil, err)
}

func ping(c *redis.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != replyPong {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
