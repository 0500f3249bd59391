package xstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// NoBlock makes a consume cycle return Empty at once when nothing is queued.
const NoBlock time.Duration = -1

// HandlerFunc processes one delivery. For Received, a nil error acknowledges
// the entry and any error leaves it pending.
type HandlerFunc[In, Out any] func(ctx context.Context, d Delivery, in In) (Out, error)

// ConsumerOption configures a consumer binding.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	name      string
	factory   func() string
	block     time.Duration
	autoClaim bool
	minIdle   time.Duration
}

// WithConsumerName fixes the consumer name.
func WithConsumerName(name string) ConsumerOption {
	return func(c *consumerConfig) { c.name = name }
}

// WithConsumerFactory resolves the consumer name once per cycle.
func WithConsumerFactory(f func() string) ConsumerOption {
	return func(c *consumerConfig) { c.factory = f }
}

// WithBlock sets how long a read waits: 0 forever, NoBlock not at all.
func WithBlock(d time.Duration) ConsumerOption {
	return func(c *consumerConfig) { c.block = d }
}

// WithAutoClaim takes over entries other consumers left pending for at least
// minIdle before reading new ones.
func WithAutoClaim(minIdle time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.autoClaim = true
		c.minIdle = max(minIdle, 0)
	}
}

// UUIDConsumerNames returns a factory yielding prefix plus a random UUID.
func UUIDConsumerNames(prefix string) func() string {
	return func() string { return prefix + uuid.NewString() }
}

// DefaultConsumerName is "<hostname>-<pid>".
func DefaultConsumerName() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "xstream"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Consumer runs the claim, read, handle, acknowledge cycle for one group.
type Consumer[In, Out any] struct {
	client  *Client
	stream  string
	group   string
	cfg     consumerConfig
	handler HandlerFunc[In, Out]
	chain   HandlerFunc[In, Out]
}

// NewConsumer binds handler to group on stream. The group must exist before
// the first Consume.
func NewConsumer[In, Out any](client *Client, stream, group string, handler HandlerFunc[In, Out], opts ...ConsumerOption) (*Consumer[In, Out], error) {
	if client == nil {
		return nil, errors.New("xstream: consumer needs a client")
	}
	if stream == "" {
		return nil, ErrInvalidStream
	}
	if group == "" {
		return nil, ErrInvalidGroup
	}
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	cfg := consumerConfig{}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.name == "" && cfg.factory == nil {
		cfg.name = DefaultConsumerName()
	}
	c := &Consumer[In, Out]{client: client, stream: stream, group: group, cfg: cfg, handler: handler}
	c.chain = Recover[In, Out]()(handler)
	return c, nil
}

// Use wraps the handler with mws, first outermost. Recover stays innermost.
// Call it before the consumer runs.
func (c *Consumer[In, Out]) Use(mws ...Middleware[In, Out]) *Consumer[In, Out] {
	c.chain = Chain(c.chain, mws...)
	return c
}

func (c *Consumer[In, Out]) Stream() string { return c.stream }

func (c *Consumer[In, Out]) Group() string { return c.group }

func (c *Consumer[In, Out]) consumerName() string {
	if c.cfg.factory != nil {
		if n := c.cfg.factory(); n != "" {
			return n
		}
	}
	if c.cfg.name != "" {
		return c.cfg.name
	}
	return DefaultConsumerName()
}

// Consume runs one cycle and returns what the handler returned. Handler
// errors come back unchanged and leave the entry pending.
func (c *Consumer[In, Out]) Consume(ctx context.Context, in In) (Out, error) {
	var zero Out
	cl := c.client
	if cl.closed.Load() {
		return zero, ErrClientClosed
	}

	name := c.consumerName()
	entry, claimed, err := c.next(ctx, name)
	if err != nil {
		return zero, err
	}

	hctx := injectConsumer(ctx, name)
	hctx = injectLogger(hctx, cl.logger)
	hctx = injectClock(hctx, cl.clock)

	if entry == nil {
		cl.metrics.empty.Add(1)
		cl.notify(Event{Type: EventEmpty, Stream: c.stream, Group: c.group, Consumer: name})
		return c.chain(hctx, Empty{Stream: c.stream, Group: c.group, ConsumerName: name}, in)
	}

	d := Received{Entry: *entry, Stream: c.stream, Group: c.group, ConsumerName: name, Claimed: claimed}
	start := cl.clock.Now()
	out, err := c.chain(hctx, d, in)
	dur := cl.clock.Since(start)
	cl.recordHandlerTime(dur.Nanoseconds())

	if err != nil {
		cl.metrics.failed.Add(1)
		cl.notify(Event{
			Type:     EventHandlerFailed,
			Stream:   c.stream,
			Group:    c.group,
			Consumer: name,
			EntryID:  entry.ID,
			Duration: dur,
			Err:      err,
		})
		return out, err
	}

	if err := cl.ack(ctx, c.stream, c.group, name, entry.ID); err != nil {
		return out, err
	}
	return out, nil
}

// next claims a stale entry when auto-claim is on, else reads a new one.
// A nil entry means the block window passed with nothing to deliver.
func (c *Consumer[In, Out]) next(ctx context.Context, name string) (*Entry, bool, error) {
	cl := c.client
	if c.cfg.autoClaim {
		res, err := cl.engine.ClaimStale(ctx, c.stream, c.group, name, c.cfg.minIdle, 1)
		if err != nil {
			return nil, false, cl.fail("claim", c.stream, c.group, err)
		}
		if len(res.Deleted) > 0 {
			cl.logger.Debug().
				Str("stream", c.stream).
				Str("group", c.group).
				Str("consumer", name).
				Msg("xstream: dropped pending ids of trimmed entries")
		}
		if len(res.Entries) > 0 {
			e := res.Entries[0]
			cl.metrics.claimed.Add(1)
			cl.metrics.received.Add(1)
			cl.notify(Event{Type: EventClaimed, Stream: c.stream, Group: c.group, Consumer: name, EntryID: e.ID})
			return &e, true, nil
		}
	}

	entries, err := cl.engine.ReadGroup(ctx, c.stream, c.group, name, c.cfg.block, 1)
	if err != nil {
		return nil, false, cl.fail("read_group", c.stream, c.group, err)
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	e := entries[0]
	cl.metrics.received.Add(1)
	cl.notify(Event{Type: EventReceived, Stream: c.stream, Group: c.group, Consumer: name, EntryID: e.ID})
	return &e, false, nil
}

// Runner adapts the consumer to a Worker, discarding handler results.
func (c *Consumer[In, Out]) Runner(in In) Runner {
	return RunnerFunc(func(ctx context.Context) error {
		_, err := c.Consume(ctx, in)
		return err
	})
}
