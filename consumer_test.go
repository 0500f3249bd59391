package xstream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xstream"
	"github.com/trickstertwo/xstream/adapter/memory"
)

type none struct{}

// manualTime is a settable time source shared by the engine under test.
type manualTime struct {
	mu sync.Mutex
	t  time.Time
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

// recorder collects events delivered to it.
type recorder struct {
	mu     sync.Mutex
	events []xstream.Event
}

func (r *recorder) OnEvent(e xstream.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []xstream.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xstream.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newClient(t *testing.T, opts ...memory.Option) (*xstream.Client, *manualTime) {
	t.Helper()
	now := &manualTime{t: time.UnixMilli(1_700_000_000_000)}
	eng := memory.NewEngine(memory.Config{}, memory.WithNow(now.Now))
	opts = append([]memory.Option{memory.WithEngine(eng), memory.WithSyncObservers()}, opts...)
	client, err := memory.New(memory.Config{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client, now
}

func seed(t *testing.T, client *xstream.Client, stream string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := client.Append(context.Background(), stream, xstream.Fields{"i": i}, xstream.Retention{})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// TestConsume_AcksOnSuccess tests a successful handler acknowledges the entry.
func TestConsume_AcksOnSuccess(t *testing.T) {
	rec := &recorder{}
	client, _ := newClient(t, memory.WithObserver(rec))
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	ids := seed(t, client, "orders", 1)

	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, prefix string) (string, error) {
			r := d.(xstream.Received)
			return prefix + r.Fields.String("i"), nil
		},
		xstream.WithConsumerName("c1"), xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)

	out, err := c.Consume(ctx, "entry-")
	require.NoError(t, err)
	assert.Equal(t, "entry-0", out)

	n, err := client.PendingCount(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []xstream.EventType{
		xstream.EventGroupCreated,
		xstream.EventProduced,
		xstream.EventReceived,
		xstream.EventAcked,
	}, rec.types())
	assert.Equal(t, ids[0], rec.events[3].EntryID)
}

// TestConsume_FailureLeavesPending tests a handler error is returned unchanged and nothing is acked.
func TestConsume_FailureLeavesPending(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	seed(t, client, "orders", 1)

	boom := errors.New("boom")
	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (int, error) { return 7, boom },
		xstream.WithConsumerName("c1"), xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)

	out, err := c.Consume(ctx, none{})
	require.Equal(t, boom, err)
	assert.Equal(t, 7, out)

	ps, err := client.Pending(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ps.Count)
	assert.Equal(t, map[string]int64{"c1": 1}, ps.Consumers)

	// the same consumer does not see it again as a new entry
	_, err = c.Consume(ctx, none{})
	require.Equal(t, boom, err)
	m := client.Metrics()
	assert.Equal(t, uint64(1), m.Empty)
	assert.Equal(t, uint64(1), m.HandlerFailures)
	assert.Zero(t, m.Acked)
}

// TestConsume_PanicLeavesPending tests a panicking handler fails the cycle.
func TestConsume_PanicLeavesPending(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	seed(t, client, "orders", 1)

	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (none, error) { panic("kaboom") },
		xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)

	_, err = c.Consume(ctx, none{})
	require.ErrorIs(t, err, xstream.ErrHandlerPanic)

	n, err := client.PendingCount(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestConsume_Empty tests the handler sees Empty when nothing is queued.
func TestConsume_Empty(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))

	var got xstream.Delivery
	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (none, error) {
			got = d
			return none{}, nil
		},
		xstream.WithConsumerName("c1"), xstream.WithBlock(5*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Consume(ctx, none{})
	require.NoError(t, err)
	require.IsType(t, xstream.Empty{}, got)
	assert.Equal(t, "c1", got.Consumer())
	assert.Equal(t, uint64(1), client.Metrics().Empty)
}

// TestConsume_AutoClaim tests a stale entry moves to the claiming consumer.
func TestConsume_AutoClaim(t *testing.T) {
	client, now := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	ids := seed(t, client, "orders", 2)

	failing, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (none, error) { return none{}, errors.New("crash") },
		xstream.WithConsumerName("dead"), xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)
	_, err = failing.Consume(ctx, none{})
	require.Error(t, err)

	var seen []xstream.Received
	claimer, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (none, error) {
			if r, ok := d.(xstream.Received); ok {
				seen = append(seen, r)
			}
			return none{}, nil
		},
		xstream.WithConsumerName("alive"), xstream.WithBlock(xstream.NoBlock), xstream.WithAutoClaim(30*time.Second))
	require.NoError(t, err)

	// not stale yet: the claimer reads the second, new entry
	_, err = claimer.Consume(ctx, none{})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, ids[1], seen[0].ID)
	assert.False(t, seen[0].Claimed)

	now.Advance(time.Minute)
	_, err = claimer.Consume(ctx, none{})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, ids[0], seen[1].ID)
	assert.True(t, seen[1].Claimed)

	n, err := client.PendingCount(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestConsume_ContextValues tests the handler context carries consumer, logger and clock.
func TestConsume_ContextValues(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))

	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (bool, error) {
			name, ok := xstream.ConsumerFromContext(ctx)
			if !ok || name != "c9" {
				return false, nil
			}
			if _, ok := xstream.LoggerFromContext(ctx); !ok {
				return false, nil
			}
			_, ok = xstream.ClockFromContext(ctx)
			return ok, nil
		},
		xstream.WithConsumerName("c9"), xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)

	ok, err := c.Consume(ctx, none{})
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestConsume_Middleware tests Use wraps the handler with retries.
func TestConsume_Middleware(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	seed(t, client, "orders", 1)

	calls := 0
	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("transient")
			}
			return calls, nil
		},
		xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)
	c.Use(xstream.Retry[none, int](xstream.RetryConfig{MaxAttempts: 2}))

	out, err := c.Consume(ctx, none{})
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	n, err := client.PendingCount(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestConsume_Validation tests constructor and closed-client errors.
func TestConsume_Validation(t *testing.T) {
	client, _ := newClient(t)
	h := func(ctx context.Context, d xstream.Delivery, _ none) (none, error) { return none{}, nil }

	_, err := xstream.NewConsumer(client, "", "g", h)
	require.ErrorIs(t, err, xstream.ErrInvalidStream)
	_, err = xstream.NewConsumer(client, "s", "", h)
	require.ErrorIs(t, err, xstream.ErrInvalidGroup)
	_, err = xstream.NewConsumer[none, none](client, "s", "g", nil)
	require.ErrorIs(t, err, xstream.ErrInvalidHandler)

	c, err := xstream.NewConsumer(client, "s", "g", h)
	require.NoError(t, err)
	require.NoError(t, client.Close(context.Background()))
	_, err = c.Consume(context.Background(), none{})
	require.ErrorIs(t, err, xstream.ErrClientClosed)
}

// TestConsume_GroupNotFound tests consuming before the group exists.
func TestConsume_GroupNotFound(t *testing.T) {
	client, _ := newClient(t)
	seed(t, client, "orders", 1)

	c, err := xstream.NewConsumer(client, "orders", "billing",
		func(ctx context.Context, d xstream.Delivery, _ none) (none, error) { return none{}, nil },
		xstream.WithBlock(xstream.NoBlock))
	require.NoError(t, err)

	_, err = c.Consume(context.Background(), none{})
	require.ErrorIs(t, err, xstream.ErrGroupNotFound)
}

// TestConsumerNames tests the default and UUID name factories.
func TestConsumerNames(t *testing.T) {
	assert.NotEmpty(t, xstream.DefaultConsumerName())

	f := xstream.UUIDConsumerNames("w-")
	a, b := f(), f()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^w-[0-9a-f-]{36}$`, a)
}
