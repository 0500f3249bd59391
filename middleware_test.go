package xstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReceived = Received{Entry: Entry{ID: "1-0", Fields: Fields{"a": "1"}}, Stream: "s", Group: "g", ConsumerName: "c"}

// TestRetry_SucceedsEventually tests retries stop at the first success.
func TestRetry_SucceedsEventually(t *testing.T) {
	calls := 0
	h := Retry[struct{}, int](RetryConfig{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Millisecond },
	})(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return calls, nil
	})

	out, err := h(context.Background(), testReceived, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 2, out)
	assert.Equal(t, 2, calls)
}

// TestRetry_GivesUp tests the last error is returned after MaxAttempts.
func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	h := Retry[struct{}, int](RetryConfig{MaxAttempts: 3})(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		calls++
		return 0, boom
	})

	_, err := h(context.Background(), testReceived, struct{}{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

// TestRetry_RetryIf tests non-retryable errors fail at once.
func TestRetry_RetryIf(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	h := Retry[struct{}, int](RetryConfig{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return !errors.Is(err, fatal) },
	})(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		calls++
		return 0, fatal
	})

	_, err := h(context.Background(), testReceived, struct{}{})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

// TestRetry_SkipsEmpty tests Empty deliveries run exactly once.
func TestRetry_SkipsEmpty(t *testing.T) {
	calls := 0
	h := Retry[struct{}, int](RetryConfig{MaxAttempts: 3})(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		calls++
		return 0, errors.New("nothing to do")
	})

	_, err := h(context.Background(), Empty{Stream: "s"}, struct{}{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// TestTimeout_Expires tests a slow handler fails with DeadlineExceeded.
func TestTimeout_Expires(t *testing.T) {
	h := Timeout[struct{}, int](10 * time.Millisecond)(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	_, err := h(context.Background(), testReceived, struct{}{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestTimeout_Panic tests a panic inside the timed goroutine becomes a PanicError.
func TestTimeout_Panic(t *testing.T) {
	h := Timeout[struct{}, int](time.Second)(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		panic("kaboom")
	})

	_, err := h(context.Background(), testReceived, struct{}{})
	require.ErrorIs(t, err, ErrHandlerPanic)
}

// TestRecover tests panics become errors carrying the value.
func TestRecover(t *testing.T) {
	h := Recover[struct{}, int]()(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		panic("kaboom")
	})

	_, err := h(context.Background(), testReceived, struct{}{})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

// TestChain_Order tests the first middleware is outermost.
func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware[struct{}, int] {
		return func(next HandlerFunc[struct{}, int]) HandlerFunc[struct{}, int] {
			return func(ctx context.Context, d Delivery, in struct{}) (int, error) {
				order = append(order, name)
				return next(ctx, d, in)
			}
		}
	}
	h := Chain(func(ctx context.Context, d Delivery, _ struct{}) (int, error) {
		order = append(order, "handler")
		return 1, nil
	}, mw("a"), nil, mw("b"))

	_, err := h(context.Background(), testReceived, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
