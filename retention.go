package xstream

import (
	"context"
	"fmt"
)

// TrimToMaxLength trims stream to its newest count entries and returns how
// many were removed. Approximate trimming may keep more.
func (c *Client) TrimToMaxLength(ctx context.Context, stream string, count int64, approximate bool) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}
	if stream == "" {
		return 0, ErrInvalidStream
	}
	if count < 0 {
		return 0, fmt.Errorf("xstream: max length must be >= 0, got %d", count)
	}
	n, err := c.engine.TrimMaxLen(ctx, stream, count, approximate)
	if err != nil {
		return 0, c.fail("trim_maxlen", stream, "", err)
	}
	c.trimmed(stream, n)
	return n, nil
}

// TrimToMinID removes entries with an id lower than id.
func (c *Client) TrimToMinID(ctx context.Context, stream, id string, approximate bool) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}
	if stream == "" {
		return 0, ErrInvalidStream
	}
	if _, err := ParseEntryID(id); err != nil {
		return 0, err
	}
	n, err := c.engine.TrimMinID(ctx, stream, id, approximate)
	if err != nil {
		return 0, c.fail("trim_minid", stream, "", err)
	}
	c.trimmed(stream, n)
	return n, nil
}

func (c *Client) trimmed(stream string, n int64) {
	if n <= 0 {
		return
	}
	c.metrics.trimmed.Add(uint64(n))
	c.notify(Event{Type: EventTrimmed, Stream: stream, Count: n})
}
