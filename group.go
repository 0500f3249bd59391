package xstream

import (
	"context"
	"errors"
)

// GroupOption tunes a single CreateGroup call.
type GroupOption func(*groupOptions)

type groupOptions struct {
	startID string
	policy  *GroupExistsPolicy
}

// WithStartID sets the id the group starts reading after. "0" (default)
// delivers the whole stream, "$" only entries appended from now on.
func WithStartID(id string) GroupOption {
	return func(o *groupOptions) { o.startID = id }
}

// WithGroupExistsPolicy overrides the client default for one call.
func WithGroupExistsPolicy(p GroupExistsPolicy) GroupOption {
	return func(o *groupOptions) { o.policy = &p }
}

// CreateGroup creates group on stream, creating the stream when absent.
func (c *Client) CreateGroup(ctx context.Context, stream, group string, opts ...GroupOption) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if stream == "" {
		return ErrInvalidStream
	}
	if group == "" {
		return ErrInvalidGroup
	}
	o := groupOptions{startID: "0"}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	policy := c.groupExists
	if o.policy != nil {
		policy = *o.policy
	}

	err := c.engine.CreateGroup(ctx, stream, group, o.startID)
	if errors.Is(err, ErrGroupExists) {
		if policy == GroupExistsIgnore {
			c.logger.Debug().Str("stream", stream).Str("group", group).Msg("xstream: group already exists")
			return nil
		}
		return err
	}
	if err != nil {
		return c.fail("create_group", stream, group, err)
	}
	c.notify(Event{Type: EventGroupCreated, Stream: stream, Group: group})
	return nil
}

// RemoveGroup deletes group with its cursor and pending list. The stream stays.
func (c *Client) RemoveGroup(ctx context.Context, stream, group string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if stream == "" {
		return ErrInvalidStream
	}
	if group == "" {
		return ErrInvalidGroup
	}
	if err := c.engine.DestroyGroup(ctx, stream, group); err != nil {
		return c.fail("destroy_group", stream, group, err)
	}
	c.notify(Event{Type: EventGroupRemoved, Stream: stream, Group: group})
	return nil
}

// Pending summarizes the pending entry list of group.
func (c *Client) Pending(ctx context.Context, stream, group string) (PendingSummary, error) {
	if c.closed.Load() {
		return PendingSummary{}, ErrClientClosed
	}
	if stream == "" {
		return PendingSummary{}, ErrInvalidStream
	}
	if group == "" {
		return PendingSummary{}, ErrInvalidGroup
	}
	ps, err := c.engine.Pending(ctx, stream, group)
	if err != nil {
		return PendingSummary{}, c.fail("pending", stream, group, err)
	}
	return ps, nil
}

// PendingCount is the number of delivered, unacknowledged entries of group.
func (c *Client) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	ps, err := c.Pending(ctx, stream, group)
	if err != nil {
		return 0, err
	}
	return ps.Count, nil
}
