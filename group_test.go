package xstream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xstream"
)

// TestCreateGroup_Policy tests existing groups under both policies.
func TestCreateGroup_Policy(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))

	err := client.CreateGroup(ctx, "orders", "billing", xstream.WithGroupExistsPolicy(xstream.GroupExistsFail))
	require.ErrorIs(t, err, xstream.ErrGroupExists)

	require.ErrorIs(t, client.CreateGroup(ctx, "", "g"), xstream.ErrInvalidStream)
	require.ErrorIs(t, client.CreateGroup(ctx, "s", ""), xstream.ErrInvalidGroup)
}

// TestCreateGroup_StartID tests "$" skips the backlog while "0" replays it.
func TestCreateGroup_StartID(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	seed(t, client, "orders", 3)

	require.NoError(t, client.CreateGroup(ctx, "orders", "replay"))
	require.NoError(t, client.CreateGroup(ctx, "orders", "live", xstream.WithStartID("$")))

	read := func(group string) int {
		entries, err := client.Engine().ReadGroup(ctx, "orders", group, "c", xstream.NoBlock, 10)
		require.NoError(t, err)
		return len(entries)
	}
	assert.Equal(t, 3, read("replay"))
	assert.Equal(t, 0, read("live"))
}

// TestRemoveGroup tests the group and its pending list go away while the stream stays.
func TestRemoveGroup(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateGroup(ctx, "orders", "billing"))
	seed(t, client, "orders", 2)
	_, err := client.Engine().ReadGroup(ctx, "orders", "billing", "c", xstream.NoBlock, 2)
	require.NoError(t, err)

	n, err := client.PendingCount(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, client.RemoveGroup(ctx, "orders", "billing"))
	_, err = client.PendingCount(ctx, "orders", "billing")
	require.ErrorIs(t, err, xstream.ErrGroupNotFound)

	entries, err := client.Range(ctx, "orders", "", "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// TestTrim tests both trim strategies and their validation.
func TestTrim(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	ids := seed(t, client, "orders", 10)

	n, err := client.TrimToMaxLength(ctx, "orders", 4, false)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = client.TrimToMinID(ctx, "orders", ids[8], false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = client.TrimToMaxLength(ctx, "orders", -1, false)
	require.Error(t, err)
	_, err = client.TrimToMinID(ctx, "orders", "x", false)
	require.ErrorIs(t, err, xstream.ErrInvalidEntryID)

	assert.Equal(t, uint64(8), client.Metrics().Trimmed)
}

// TestClient_Health tests status transitions.
func TestClient_Health(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Open(ctx))
	assert.Equal(t, "healthy", client.Health(ctx).Status)

	require.NoError(t, client.Close(ctx))
	assert.Equal(t, "unhealthy", client.Health(ctx).Status)
	require.ErrorIs(t, client.Open(ctx), xstream.ErrClientClosed)
}

// TestClient_FlushAll tests every stream is wiped.
func TestClient_FlushAll(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	seed(t, client, "a", 2)

	require.NoError(t, client.FlushAll(ctx))
	entries, err := client.Range(ctx, "a", "", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestClient_RemoveObserver tests func-backed observers can be detached.
func TestClient_RemoveObserver(t *testing.T) {
	client, _ := newClient(t)
	calls := 0
	obs := xstream.ObserverFunc(func(e xstream.Event) { calls++ })

	client.AddObserver(obs)
	seed(t, client, "a", 1)
	client.RemoveObserver(obs)
	seed(t, client, "a", 1)

	assert.Equal(t, 1, calls)
}
