package xstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseEntryID tests the full and short id forms.
func TestParseEntryID(t *testing.T) {
	id, err := ParseEntryID("1700000000000-3")
	require.NoError(t, err)
	assert.Equal(t, EntryID{Ms: 1700000000000, Seq: 3}, id)
	assert.Equal(t, "1700000000000-3", id.String())

	id, err = ParseEntryID("42")
	require.NoError(t, err)
	assert.Equal(t, EntryID{Ms: 42}, id)

	for _, bad := range []string{"", "-", "a-1", "1-b", "1-2-3"} {
		_, err := ParseEntryID(bad)
		require.ErrorIs(t, err, ErrInvalidEntryID, bad)
	}
}

// TestEntryID_Order tests Compare and Next.
func TestEntryID_Order(t *testing.T) {
	a := EntryID{Ms: 1, Seq: 5}
	b := EntryID{Ms: 2}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, EntryID{Ms: 1, Seq: 6}, a.Next())
	assert.Equal(t, EntryID{Ms: 2}, EntryID{Ms: 1, Seq: ^uint64(0)}.Next())
	assert.Equal(t, "0-0", MinEntryID.String())
	assert.Equal(t, -1, MinEntryID.Compare(a))
}
