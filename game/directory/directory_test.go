package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndAddress(t *testing.T) {
	d := New()
	d.Bind(1, "conn-a")

	conn, err := d.Address(1)
	require.NoError(t, err)
	assert.Equal(t, "conn-a", conn)

	player, err := d.Player("conn-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), player)

	_, err = d.Address(2)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectReplacesConnection(t *testing.T) {
	d := New()
	d.Bind(1, "conn-a")
	d.Bind(1, "conn-b")

	conn, _ := d.Address(1)
	assert.Equal(t, "conn-b", conn)

	_, err := d.Player("conn-a")
	assert.ErrorIs(t, err, ErrNotConnected)

	// The close of the old socket must not evict the new one.
	_, ok := d.RemoveConn("conn-a")
	assert.False(t, ok)
	assert.True(t, d.Connected(1))
}

func TestConnReusedByAnotherPlayer(t *testing.T) {
	d := New()
	d.Bind(1, "conn-a")
	d.Bind(2, "conn-a")

	assert.False(t, d.Connected(1))
	player, err := d.Player("conn-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), player)
}

func TestMatchBinding(t *testing.T) {
	d := New()

	assert.ErrorIs(t, d.SetMatch(1, 10), ErrNotConnected)

	d.Bind(1, "conn-a")
	_, ok := d.ActiveMatch(1)
	assert.False(t, ok)

	require.NoError(t, d.SetMatch(1, 10))
	match, ok := d.ActiveMatch(1)
	assert.True(t, ok)
	assert.Equal(t, int64(10), match)

	entry, ok := d.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), entry.MatchID)
	assert.False(t, entry.JoinedAt.IsZero())
}

func TestRemove(t *testing.T) {
	d := New()
	d.Bind(1, "conn-a")
	d.Bind(2, "conn-b")

	d.Remove(1)
	d.Remove(1)
	d.Remove(42)

	assert.False(t, d.Connected(1))
	assert.True(t, d.Connected(2))
	assert.Equal(t, 1, d.Len())

	id, ok := d.RemoveConn("conn-b")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
	assert.Zero(t, d.Len())
}
