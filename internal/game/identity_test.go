package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newIdentities(players ...PlayerID) *IdentityMap {
	m := NewIdentityMap()
	m.addBots(players)
	return m
}

func TestIdentityBotsStartWithVirtualConns(t *testing.T) {
	m := newIdentities("p1", "p2", "p3")
	require.Equal(t, ConnID(-1), m.ConnOf("p1"))
	require.Equal(t, ConnID(-3), m.ConnOf("p3"))
	require.Equal(t, []PlayerID{"p1", "p2", "p3"}, m.Bots())
	require.Empty(t, m.Humans())
	require.Equal(t, 3, m.Available())

	p, err := m.Resolve(-2)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p2"), p)
	require.True(t, m.IsBotControlled(-2))
}

func TestIdentityLoginTakesFirstCreated(t *testing.T) {
	m := newIdentities("p1", "p2")

	res, err := m.Login("alice", 7)
	require.NoError(t, err)
	require.Equal(t, LoginResult{Player: "p1"}, res)
	require.Equal(t, ConnID(7), m.ConnOf("p1"))
	require.Equal(t, []PlayerID{"p1"}, m.Humans())
	require.Equal(t, []PlayerID{"p2"}, m.Bots())

	_, err = m.Resolve(-1)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	res, err = m.Login("bob", 8)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p2"), res.Player)

	_, err = m.Login("carol", 9)
	require.ErrorIs(t, err, ErrNoAvailableIdentity)
	_, err = m.Resolve(9)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestIdentityLoginRejectsBotConns(t *testing.T) {
	m := newIdentities("p1")
	_, err := m.Login("alice", 0)
	require.Error(t, err)
	_, err = m.Login("alice", -1)
	require.Error(t, err)
}

func TestIdentityLoginSameConnIsIdempotent(t *testing.T) {
	m := newIdentities("p1", "p2")
	_, err := m.Login("alice", 1)
	require.NoError(t, err)
	m.SetToken(1, "tok")

	res, err := m.Login("alice", 1)
	require.NoError(t, err)
	require.Equal(t, LoginResult{Player: "p1", Reconnected: true}, res)
	tok, ok := m.Token(1)
	require.True(t, ok)
	require.Equal(t, "tok", tok)
	require.Equal(t, 1, m.Available())
}

func TestIdentityReconnectSupersedes(t *testing.T) {
	m := newIdentities("p1", "p2")
	_, err := m.Login("alice", 1)
	require.NoError(t, err)
	m.SetToken(1, "old")

	res, err := m.Login("alice", 2)
	require.NoError(t, err)
	require.Equal(t, LoginResult{Player: "p1", Reconnected: true, Superseded: 1}, res)

	_, err = m.Resolve(1)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	_, ok := m.Token(1)
	require.False(t, ok)
	require.Equal(t, ConnID(2), m.ConnOf("p1"))
	require.Equal(t, 1, m.Available())
}

func TestIdentityLogoutRevertsToBot(t *testing.T) {
	m := newIdentities("p1", "p2")
	_, err := m.Login("alice", 1)
	require.NoError(t, err)

	p, err := m.Logout(1)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p1"), p)
	require.Equal(t, ConnID(-1), m.ConnOf("p1"))
	require.Equal(t, 2, m.Available())

	_, err = m.Logout(1)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = m.Logout(-1)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	// The client keeps its identity on return.
	res, err := m.Login("alice", 5)
	require.NoError(t, err)
	require.Equal(t, LoginResult{Player: "p1", Reconnected: true}, res)
	require.Equal(t, 1, m.Available())
}

func TestIdentityTakeoverPrefersUnclaimed(t *testing.T) {
	m := newIdentities("p1", "p2")
	_, err := m.Login("alice", 1)
	require.NoError(t, err)
	_, err = m.Logout(1)
	require.NoError(t, err)

	res, err := m.Login("bob", 2)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p2"), res.Player)

	// Only alice's released identity is left; carol takes it and alice
	// loses her binding.
	res, err = m.Login("carol", 3)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p1"), res.Player)
	require.False(t, res.Reconnected)
	c, ok := m.ClientOf("p1")
	require.True(t, ok)
	require.Equal(t, ClientHandle("carol"), c)

	_, err = m.Login("alice", 4)
	require.ErrorIs(t, err, ErrNoAvailableIdentity)
}

func TestIdentityConnSwitchesClient(t *testing.T) {
	m := newIdentities("p1", "p2")
	_, err := m.Login("alice", 1)
	require.NoError(t, err)

	res, err := m.Login("bob", 1)
	require.NoError(t, err)
	require.Equal(t, PlayerID("p2"), res.Player)
	require.Equal(t, ConnID(-1), m.ConnOf("p1"))
	require.Equal(t, ConnID(1), m.ConnOf("p2"))
}

func TestFreeListSwapRemove(t *testing.T) {
	f := newFreeList()
	f.push("a")
	f.push("b")
	f.push("c")
	f.push("a")
	require.Equal(t, 3, f.len())

	f.remove("a")
	require.Equal(t, 2, f.len())
	p, ok := f.pop()
	require.True(t, ok)
	require.Equal(t, PlayerID("b"), p)
	p, ok = f.pop()
	require.True(t, ok)
	require.Equal(t, PlayerID("c"), p)
	_, ok = f.pop()
	require.False(t, ok)
}
