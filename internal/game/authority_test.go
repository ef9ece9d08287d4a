package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type collectOutbox struct {
	mu sync.Mutex
	ns []Notification
}

func (o *collectOutbox) Publish(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ns = append(o.ns, n)
}

func (o *collectOutbox) snapshot() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notification(nil), o.ns...)
}

func startAuthority(t *testing.T, rules Rules) (*Authority, *collectOutbox, context.CancelFunc, <-chan error) {
	t.Helper()
	w, _ := newTestWorld(t, rules)
	out := &collectOutbox{}
	a := NewAuthority(w, out, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	t.Cleanup(cancel)
	return a, out, cancel, errc
}

func TestAuthorityRound(t *testing.T) {
	a, out, _, _ := startAuthority(t, flatRules(2, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sa, err := a.Login(ctx, "alice", 1)
	require.NoError(t, err)
	sb, err := a.Login(ctx, "bob", 2)
	require.NoError(t, err)
	require.Empty(t, a.Identities().Bots())

	_, err = a.FinishRound(ctx)
	require.ErrorIs(t, err, ErrNotAllPlayersReady)

	require.NoError(t, a.SubmitOperation(ctx, SubmitRequest{Conn: 1, Coord: &sb.Coord, Kind: OpSteal, Token: sa.Token}))
	require.NoError(t, a.SubmitOperation(ctx, SubmitRequest{Conn: 2, Kind: OpStayAtHome, Token: sb.Token}))
	err = a.SubmitOperation(ctx, SubmitRequest{Conn: 2, House: sb.House, Kind: OpSteal, Token: sb.Token})
	require.ErrorIs(t, err, ErrOwnHouse)

	sum, err := a.FinishRound(ctx)
	require.NoError(t, err)
	require.Len(t, sum.Catches, 1)

	inv, err := a.Inventory(ctx, 2, false)
	require.NoError(t, err)
	require.Equal(t, uint64(150000), inv.Money)

	lvl, err := a.Level(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), lvl.Round)

	require.NoError(t, a.Transfer(ctx, 2, 50000, ToHouse))
	roster, err := a.Roster(ctx)
	require.NoError(t, err)
	for _, e := range roster {
		if e.Player == sb.Player {
			require.Equal(t, uint64(55000), e.HouseMoney)
		}
	}

	require.NoError(t, a.Logout(ctx, 1))
	require.Len(t, a.Identities().Bots(), 1)

	var advanced bool
	for _, n := range out.snapshot() {
		if n.Kind == RoundAdvanced {
			advanced = true
			require.Equal(t, uint64(2), n.Round)
		}
	}
	require.True(t, advanced)
}

func TestAuthorityStopped(t *testing.T) {
	a, _, cancel, errc := startAuthority(t, flatRules(1, 1))
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	_, err := a.Login(context.Background(), "alice", 1)
	require.ErrorIs(t, err, ErrStopped)
	_, err = a.FinishRound(context.Background())
	require.ErrorIs(t, err, ErrStopped)
}

func TestAuthorityCallerContext(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	a := NewAuthority(w, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nobody runs the loop, so the call gives up with the caller.
	_, err := a.Roster(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
