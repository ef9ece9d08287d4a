package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordIndex(t *testing.T) {
	require.Equal(t, uint64(21)<<32|9, CoordIndex(GridCoord{X: 21, Y: 9}))
	require.Equal(t, GridCoord{X: 21, Y: 9}, IndexToTile(CoordIndex(GridCoord{X: 21, Y: 9})))
	require.Panics(t, func() { CoordIndex(GridCoord{X: -1, Y: 0}) })
}

func TestGridIndexRoundTrip(t *testing.T) {
	r := DefaultRules()
	for y := 0; y < r.MapHeight; y++ {
		for x := 0; x < r.MapWidth; x++ {
			g := GridCoord{X: x, Y: y}
			require.Equal(t, g, r.IndexToGrid(r.GridToIndex(g)))
		}
	}
	require.Equal(t, GridCoord{X: 25, Y: 17}, r.GridToTile(GridCoord{X: 1, Y: 2}))
}

func TestLedgerLayout(t *testing.T) {
	w, _ := newTestWorld(t, DefaultRules())
	l := w.Ledger()

	coords := l.Coords()
	require.Len(t, coords, 16)
	require.Equal(t, GridCoord{X: 0, Y: 0}, coords[0])
	require.Equal(t, GridCoord{X: 1, Y: 0}, coords[1])

	for _, c := range coords {
		id, err := l.HouseAt(c)
		require.NoError(t, err)
		require.Equal(t, c, l.CoordOf(id))
		h := l.House(id)
		inv := l.Inventory(h.Owner)
		require.Equal(t, id, inv.HouseID)
		require.Equal(t, w.Rules().GridToIndex(c), inv.HouseIndex)
		require.Equal(t, uint64(100000), inv.Money)
		require.Equal(t, uint64(5000), h.Money)
		require.Equal(t, 20, inv.Keys)
		require.Equal(t, 3, inv.RemainingPeek)
	}

	_, err := l.HouseAt(GridCoord{X: 4, Y: 0})
	require.ErrorIs(t, err, ErrNoSuchHouse)
	_, err = l.HouseAt(GridCoord{X: 0, Y: -1})
	require.ErrorIs(t, err, ErrNoSuchHouse)

	lvl := l.Level(3)
	require.Equal(t, uint64(3), lvl.Round)
	require.Equal(t, 4, lvl.Width)
	require.Len(t, lvl.Houses, 16)
}

func TestLedgerAdjust(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	l := w.Ledger()
	p := l.Players()[0]
	h := l.Inventory(p).HouseID

	require.NoError(t, l.AdjustHouseMoney(h, -5000))
	require.Equal(t, uint64(0), l.House(h).Money)

	err := l.AdjustHouseMoney(h, -1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(0), l.House(h).Money)

	require.NoError(t, l.AdjustInventoryMoney(p, 0))
	require.ErrorIs(t, l.AdjustInventoryMoney(p, math.MinInt64), ErrInsufficientFunds)
	require.Equal(t, uint64(100000), l.Inventory(p).Money)

	require.Equal(t, uint64(100000), l.DebitInventoryClamped(p, 250000))
	require.Equal(t, uint64(0), l.Inventory(p).Money)
}

func TestLedgerRebalance(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	l := w.Ledger()
	p := l.Players()[0]
	h := l.Inventory(p).HouseID
	require.NoError(t, l.AdjustHouseMoney(h, 1))

	l.rebalance(p)
	require.Equal(t, uint64(52500), l.Inventory(p).Money)
	require.Equal(t, uint64(52501), l.House(h).Money)
}

func TestLedgerUnknownIDsPanic(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	require.PanicsWithError(t, `invariant violated: unknown house "nope"`, func() {
		w.Ledger().House("nope")
	})
	require.PanicsWithError(t, `invariant violated: unknown player "nobody"`, func() {
		w.Ledger().Inventory("nobody")
	})
}

func TestBoardOverwrite(t *testing.T) {
	b := NewBoard()
	b.Submit("a", Operation{Kind: OpPeek, TargetHouse: "h1"})
	b.Submit("a", Operation{Kind: OpSteal, TargetHouse: "h2"})
	require.Equal(t, 1, b.Len())

	op, ok := b.Get("a")
	require.True(t, ok)
	require.Equal(t, Operation{Kind: OpSteal, TargetHouse: "h2"}, op)

	require.False(t, b.AllSubmitted([]PlayerID{"a", "b"}))
	require.Equal(t, []PlayerID{"b"}, b.Missing([]PlayerID{"a", "b"}))

	b.Clear()
	require.Equal(t, 0, b.Len())
	require.True(t, b.AllSubmitted(nil))
}

func TestRulesRent(t *testing.T) {
	r := DefaultRules()
	require.Equal(t, uint64(1000), r.Rent(0))
	require.Equal(t, uint64(1000), r.Rent(1))
	require.Equal(t, uint64(3000), r.Rent(3))

	r.MapWidth = 0
	require.Error(t, r.Validate())
	_, err := New(r)
	require.Error(t, err)
}
