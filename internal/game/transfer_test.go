package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransfer(t *testing.T) {
	w, audit := newTestWorld(t, flatRules(2, 1))
	s := loginN(t, w, 1)[0]
	l := w.Ledger()

	require.NoError(t, w.Transfer(1, 1000, ToHouse))
	require.Equal(t, uint64(99000), l.Inventory(s.Player).Money)
	require.Equal(t, uint64(6000), l.House(s.House).Money)

	require.NoError(t, w.Transfer(1, 6000, ToInventory))
	require.Equal(t, uint64(105000), l.Inventory(s.Player).Money)
	require.Equal(t, uint64(0), l.House(s.House).Money)

	ns := w.Drain()
	require.Equal(t, []string{"Transfer 1000 to house", "Transfer 6000 from house"}, messagesTo(ns, 1))
	require.Equal(t, 2, kinds(ns)[InventoryUpdated])

	last := audit.entries[len(audit.entries)-1]
	require.Equal(t, "TransferGolds", last.Operation)
	require.Equal(t, "Transfer 6000 from house at (0, 0)", last.Detail)
}

func TestTransferRefused(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(2, 1))
	s := loginN(t, w, 1)[0]
	l := w.Ledger()

	tests := []struct {
		name   string
		amount uint64
		dir    TransferDirection
		msg    string
	}{
		{"inventory short", 100001, ToHouse, "You don't have enough money in your inventory"},
		{"house short", 5001, ToInventory, "You don't have enough money in your house (5000)"},
		{"too large", math.MaxUint64, ToHouse, "You don't have that much money"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Transfer(1, tt.amount, tt.dir)
			require.ErrorIs(t, err, ErrInsufficientFunds)
			ns := w.Drain()
			require.Equal(t, []string{tt.msg}, messagesTo(ns, 1))
			// The client is re-synced even when refused.
			require.Equal(t, 1, kinds(ns)[InventoryUpdated])
		})
	}
	require.Equal(t, uint64(100000), l.Inventory(s.Player).Money)
	require.Equal(t, uint64(5000), l.House(s.House).Money)

	require.Error(t, w.Transfer(1, 1, TransferDirection(9)))
}

func TestTransferNotLoggedIn(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	err := w.Transfer(3, 10, ToHouse)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.Equal(t, []string{"Transfer failed, reason: Not logged in"}, messagesTo(w.Drain(), 3))
}

func TestTransferWhileLocked(t *testing.T) {
	w, _ := newTestWorld(t, flatRules(1, 1))
	s := loginN(t, w, 1)[0]
	w.roundLocked = true
	require.ErrorIs(t, w.Transfer(1, 10, ToHouse), ErrRoundLocked)
	require.Equal(t, uint64(100000), w.Ledger().Inventory(s.Player).Money)
}
