package game

import (
	"fmt"
	"math"
)

// Transfer moves amount between the caller's inventory and house. It is not
// gated by rounds, but is refused while a settlement holds the lock. The
// caller's inventory is re-synced whatever the outcome.
func (w *World) Transfer(conn ConnID, amount uint64, dir TransferDirection) error {
	player, err := w.ids.Resolve(conn)
	if err != nil {
		w.tellConn(conn, "", fmt.Sprintf("Transfer failed, reason: %s", Reason(err)))
		return err
	}
	defer w.syncInventory(conn, player)

	if w.roundLocked {
		w.tellConn(conn, player, fmt.Sprintf("Transfer failed, reason: %s", Reason(ErrRoundLocked)))
		return ErrRoundLocked
	}
	if dir != ToHouse && dir != ToInventory {
		return fmt.Errorf("unknown transfer direction %d", int(dir))
	}

	inv := w.ledger.Inventory(player)
	house := w.ledger.House(inv.HouseID)
	if amount > math.MaxInt64 {
		w.tellConn(conn, player, "You don't have that much money")
		err = ErrInsufficientFunds
	} else if dir == ToHouse && inv.Money < amount {
		w.tellConn(conn, player, "You don't have enough money in your inventory")
		err = ErrInsufficientFunds
	} else if dir == ToInventory && house.Money < amount {
		w.tellConn(conn, player, fmt.Sprintf("You don't have enough money in your house (%d)", house.Money))
		err = ErrInsufficientFunds
	}
	if err != nil {
		w.log.Printf("[%d] transfer of %d %v house refused: %v", conn, amount, dir, err)
		return err
	}

	delta := int64(amount)
	if dir == ToInventory {
		delta = -delta
	}
	if err := w.ledger.AdjustInventoryMoney(player, -delta); err != nil {
		invariantf("transfer from inventory of %s: %v", player, err)
	}
	if err := w.ledger.AdjustHouseMoney(inv.HouseID, delta); err != nil {
		invariantf("transfer from house %s: %v", inv.HouseID, err)
	}

	coord := w.ledger.CoordOf(inv.HouseID)
	w.tellConn(conn, player, fmt.Sprintf("Transfer %d %v house", amount, dir))
	w.record(conn, player, "TransferGolds", fmt.Sprintf("Transfer %d %v house at %v", amount, dir, coord), &coord)
	return nil
}
