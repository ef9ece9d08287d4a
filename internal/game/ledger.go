package game

import (
	"fmt"
	"math"
	"sort"
)

// LevelHouse is one entry of the immutable house layout.
type LevelHouse struct {
	Index   uint64    `json:"index"`
	Grid    GridCoord `json:"grid"`
	HouseID HouseID   `json:"houseId"`
}

type Level struct {
	Round  uint64       `json:"round"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Houses []LevelHouse `json:"houses"`
}

// Ledger owns every house and inventory of a world together with the
// coordinate index of the house layout. It is not safe for concurrent use;
// the owning World serializes access.
type Ledger struct {
	rules Rules

	houses      map[HouseID]*House
	inventories map[PlayerID]*Inventory

	byIndex map[uint64]HouseID
	indexOf map[HouseID]uint64
	layout  []LevelHouse
}

func newLedger(rules Rules) *Ledger {
	return &Ledger{
		rules:       rules,
		houses:      make(map[HouseID]*House),
		inventories: make(map[PlayerID]*Inventory),
		byIndex:     make(map[uint64]HouseID),
		indexOf:     make(map[HouseID]uint64),
	}
}

// addHouse creates the house at grid together with its owner's inventory.
// Only called while building a world.
func (l *Ledger) addHouse(grid GridCoord, id HouseID, owner PlayerID) {
	if _, dup := l.houses[id]; dup {
		invariantf("duplicate house id %s", id)
	}
	if _, dup := l.inventories[owner]; dup {
		invariantf("player %s already owns a house", owner)
	}
	index := l.rules.GridToIndex(grid)
	l.houses[id] = &House{ID: id, Owner: owner, Money: l.rules.InitialHouseMoney}
	l.inventories[owner] = &Inventory{
		Keys:          l.rules.InitialKeys,
		Money:         l.rules.InitialMoney,
		RemainingPeek: l.rules.InitialPeekChance,
		HouseID:       id,
		HouseIndex:    index,
	}
	l.byIndex[index] = id
	l.indexOf[id] = index
	l.layout = append(l.layout, LevelHouse{Index: index, Grid: grid, HouseID: id})
}

func (l *Ledger) house(id HouseID) *House {
	h, ok := l.houses[id]
	if !ok {
		invariantf("unknown house %q", id)
	}
	return h
}

func (l *Ledger) inventory(player PlayerID) *Inventory {
	inv, ok := l.inventories[player]
	if !ok {
		invariantf("unknown player %q", player)
	}
	return inv
}

func (l *Ledger) HasHouse(id HouseID) bool {
	_, ok := l.houses[id]
	return ok
}

func (l *Ledger) House(id HouseID) House { return *l.house(id) }

func (l *Ledger) Inventory(player PlayerID) Inventory { return *l.inventory(player) }

// AdjustHouseMoney applies delta to a house. A result below zero fails
// with ErrInsufficientFunds and leaves the balance untouched.
func (l *Ledger) AdjustHouseMoney(id HouseID, delta int64) error {
	h := l.house(id)
	next, err := applyDelta(h.Money, delta)
	if err != nil {
		return fmt.Errorf("house %s: %w", id, err)
	}
	h.Money = next
	return nil
}

// AdjustInventoryMoney is AdjustHouseMoney for a player's inventory.
func (l *Ledger) AdjustInventoryMoney(player PlayerID, delta int64) error {
	inv := l.inventory(player)
	next, err := applyDelta(inv.Money, delta)
	if err != nil {
		return fmt.Errorf("player %s: %w", player, err)
	}
	inv.Money = next
	return nil
}

// DebitInventoryClamped takes up to amount from the player's inventory and
// returns what was actually taken.
func (l *Ledger) DebitInventoryClamped(player PlayerID, amount uint64) uint64 {
	inv := l.inventory(player)
	if amount > inv.Money {
		amount = inv.Money
	}
	inv.Money -= amount
	return amount
}

func (l *Ledger) creditInventory(player PlayerID, amount uint64) {
	inv := l.inventory(player)
	if inv.Money > math.MaxUint64-amount {
		invariantf("inventory of %s overflows", player)
	}
	inv.Money += amount
}

func (l *Ledger) usePeek(player PlayerID) {
	inv := l.inventory(player)
	if inv.RemainingPeek <= 0 {
		invariantf("player %s peeked without chances", player)
	}
	inv.RemainingPeek--
}

// rebalance splits the player's combined inventory and house money evenly,
// the odd unit staying in the house.
func (l *Ledger) rebalance(player PlayerID) {
	inv := l.inventory(player)
	h := l.house(inv.HouseID)
	total := inv.Money + h.Money
	inv.Money = total / 2
	h.Money = total - inv.Money
}

// HouseAt resolves a grid coordinate to the house built there.
func (l *Ledger) HouseAt(grid GridCoord) (HouseID, error) {
	if !l.rules.inMap(grid) {
		return "", fmt.Errorf("%w at %v", ErrNoSuchHouse, grid)
	}
	id, ok := l.byIndex[l.rules.GridToIndex(grid)]
	if !ok {
		invariantf("no house indexed at %v", grid)
	}
	return id, nil
}

// CoordOf returns the grid coordinate of a house.
func (l *Ledger) CoordOf(id HouseID) GridCoord {
	index, ok := l.indexOf[id]
	if !ok {
		invariantf("unknown house %q", id)
	}
	return l.rules.IndexToGrid(index)
}

// Coords lists every house coordinate in layout order.
func (l *Ledger) Coords() []GridCoord {
	out := make([]GridCoord, len(l.layout))
	for i, h := range l.layout {
		out[i] = h.Grid
	}
	return out
}

func (l *Ledger) Level(round uint64) Level {
	houses := make([]LevelHouse, len(l.layout))
	copy(houses, l.layout)
	return Level{Round: round, Width: l.rules.MapWidth, Height: l.rules.MapHeight, Houses: houses}
}

// Players returns every player owning a house, sorted.
func (l *Ledger) Players() []PlayerID {
	out := make([]PlayerID, 0, len(l.inventories))
	for id := range l.inventories {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func applyDelta(cur uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		d := uint64(delta)
		if cur > math.MaxUint64-d {
			return cur, fmt.Errorf("balance overflow")
		}
		return cur + d, nil
	}
	d := uint64(-(delta + 1)) + 1
	if d > cur {
		return cur, ErrInsufficientFunds
	}
	return cur - d, nil
}
