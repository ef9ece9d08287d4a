package game

import (
	"fmt"
	"sort"
)

type Catch struct {
	Thief  PlayerID `json:"thief"`
	Owner  PlayerID `json:"owner"`
	Amount uint64   `json:"amount"`
}

type Raid struct {
	House    HouseID    `json:"houseId"`
	Owner    PlayerID   `json:"owner"`
	Entrants []PlayerID `json:"entrants"`
	Share    uint64     `json:"share"`
}

type Peek struct {
	Player    PlayerID `json:"player"`
	House     HouseID  `json:"houseId"`
	OwnerHome bool     `json:"ownerHome"`
}

// RoundSummary reports what a settled round did.
type RoundSummary struct {
	Round    uint64                 `json:"round"`
	Rent     uint64                 `json:"rent"`
	RentPaid map[PlayerID]uint64    `json:"rentPaid"`
	Catches  []Catch                `json:"catches"`
	Raids    []Raid                 `json:"raids"`
	Peeks    []Peek                 `json:"peeks"`
	Bots     map[PlayerID]Operation `json:"bots"`
}

// FinishRound settles the current round. Every logged-in human must have
// submitted; otherwise nothing changes and a *NotReadyError is returned.
// Bots are filled in, then rent, peeks and steals resolve in passes that
// do not depend on player order, raided houses are split, and the round
// advances.
func (w *World) FinishRound() (RoundSummary, error) {
	if w.roundLocked {
		return RoundSummary{}, ErrRoundLocked
	}
	w.roundLocked = true
	defer func() { w.roundLocked = false }()

	// Readiness only concerns humans, so it runs before bots touch anything.
	if missing := w.board.Missing(w.ids.Humans()); len(missing) > 0 {
		w.log.Printf("round %d not finished, waiting for %v", w.round, missing)
		return RoundSummary{}, &NotReadyError{Missing: missing}
	}

	sum := RoundSummary{
		Round:    w.round,
		Rent:     w.rules.Rent(w.round),
		RentPaid: make(map[PlayerID]uint64),
	}
	sum.Bots = w.runBots()

	players := w.board.submitters()
	ops := make(map[PlayerID]Operation, len(players))
	for _, p := range players {
		ops[p], _ = w.board.Get(p)
	}
	home := func(p PlayerID) bool { return ops[p].Kind == OpStayAtHome }

	for _, p := range players {
		if !home(p) {
			continue
		}
		paid := w.ledger.DebitInventoryClamped(p, sum.Rent)
		sum.RentPaid[p] = paid
		w.tell(p, fmt.Sprintf("You paid %d for rent", paid))
	}

	entered := make(map[HouseID][]PlayerID)
	for _, p := range players {
		op := ops[p]
		switch op.Kind {
		case OpPeek:
			owner := w.ledger.House(op.TargetHouse).Owner
			w.ledger.usePeek(p)
			atHome := home(owner)
			sum.Peeks = append(sum.Peeks, Peek{Player: p, House: op.TargetHouse, OwnerHome: atHome})
			if atHome {
				w.tell(p, "Peek result: target is at home")
			} else {
				w.tell(p, "Peek result: target is not at home")
			}
		case OpSteal:
			owner := w.ledger.House(op.TargetHouse).Owner
			if !home(owner) {
				entered[op.TargetHouse] = append(entered[op.TargetHouse], p)
				continue
			}
			lost := w.ledger.Inventory(p).Money / 2
			if err := w.ledger.AdjustInventoryMoney(p, -int64(lost)); err != nil {
				invariantf("caught thief %s: %v", p, err)
			}
			w.ledger.creditInventory(owner, lost)
			sum.Catches = append(sum.Catches, Catch{Thief: p, Owner: owner, Amount: lost})
			w.tell(p, fmt.Sprintf("You were caught, lost %d Golds", lost))
			w.tell(owner, fmt.Sprintf("You caught a thief, got %d Golds", lost))
		}
	}

	sum.Raids = w.settleHouses(entered)

	w.board.Clear()
	w.round++
	w.log.Printf("round %d finished: %d catches, %d raids, %d peeks", sum.Round, len(sum.Catches), len(sum.Raids), len(sum.Peeks))

	w.broadcast(fmt.Sprintf("Round %d Finished", sum.Round))
	for _, p := range w.ids.Humans() {
		w.syncInventory(w.ids.ConnOf(p), p)
	}
	w.syncLevel(0)
	w.emit(Notification{Kind: RoundAdvanced, Broadcast: true, Round: w.round})
	w.audit.Record(AuditEntry{At: w.now(), Round: sum.Round, Conn: ServerConn, Player: "Server", Operation: "FinishRound"})
	return sum, nil
}

// settleHouses moves half of each raided house to its entrants in equal
// integer shares; the remainder stays in the house.
func (w *World) settleHouses(entered map[HouseID][]PlayerID) []Raid {
	houses := make([]HouseID, 0, len(entered))
	for h := range entered {
		houses = append(houses, h)
	}
	sort.Slice(houses, func(i, j int) bool { return houses[i] < houses[j] })

	raids := make([]Raid, 0, len(houses))
	for _, id := range houses {
		entrants := entered[id]
		h := w.ledger.House(id)
		n := uint64(len(entrants))
		share := h.Money / (2 * n)
		if err := w.ledger.AdjustHouseMoney(id, -int64(share*n)); err != nil {
			invariantf("raid on %s: %v", id, err)
		}
		for _, p := range entrants {
			w.ledger.creditInventory(p, share)
			w.tell(p, fmt.Sprintf("You Stole %d Golds.", share))
			w.tell(h.Owner, fmt.Sprintf("Someone Stole %d Golds from your house.", share))
		}
		raids = append(raids, Raid{House: id, Owner: h.Owner, Entrants: entrants, Share: share})
	}
	return raids
}
