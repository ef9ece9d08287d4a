package game

import "math/rand"

var botKinds = [...]OperationKind{OpPeek, OpSteal, OpStayAtHome}

// RandomBot picks operations for identities nobody is playing.
type RandomBot struct {
	rng *rand.Rand
}

func NewRandomBot(rng *rand.Rand) *RandomBot {
	return &RandomBot{rng: rng}
}

// Decide picks a kind uniformly and, unless staying home, a target among
// coords that differs from own in both axes. On maps too narrow for that
// any other house will do; a lone house always stays home.
func (b *RandomBot) Decide(inv Inventory, own GridCoord, coords []GridCoord) (OperationKind, GridCoord) {
	kind := botKinds[b.rng.Intn(len(botKinds))]
	if kind == OpPeek && inv.RemainingPeek <= 0 {
		kind = OpSteal
	}
	if kind == OpStayAtHome {
		return kind, own
	}
	candidates := botTargets(coords, own)
	if len(candidates) == 0 {
		return OpStayAtHome, own
	}
	return kind, candidates[b.rng.Intn(len(candidates))]
}

func botTargets(coords []GridCoord, own GridCoord) []GridCoord {
	var diagonal, other []GridCoord
	for _, c := range coords {
		if c == own {
			continue
		}
		other = append(other, c)
		if c.X != own.X && c.Y != own.Y {
			diagonal = append(diagonal, c)
		}
	}
	if len(diagonal) > 0 {
		return diagonal
	}
	return other
}

// runBots rebalances and submits for every bot-controlled identity that has
// nothing on the board yet, in id order.
func (w *World) runBots() map[PlayerID]Operation {
	decided := make(map[PlayerID]Operation)
	coords := w.ledger.Coords()
	for _, bot := range w.ids.Bots() {
		if _, ok := w.board.Get(bot); ok {
			continue
		}
		w.ledger.rebalance(bot)
		inv := w.ledger.Inventory(bot)
		own := w.ledger.CoordOf(inv.HouseID)
		kind, target := w.bot.Decide(inv, own, coords)

		op := Operation{Kind: kind}
		if kind != OpStayAtHome {
			house, err := w.ledger.HouseAt(target)
			if err != nil {
				invariantf("bot %s picked off-map target %v", bot, target)
			}
			op.TargetHouse = house
		}
		w.board.Submit(bot, op)
		decided[bot] = op

		detail := ""
		if kind != OpStayAtHome {
			detail = "Target house: " + string(op.TargetHouse) + " " + target.String()
		}
		w.record(w.ids.ConnOf(bot), bot, kind.String(), detail, &target)
	}
	return decided
}
