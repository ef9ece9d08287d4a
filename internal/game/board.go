package game

import "sort"

// Board holds the operations submitted in the current round, at most one
// per player.
type Board struct {
	ops map[PlayerID]Operation
}

func NewBoard() *Board {
	return &Board{ops: make(map[PlayerID]Operation)}
}

// Submit records op for player, replacing any earlier submission this round.
func (b *Board) Submit(player PlayerID, op Operation) {
	b.ops[player] = op
}

func (b *Board) Get(player PlayerID) (Operation, bool) {
	op, ok := b.ops[player]
	return op, ok
}

func (b *Board) AllSubmitted(players []PlayerID) bool {
	for _, p := range players {
		if _, ok := b.ops[p]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the players without a submission, in input order.
func (b *Board) Missing(players []PlayerID) []PlayerID {
	var out []PlayerID
	for _, p := range players {
		if _, ok := b.ops[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func (b *Board) Len() int { return len(b.ops) }

func (b *Board) Clear() {
	clear(b.ops)
}

// submitters returns every player with an entry, sorted.
func (b *Board) submitters() []PlayerID {
	out := make([]PlayerID, 0, len(b.ops))
	for p := range b.ops {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
