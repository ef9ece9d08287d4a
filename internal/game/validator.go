package game

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// Authenticator issues and checks the per-session token human clients
// attach to their operations.
type Authenticator interface {
	Issue(player PlayerID, conn ConnID) (string, error)
	Verify(token string, player PlayerID, conn ConnID) error
}

// StaticSecret accepts one shared secret for every session. It is a stand-in
// for tests and local play.
type StaticSecret string

func (s StaticSecret) Issue(PlayerID, ConnID) (string, error) { return string(s), nil }

func (s StaticSecret) Verify(token string, _ PlayerID, _ ConnID) error {
	if subtle.ConstantTimeCompare([]byte(token), []byte(s)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Validate decides whether conn may submit kind against target this round.
// It has no side effects and returns the identity behind conn.
func (w *World) Validate(conn ConnID, target HouseID, kind OperationKind, token string) (PlayerID, error) {
	player, err := w.ids.Resolve(conn)
	if err != nil {
		return "", err
	}
	if w.roundLocked {
		return player, ErrRoundLocked
	}
	if conn > 0 {
		if err := w.auth.Verify(token, player, conn); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return player, err
			}
			return player, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	switch kind {
	case OpPeek, OpSteal, OpStayAtHome:
	default:
		return player, fmt.Errorf("%w: %v", ErrUnknownOperation, kind)
	}
	if kind == OpStayAtHome {
		return player, nil
	}
	if kind == OpPeek && w.ledger.Inventory(player).RemainingPeek <= 0 {
		return player, ErrNoPeekChance
	}
	if !w.ledger.HasHouse(target) {
		return player, fmt.Errorf("%w: %q", ErrNoSuchHouse, target)
	}
	if w.ledger.House(target).Owner == player {
		return player, ErrOwnHouse
	}
	return player, nil
}
