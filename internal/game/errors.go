package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrRoundLocked         = errors.New("round locked")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoPeekChance        = errors.New("no peek chance")
	ErrNoSuchHouse         = errors.New("no such house")
	ErrOwnHouse            = errors.New("own house")
	ErrNoAvailableIdentity = errors.New("no available identity")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotAllPlayersReady  = errors.New("not all players ready")
	ErrUnknownOperation    = errors.New("unknown operation")
)

// NotReadyError lists the logged-in humans that have not submitted.
type NotReadyError struct {
	Missing []PlayerID
}

func (e *NotReadyError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return fmt.Sprintf("not all players ready: waiting for %s", strings.Join(ids, ", "))
}

func (e *NotReadyError) Unwrap() error { return ErrNotAllPlayersReady }

// InvariantError signals a ledger/identity desynchronization. It is raised
// with panic, never returned.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

func invariantf(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// Reason renders err as the message shown to the player.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotLoggedIn):
		return "Not logged in"
	case errors.Is(err, ErrRoundLocked):
		return "This round is locked"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized RPC Call"
	case errors.Is(err, ErrNoPeekChance):
		return "You have no peek chance"
	case errors.Is(err, ErrNoSuchHouse):
		return "This house has no owner"
	case errors.Is(err, ErrOwnHouse):
		return "It's your house"
	case errors.Is(err, ErrNoAvailableIdentity):
		return "The world is full"
	case errors.Is(err, ErrInsufficientFunds):
		return "Not enough money"
	case errors.Is(err, ErrNotAllPlayersReady):
		return "Not all players are ready"
	case errors.Is(err, ErrUnknownOperation):
		return "Unknown operation"
	default:
		return err.Error()
	}
}
