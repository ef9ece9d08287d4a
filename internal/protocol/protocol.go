package protocol

import (
	"encoding/json"

	"github.com/example/house-heist/internal/game"
)

// Client message types.
const (
	TypeLogin     = "login"
	TypeOperation = "operation"
	TypeTransfer  = "transfer"
	TypeInventory = "inventory"
	TypeLevel     = "level"
	TypeLogout    = "logout"
)

// Server message types.
const (
	TypeLoggedIn          = "loggedIn"
	TypeRound             = "round"
	TypeOperationAccepted = "operationAccepted"
	TypeOperationRejected = "operationRejected"
	TypeMessage           = "message"
	TypeSuperseded        = "superseded"
	TypeError             = "error"
)

// Message is an inbound envelope; the payload is decoded once the type is known.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSOut is an outbound envelope.
type WSOut struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type LoginPayload struct {
	ClientHandle string `json:"clientHandle"`
}

type OperationPayload struct {
	Kind    string          `json:"kind"`
	HouseID string          `json:"houseId,omitempty"`
	Coord   *game.GridCoord `json:"coord,omitempty"`
	Token   string          `json:"token"`
}

type TransferPayload struct {
	Amount    uint64 `json:"amount"`
	Direction string `json:"direction"`
}

type LoggedInPayload struct {
	PlayerID    game.PlayerID  `json:"playerId"`
	Token       string         `json:"token"`
	HouseID     game.HouseID   `json:"houseId"`
	Coord       game.GridCoord `json:"coord"`
	Reconnected bool           `json:"reconnected"`
}

type RoundPayload struct {
	Round uint64 `json:"round"`
}

type OperationResultPayload struct {
	Operation string          `json:"operation"`
	Target    *game.GridCoord `json:"target,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent in ErrorPayload.
const (
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrRateLimit   = "E_RATE_LIMIT"
	ErrNotLoggedIn = "E_NOT_LOGGED_IN"
	ErrWorldFull   = "E_WORLD_FULL"
	ErrFunds       = "E_INSUFFICIENT_FUNDS"
	ErrLocked      = "E_ROUND_LOCKED"
	ErrInternal    = "E_INTERNAL"
)

// ParseDirection maps the wire direction to a transfer direction.
func ParseDirection(s string) (game.TransferDirection, bool) {
	switch s {
	case "to":
		return game.ToHouse, true
	case "from":
		return game.ToInventory, true
	}
	return 0, false
}

func LoggedIn(s game.Session) WSOut {
	return WSOut{Type: TypeLoggedIn, Payload: LoggedInPayload{
		PlayerID:    s.Player,
		Token:       s.Token,
		HouseID:     s.House,
		Coord:       s.Coord,
		Reconnected: s.Reconnected,
	}}
}

func Error(code, msg string) WSOut {
	return WSOut{Type: TypeError, Payload: ErrorPayload{Code: code, Message: msg}}
}

// FromNotification renders a world notification for the wire.
func FromNotification(n game.Notification) WSOut {
	switch n.Kind {
	case game.LoggedIn:
		return LoggedIn(*n.Session)
	case game.InventoryUpdated:
		return WSOut{Type: TypeInventory, Payload: n.Inventory}
	case game.LevelUpdated:
		return WSOut{Type: TypeLevel, Payload: n.Level}
	case game.RoundAdvanced:
		return WSOut{Type: TypeRound, Payload: RoundPayload{Round: n.Round}}
	case game.OperationAccepted:
		target := n.Target
		return WSOut{Type: TypeOperationAccepted, Payload: OperationResultPayload{Operation: n.Operation.String(), Target: &target}}
	case game.OperationRejected:
		return WSOut{Type: TypeOperationRejected, Payload: OperationResultPayload{Operation: n.Operation.String(), Reason: n.Reason}}
	case game.ServerMessage:
		return WSOut{Type: TypeMessage, Payload: MessagePayload{Text: n.Text}}
	case game.Superseded:
		return WSOut{Type: TypeSuperseded, Payload: MessagePayload{Text: "Logged in from another connection"}}
	default:
		return Error(ErrInternal, "unknown notification "+n.Kind.String())
	}
}
