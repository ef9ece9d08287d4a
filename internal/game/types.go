package game

import "fmt"

type PlayerID string

type HouseID string

// ConnID is a transport connection handle. Negative handles are bot
// virtual connections and never have a socket behind them.
type ConnID int64

// ClientHandle is the long-lived token a client presents at login.
type ClientHandle string

// ServerConn is used as the connection of server-originated audit entries.
const ServerConn ConnID = 0

type OperationKind int

const (
	OpNone OperationKind = iota
	OpPeek
	OpSteal
	OpStayAtHome
)

func (k OperationKind) String() string {
	switch k {
	case OpNone:
		return "None"
	case OpPeek:
		return "Peek"
	case OpSteal:
		return "Steal"
	case OpStayAtHome:
		return "StayAtHome"
	default:
		return fmt.Sprintf("OperationKind(%d)", int(k))
	}
}

// ParseOperationKind accepts the names produced by String.
func ParseOperationKind(s string) (OperationKind, bool) {
	switch s {
	case "None":
		return OpNone, true
	case "Peek":
		return OpPeek, true
	case "Steal":
		return OpSteal, true
	case "StayAtHome":
		return OpStayAtHome, true
	}
	return OpNone, false
}

type Operation struct {
	TargetHouse HouseID       `json:"houseId"`
	Kind        OperationKind `json:"kind"`
}

type House struct {
	ID    HouseID  `json:"id"`
	Owner PlayerID `json:"owner"`
	Money uint64   `json:"money"`
}

type Inventory struct {
	Keys          int     `json:"keys"`
	Money         uint64  `json:"money"`
	RemainingPeek int     `json:"remainingPeek"`
	HouseID       HouseID `json:"houseId"`
	HouseIndex    uint64  `json:"houseIndex"`
}

type TransferDirection int

const (
	ToHouse TransferDirection = iota + 1
	ToInventory
)

func (d TransferDirection) String() string {
	switch d {
	case ToHouse:
		return "to"
	case ToInventory:
		return "from"
	default:
		return "?"
	}
}
