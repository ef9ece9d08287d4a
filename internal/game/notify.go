package game

import (
	"fmt"
	"time"
)

type NotificationKind int

const (
	// LoggedIn carries the session of a successful login; it precedes the
	// login's other notifications.
	LoggedIn NotificationKind = iota + 1
	InventoryUpdated
	LevelUpdated
	RoundAdvanced
	OperationAccepted
	OperationRejected
	ServerMessage
	// Superseded tells the transport a newer login took over the connection.
	Superseded
)

func (k NotificationKind) String() string {
	switch k {
	case LoggedIn:
		return "LoggedIn"
	case InventoryUpdated:
		return "InventoryUpdated"
	case LevelUpdated:
		return "LevelUpdated"
	case RoundAdvanced:
		return "RoundAdvanced"
	case OperationAccepted:
		return "OperationAccepted"
	case OperationRejected:
		return "OperationRejected"
	case ServerMessage:
		return "ServerMessage"
	case Superseded:
		return "Superseded"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// Notification is one outbound event. It is addressed to a single human
// connection (To) or to every connection (Broadcast).
type Notification struct {
	Kind      NotificationKind
	To        ConnID
	Broadcast bool

	Player    PlayerID
	Session   *Session
	Inventory *Inventory
	Level     *Level
	Round     uint64
	Operation OperationKind
	Target    GridCoord
	Reason    string
	Text      string
}

// Outbox delivers notifications. Publish must not block.
type Outbox interface {
	Publish(n Notification)
}

type OutboxFunc func(Notification)

func (f OutboxFunc) Publish(n Notification) { f(n) }

// AuditEntry is one line of the operator-facing operation log.
type AuditEntry struct {
	At        time.Time  `json:"at"`
	Round     uint64     `json:"round"`
	Conn      ConnID     `json:"conn"`
	Player    PlayerID   `json:"player"`
	Operation string     `json:"operation"`
	Detail    string     `json:"detail,omitempty"`
	Target    *GridCoord `json:"target,omitempty"`
}

type AuditSink interface {
	Record(e AuditEntry)
}

type discardAudit struct{}

func (discardAudit) Record(AuditEntry) {}

func (w *World) emit(n Notification) {
	w.pending = append(w.pending, n)
}

// Drain hands over the notifications produced since the last call.
func (w *World) Drain() []Notification {
	out := w.pending
	w.pending = nil
	return out
}

// tell sends text to the player's human connection; bots have nobody to read it.
func (w *World) tell(player PlayerID, text string) {
	conn := w.ids.ConnOf(player)
	if conn <= 0 {
		return
	}
	w.tellConn(conn, player, text)
}

func (w *World) tellConn(conn ConnID, player PlayerID, text string) {
	w.log.Printf("[%d] message to %s: %s", conn, player, text)
	w.emit(Notification{Kind: ServerMessage, To: conn, Player: player, Text: text})
}

func (w *World) broadcast(text string) {
	w.log.Printf("broadcast: %s", text)
	w.emit(Notification{Kind: ServerMessage, Broadcast: true, Text: text})
}

func (w *World) syncInventory(conn ConnID, player PlayerID) {
	if conn <= 0 {
		return
	}
	inv := w.ledger.Inventory(player)
	w.emit(Notification{Kind: InventoryUpdated, To: conn, Player: player, Inventory: &inv})
}

func (w *World) syncLevel(conn ConnID) {
	lvl := w.ledger.Level(w.round)
	w.emit(Notification{Kind: LevelUpdated, To: conn, Broadcast: conn == 0, Level: &lvl})
}

func (w *World) reject(conn ConnID, player PlayerID, kind OperationKind, err error) {
	reason := Reason(err)
	w.log.Printf("[%d] operation %v failed, reason: %s", conn, kind, reason)
	w.emit(Notification{Kind: OperationRejected, To: conn, Player: player, Operation: kind, Reason: reason})
	w.tellConn(conn, player, fmt.Sprintf("%v failed, reason: %s", kind, reason))
}

func (w *World) record(conn ConnID, player PlayerID, operation, detail string, target *GridCoord) {
	w.audit.Record(AuditEntry{
		At:        w.now(),
		Round:     w.round,
		Conn:      conn,
		Player:    player,
		Operation: operation,
		Detail:    detail,
		Target:    target,
	})
}
