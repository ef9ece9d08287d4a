package game

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// World is the aggregate of one game: ledger, board, identities and the
// round state. It is not safe for concurrent use; an Authority serializes
// every call onto one goroutine. Worlds share nothing, so any number may
// coexist in a process.
type World struct {
	rules Rules
	log   *log.Logger
	rng   *rand.Rand
	auth  Authenticator
	audit AuditSink
	now   func() time.Time

	ids    *IdentityMap
	ledger *Ledger
	board  *Board
	bot    *RandomBot

	round       uint64
	roundLocked bool

	pending []Notification
}

type Option func(*World)

func WithLogger(l *log.Logger) Option { return func(w *World) { w.log = l } }

func WithAuthenticator(a Authenticator) Option { return func(w *World) { w.auth = a } }

func WithAuditSink(s AuditSink) Option { return func(w *World) { w.audit = s } }

func WithClock(now func() time.Time) Option { return func(w *World) { w.now = now } }

// New builds a world with one house and one bot-controlled identity per map
// cell. Identity and house ids derive from rules.Seed.
func New(rules Rules, opts ...Option) (*World, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	rng := rand.New(rand.NewSource(rules.Seed))
	w := &World{
		rules:  rules,
		log:    log.New(io.Discard, "", 0),
		rng:    rng,
		auth:   StaticSecret("test secret"),
		audit:  discardAudit{},
		now:    time.Now,
		ids:    NewIdentityMap(),
		ledger: newLedger(rules),
		board:  NewBoard(),
		bot:    NewRandomBot(rng),
		round:  1,
	}
	for _, opt := range opts {
		opt(w)
	}

	players := make([]PlayerID, 0, rules.MapWidth*rules.MapHeight)
	for y := 0; y < rules.MapHeight; y++ {
		for x := 0; x < rules.MapWidth; x++ {
			player, err := uuid.NewRandomFromReader(rng)
			if err != nil {
				return nil, fmt.Errorf("player id: %w", err)
			}
			house, err := uuid.NewRandomFromReader(rng)
			if err != nil {
				return nil, fmt.Errorf("house id: %w", err)
			}
			grid := GridCoord{X: x, Y: y}
			w.ledger.addHouse(grid, HouseID(house.String()), PlayerID(player.String()))
			players = append(players, PlayerID(player.String()))
			w.log.Printf("created house %s at %v for %s", house, grid, player)
		}
	}
	w.ids.addBots(players)
	return w, nil
}

func (w *World) Rules() Rules { return w.rules }

func (w *World) Round() uint64 { return w.round }

func (w *World) RoundLocked() bool { return w.roundLocked }

func (w *World) Ledger() *Ledger { return w.ledger }

func (w *World) Board() *Board { return w.board }

func (w *World) Identities() *IdentityMap { return w.ids }

// Session is what a client learns when it logs in.
type Session struct {
	Player      PlayerID  `json:"playerId"`
	Token       string    `json:"token"`
	House       HouseID   `json:"houseId"`
	Coord       GridCoord `json:"coord"`
	Reconnected bool      `json:"reconnected"`
	Superseded  ConnID    `json:"-"`
}

// Login binds conn to an identity (see IdentityMap.Login) and issues its
// session token.
func (w *World) Login(client ClientHandle, conn ConnID) (Session, error) {
	res, err := w.ids.Login(client, conn)
	if err != nil {
		w.log.Printf("[%d] login failed: %v", conn, err)
		w.tellConn(conn, "", fmt.Sprintf("Login failed: %s", Reason(err)))
		return Session{}, err
	}
	token, err := w.auth.Issue(res.Player, conn)
	if err != nil {
		_, _ = w.ids.Logout(conn)
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	w.ids.SetToken(conn, token)

	if res.Superseded != 0 {
		w.log.Printf("[%d] superseded by [%d] for %s", res.Superseded, conn, res.Player)
		w.emit(Notification{Kind: Superseded, To: res.Superseded, Player: res.Player})
	}

	inv := w.ledger.Inventory(res.Player)
	coord := w.ledger.CoordOf(inv.HouseID)
	if res.Reconnected {
		w.log.Printf("[%d] %s reconnected", conn, res.Player)
	} else {
		w.log.Printf("[%d] %s took over a bot identity", conn, res.Player)
	}
	s := Session{
		Player:      res.Player,
		Token:       token,
		House:       inv.HouseID,
		Coord:       coord,
		Reconnected: res.Reconnected,
		Superseded:  res.Superseded,
	}
	w.emit(Notification{Kind: LoggedIn, To: conn, Player: res.Player, Session: &s})
	w.syncInventory(conn, res.Player)
	w.syncLevel(conn)
	w.tellConn(conn, res.Player, "Login Success")
	w.tellConn(conn, res.Player, fmt.Sprintf("Welcome, %s", res.Player))
	w.tellConn(conn, res.Player, fmt.Sprintf("Your house is at %v", coord))
	w.record(conn, res.Player, "Login", string(client), nil)
	return s, nil
}

func (w *World) Logout(conn ConnID) error {
	player, err := w.ids.Logout(conn)
	if err != nil {
		return err
	}
	w.log.Printf("[%d] %s logged out, bot takes over", conn, player)
	w.record(conn, player, "Logout", "", nil)
	return nil
}

// Submit validates and records conn's operation for the current round.
func (w *World) Submit(conn ConnID, target HouseID, kind OperationKind, token string) error {
	player, err := w.Validate(conn, target, kind, token)
	if err != nil {
		w.reject(conn, player, kind, err)
		return err
	}
	op := Operation{TargetHouse: target, Kind: kind}
	var coord GridCoord
	detail := ""
	if kind == OpStayAtHome {
		op.TargetHouse = ""
		coord = w.ledger.CoordOf(w.ledger.Inventory(player).HouseID)
	} else {
		coord = w.ledger.CoordOf(target)
		detail = fmt.Sprintf("Target house: %s %v", target, coord)
	}
	w.board.Submit(player, op)
	w.log.Printf("[%d] %s committed %v %s", conn, player, kind, detail)
	w.emit(Notification{Kind: OperationAccepted, To: conn, Player: player, Operation: kind, Target: coord})
	w.record(conn, player, kind.String(), detail, &coord)
	return nil
}

// SubmitAt is Submit addressed by grid coordinate.
func (w *World) SubmitAt(conn ConnID, target GridCoord, kind OperationKind, token string) error {
	var house HouseID
	if kind != OpStayAtHome {
		// Off-map coordinates resolve to no house and fail validation.
		house, _ = w.ledger.HouseAt(target)
	}
	return w.Submit(conn, house, kind, token)
}

func (w *World) InventoryOf(conn ConnID) (Inventory, error) {
	player, err := w.ids.Resolve(conn)
	if err != nil {
		return Inventory{}, err
	}
	return w.ledger.Inventory(player), nil
}

// RequestInventory answers a client's inventory refresh with a sync.
func (w *World) RequestInventory(conn ConnID) (Inventory, error) {
	player, err := w.ids.Resolve(conn)
	if err != nil {
		return Inventory{}, err
	}
	w.syncInventory(conn, player)
	return w.ledger.Inventory(player), nil
}

func (w *World) Level() Level { return w.ledger.Level(w.round) }

// RequestLevel answers a client's level refresh with a sync.
func (w *World) RequestLevel(conn ConnID) Level {
	w.syncLevel(conn)
	return w.Level()
}

// RosterEntry is the operator's view of one identity.
type RosterEntry struct {
	Player     PlayerID     `json:"playerId"`
	Conn       ConnID       `json:"conn"`
	Bot        bool         `json:"bot"`
	Client     ClientHandle `json:"client,omitempty"`
	House      HouseID      `json:"houseId"`
	Coord      GridCoord    `json:"coord"`
	Money      uint64       `json:"money"`
	HouseMoney uint64       `json:"houseMoney"`
	Submitted  bool         `json:"submitted"`
	Operation  string       `json:"operation,omitempty"`
}

func (w *World) Roster() []RosterEntry {
	players := w.ledger.Players()
	out := make([]RosterEntry, 0, len(players))
	for _, p := range players {
		inv := w.ledger.Inventory(p)
		conn := w.ids.ConnOf(p)
		client, _ := w.ids.ClientOf(p)
		e := RosterEntry{
			Player:     p,
			Conn:       conn,
			Bot:        IsBotControlled(conn),
			Client:     client,
			House:      inv.HouseID,
			Coord:      w.ledger.CoordOf(inv.HouseID),
			Money:      inv.Money,
			HouseMoney: w.ledger.House(inv.HouseID).Money,
		}
		if op, ok := w.board.Get(p); ok {
			e.Submitted = true
			e.Operation = op.Kind.String()
		}
		out = append(out, e)
	}
	return out
}
