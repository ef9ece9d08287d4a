package game

import (
	"context"
	"errors"
	"log"
)

// ErrStopped is returned by Authority calls after Run has exited.
var ErrStopped = errors.New("world authority stopped")

// SubmitRequest is one operation sent by a client. Coord is used when
// House is empty.
type SubmitRequest struct {
	Conn  ConnID
	House HouseID
	Coord *GridCoord
	Kind  OperationKind
	Token string
}

type loginReq struct {
	Client ClientHandle
	Conn   ConnID
	Resp   chan loginResp
}

type loginResp struct {
	Session Session
	Err     error
}

type logoutReq struct {
	Conn ConnID
	Resp chan error
}

type submitReq struct {
	SubmitRequest
	Resp chan error
}

type transferReq struct {
	Conn   ConnID
	Amount uint64
	Dir    TransferDirection
	Resp   chan error
}

type inventoryReq struct {
	Conn ConnID
	Sync bool
	Resp chan inventoryResp
}

type inventoryResp struct {
	Inventory Inventory
	Err       error
}

type levelReq struct {
	Conn ConnID
	Resp chan Level
}

type finishReq struct {
	Resp chan finishResp
}

type finishResp struct {
	Summary RoundSummary
	Err     error
}

type rosterReq struct {
	Resp chan []RosterEntry
}

// Authority owns a World and applies every request to it from the single
// goroutine running Run. Notifications produced by a request are handed to
// the Outbox before the request is answered.
type Authority struct {
	world *World
	out   Outbox
	log   *log.Logger

	login     chan loginReq
	logout    chan logoutReq
	submit    chan submitReq
	transfer  chan transferReq
	inventory chan inventoryReq
	level     chan levelReq
	finish    chan finishReq
	roster    chan rosterReq
	done      chan struct{}
}

func NewAuthority(w *World, out Outbox, logger *log.Logger) *Authority {
	if out == nil {
		out = OutboxFunc(func(Notification) {})
	}
	if logger == nil {
		logger = w.log
	}
	return &Authority{
		world:     w,
		out:       out,
		log:       logger,
		login:     make(chan loginReq),
		logout:    make(chan logoutReq),
		submit:    make(chan submitReq, 64),
		transfer:  make(chan transferReq, 16),
		inventory: make(chan inventoryReq, 16),
		level:     make(chan levelReq, 16),
		finish:    make(chan finishReq),
		roster:    make(chan rosterReq),
		done:      make(chan struct{}),
	}
}

// Identities exposes the identity map for concurrent reads.
func (a *Authority) Identities() *IdentityMap { return a.world.ids }

func (a *Authority) Run(ctx context.Context) error {
	defer close(a.done)
	a.log.Printf("world authority running, round %d", a.world.round)
	for {
		var reply func()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.login:
			s, err := a.world.Login(req.Client, req.Conn)
			reply = func() { req.Resp <- loginResp{Session: s, Err: err} }
		case req := <-a.logout:
			err := a.world.Logout(req.Conn)
			reply = func() { req.Resp <- err }
		case req := <-a.submit:
			var err error
			if req.House == "" && req.Coord != nil {
				err = a.world.SubmitAt(req.Conn, *req.Coord, req.Kind, req.Token)
			} else {
				err = a.world.Submit(req.Conn, req.House, req.Kind, req.Token)
			}
			reply = func() { req.Resp <- err }
		case req := <-a.transfer:
			err := a.world.Transfer(req.Conn, req.Amount, req.Dir)
			reply = func() { req.Resp <- err }
		case req := <-a.inventory:
			var resp inventoryResp
			if req.Sync {
				resp.Inventory, resp.Err = a.world.RequestInventory(req.Conn)
			} else {
				resp.Inventory, resp.Err = a.world.InventoryOf(req.Conn)
			}
			reply = func() { req.Resp <- resp }
		case req := <-a.level:
			var lvl Level
			if req.Conn != 0 {
				lvl = a.world.RequestLevel(req.Conn)
			} else {
				lvl = a.world.Level()
			}
			reply = func() { req.Resp <- lvl }
		case req := <-a.finish:
			sum, err := a.world.FinishRound()
			reply = func() { req.Resp <- finishResp{Summary: sum, Err: err} }
		case req := <-a.roster:
			roster := a.world.Roster()
			reply = func() { req.Resp <- roster }
		}
		// Published before the reply, so a caller sees its notifications
		// queued by the time the call returns.
		a.flush()
		reply()
	}
}

func (a *Authority) flush() {
	for _, n := range a.world.Drain() {
		a.out.Publish(n)
	}
}

func (a *Authority) Login(ctx context.Context, client ClientHandle, conn ConnID) (Session, error) {
	resp := make(chan loginResp, 1)
	r, err := roundTrip(ctx, a, a.login, loginReq{Client: client, Conn: conn, Resp: resp}, resp)
	if err != nil {
		return Session{}, err
	}
	return r.Session, r.Err
}

func (a *Authority) Logout(ctx context.Context, conn ConnID) error {
	resp := make(chan error, 1)
	r, err := roundTrip(ctx, a, a.logout, logoutReq{Conn: conn, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return r
}

func (a *Authority) SubmitOperation(ctx context.Context, req SubmitRequest) error {
	resp := make(chan error, 1)
	r, err := roundTrip(ctx, a, a.submit, submitReq{SubmitRequest: req, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return r
}

func (a *Authority) Transfer(ctx context.Context, conn ConnID, amount uint64, dir TransferDirection) error {
	resp := make(chan error, 1)
	r, err := roundTrip(ctx, a, a.transfer, transferReq{Conn: conn, Amount: amount, Dir: dir, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return r
}

// Inventory returns conn's inventory. With sync set the client is also sent
// an InventoryUpdated notification.
func (a *Authority) Inventory(ctx context.Context, conn ConnID, sync bool) (Inventory, error) {
	resp := make(chan inventoryResp, 1)
	r, err := roundTrip(ctx, a, a.inventory, inventoryReq{Conn: conn, Sync: sync, Resp: resp}, resp)
	if err != nil {
		return Inventory{}, err
	}
	return r.Inventory, r.Err
}

// Level returns the level snapshot; a non-zero conn is also sent a LevelUpdated.
func (a *Authority) Level(ctx context.Context, conn ConnID) (Level, error) {
	resp := make(chan Level, 1)
	return roundTrip(ctx, a, a.level, levelReq{Conn: conn, Resp: resp}, resp)
}

func (a *Authority) FinishRound(ctx context.Context) (RoundSummary, error) {
	resp := make(chan finishResp, 1)
	r, err := roundTrip(ctx, a, a.finish, finishReq{Resp: resp}, resp)
	if err != nil {
		return RoundSummary{}, err
	}
	return r.Summary, r.Err
}

func (a *Authority) Roster(ctx context.Context) ([]RosterEntry, error) {
	resp := make(chan []RosterEntry, 1)
	return roundTrip(ctx, a, a.roster, rosterReq{Resp: resp}, resp)
}

func roundTrip[Req, Resp any](ctx context.Context, a *Authority, ch chan<- Req, req Req, resp <-chan Resp) (Resp, error) {
	var zero Resp
	select {
	case ch <- req:
	case <-a.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-a.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
