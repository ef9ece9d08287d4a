package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/example/house-heist/internal/audit"
	"github.com/example/house-heist/internal/config"
	"github.com/example/house-heist/internal/game"
	"github.com/example/house-heist/internal/protocol"
)

// AuditSource serves the operator's audit export.
type AuditSource interface {
	Entries(ctx context.Context, q audit.Query) ([]game.AuditEntry, error)
}

type GameServer struct {
	authority *game.Authority
	dispatch  *Dispatcher
	decoder   *protocol.Decoder
	audit     AuditSource
	cfg       config.Server
	log       *log.Logger

	upgrader websocket.Upgrader
	nextConn atomic.Int64
}

func NewGameServer(a *game.Authority, d *Dispatcher, src AuditSource, cfg config.Server, logger *log.Logger) (*GameServer, error) {
	dec, err := protocol.NewDecoder()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	gs := &GameServer{
		authority: a,
		dispatch:  d,
		decoder:   dec,
		audit:     src,
		cfg:       cfg,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return gs, nil
}

// HandleWS upgrades a player connection. Each socket gets a fresh positive
// connection id; the client logs in with a login message.
func (gs *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gs.log.Println("upgrade:", err)
		return
	}
	id := game.ConnID(gs.nextConn.Add(1))
	c := gs.dispatch.register(id)
	gs.log.Printf("[%d] connected from %s", id, r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	go gs.writeLoop(ctx, cancel, conn, c)
	gs.readLoop(ctx, cancel, conn, c)
}

func (gs *GameServer) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer cancel()
	write := func(b []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, b)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			if err := write(b); err != nil {
				return
			}
		case <-c.kick:
			for {
				select {
				case b := <-c.out:
					if err := write(b); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "superseded"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
	}
}

func (gs *GameServer) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer func() {
		cancel()
		conn.Close()
		gs.dispatch.unregister(c.id)
		lctx, lcancel := context.WithTimeout(context.Background(), gs.cfg.RequestTimeout)
		defer lcancel()
		if err := gs.authority.Logout(lctx, c.id); err != nil && !errors.Is(err, game.ErrNotLoggedIn) {
			gs.log.Printf("[%d] logout: %v", c.id, err)
		}
		gs.log.Printf("[%d] disconnected", c.id)
	}()

	limiter := rate.NewLimiter(rate.Limit(gs.cfg.MessagesPerSecond), gs.cfg.MessageBurst)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				gs.log.Printf("[%d] read: %v", c.id, err)
			}
			return
		}
		if !limiter.Allow() {
			gs.dispatch.Send(c.id, protocol.Error(protocol.ErrRateLimit, "slow down"))
			continue
		}
		msg, err := gs.decoder.Decode(frame)
		if err != nil {
			gs.dispatch.Send(c.id, protocol.Error(protocol.ErrBadRequest, err.Error()))
			continue
		}
		rctx, rcancel := context.WithTimeout(ctx, gs.cfg.RequestTimeout)
		err = gs.handle(rctx, c.id, msg)
		rcancel()
		if err != nil {
			gs.dispatch.Send(c.id, errorFrame(err))
		}
	}
}

// handle applies one decoded client message. Rejections the world already
// reported to the player come back as nil.
func (gs *GameServer) handle(ctx context.Context, conn game.ConnID, msg protocol.Message) error {
	switch msg.Type {
	case protocol.TypeLogin:
		var p protocol.LoginPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			return err
		}
		_, err := gs.authority.Login(ctx, game.ClientHandle(p.ClientHandle), conn)
		return err
	case protocol.TypeOperation:
		var p protocol.OperationPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			return err
		}
		kind, _ := game.ParseOperationKind(p.Kind)
		err := gs.authority.SubmitOperation(ctx, game.SubmitRequest{
			Conn:  conn,
			House: game.HouseID(p.HouseID),
			Coord: p.Coord,
			Kind:  kind,
			Token: p.Token,
		})
		return worldReported(err)
	case protocol.TypeTransfer:
		var p protocol.TransferPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			return err
		}
		dir, _ := protocol.ParseDirection(p.Direction)
		return worldReported(gs.authority.Transfer(ctx, conn, p.Amount, dir))
	case protocol.TypeInventory:
		_, err := gs.authority.Inventory(ctx, conn, true)
		return err
	case protocol.TypeLevel:
		_, err := gs.authority.Level(ctx, conn)
		return err
	case protocol.TypeLogout:
		return gs.authority.Logout(ctx, conn)
	}
	return errors.New("unhandled message type " + msg.Type)
}

// worldReported drops the errors the world has already told the player about.
func worldReported(err error) error {
	for _, known := range []error{
		game.ErrNotLoggedIn, game.ErrRoundLocked, game.ErrUnauthorized,
		game.ErrNoPeekChance, game.ErrNoSuchHouse, game.ErrOwnHouse,
		game.ErrUnknownOperation, game.ErrInsufficientFunds,
	} {
		if errors.Is(err, known) {
			return nil
		}
	}
	return err
}

func errorFrame(err error) protocol.WSOut {
	switch {
	case errors.Is(err, game.ErrNotLoggedIn):
		return protocol.Error(protocol.ErrNotLoggedIn, game.Reason(err))
	case errors.Is(err, game.ErrNoAvailableIdentity):
		return protocol.Error(protocol.ErrWorldFull, game.Reason(err))
	case errors.Is(err, game.ErrRoundLocked):
		return protocol.Error(protocol.ErrLocked, game.Reason(err))
	case errors.Is(err, game.ErrInsufficientFunds):
		return protocol.Error(protocol.ErrFunds, game.Reason(err))
	default:
		return protocol.Error(protocol.ErrInternal, err.Error())
	}
}

func (gs *GameServer) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), gs.cfg.RequestTimeout)
}
