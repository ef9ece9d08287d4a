package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/house-heist/internal/audit"
	"github.com/example/house-heist/internal/game"
)

// RegisterRoutes mounts the player socket on r and the operator endpoints on
// api, which the caller protects.
func (gs *GameServer) RegisterRoutes(r, api *mux.Router) {
	r.HandleFunc("/ws", gs.HandleWS)

	api.HandleFunc("/round/finish", gs.HandleFinishRound).Methods(http.MethodPost)
	api.HandleFunc("/level", gs.HandleLevel).Methods(http.MethodGet)
	api.HandleFunc("/players", gs.HandleListPlayers).Methods(http.MethodGet)
	api.HandleFunc("/audit.csv", gs.HandleAuditCSV).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (gs *GameServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": game.Reason(err)}
	var notReady *game.NotReadyError
	switch {
	case errors.As(err, &notReady):
		status = http.StatusConflict
		body["missing"] = notReady.Missing
	case errors.Is(err, game.ErrRoundLocked):
		status = http.StatusConflict
	case errors.Is(err, game.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		gs.log.Printf("operator request failed: %v", err)
	}
	writeJSON(w, status, body)
}

// HandleFinishRound settles the current round on the operator's request.
func (gs *GameServer) HandleFinishRound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := gs.requestContext(r)
	defer cancel()
	sum, err := gs.authority.FinishRound(ctx)
	if err != nil {
		gs.writeError(w, err)
		return
	}
	gs.log.Printf("operator finished round %d", sum.Round)
	writeJSON(w, http.StatusOK, sum)
}

func (gs *GameServer) HandleLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := gs.requestContext(r)
	defer cancel()
	lvl, err := gs.authority.Level(ctx, 0)
	if err != nil {
		gs.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

// HandleListPlayers reports every identity, who drives it and what it
// submitted this round.
func (gs *GameServer) HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := gs.requestContext(r)
	defer cancel()
	roster, err := gs.authority.Roster(ctx)
	if err != nil {
		gs.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"players":   roster,
		"connected": gs.dispatch.Connected(),
	})
}

// HandleAuditCSV exports the operation history, optionally for one round
// (?round=N) or player (?player=ID).
func (gs *GameServer) HandleAuditCSV(w http.ResponseWriter, r *http.Request) {
	var q audit.Query
	if s := r.URL.Query().Get("round"); s != "" {
		round, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad round %q", s), http.StatusBadRequest)
			return
		}
		q.Round = round
	}
	q.Player = game.PlayerID(r.URL.Query().Get("player"))

	ctx, cancel := gs.requestContext(r)
	defer cancel()
	entries, err := gs.audit.Entries(ctx, q)
	if err != nil {
		gs.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="operations.csv"`)
	if err := audit.WriteCSV(w, entries); err != nil {
		gs.log.Printf("write audit csv: %v", err)
	}
}
