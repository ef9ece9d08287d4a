package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testToken = "test secret"

type auditLog struct {
	entries []AuditEntry
}

func (a *auditLog) Record(e AuditEntry) { a.entries = append(a.entries, e) }

func (a *auditLog) ops() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Operation
	}
	return out
}

func flatRules(w, h int) Rules {
	r := DefaultRules()
	r.MapWidth = w
	r.MapHeight = h
	r.BaseRent = 0
	r.RentStep = 0
	return r
}

func newTestWorld(t *testing.T, rules Rules) (*World, *auditLog) {
	t.Helper()
	audit := &auditLog{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w, err := New(rules, WithAuditSink(audit), WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	return w, audit
}

// loginN logs in n human clients on conns 1..n.
func loginN(t *testing.T, w *World, n int) []Session {
	t.Helper()
	out := make([]Session, n)
	for i := range out {
		s, err := w.Login(ClientHandle(fmt.Sprintf("client-%d", i+1)), ConnID(i+1))
		require.NoError(t, err)
		out[i] = s
	}
	w.Drain()
	return out
}

func totalMoney(w *World) uint64 {
	var sum uint64
	for _, p := range w.ledger.Players() {
		inv := w.ledger.Inventory(p)
		sum += inv.Money + w.ledger.House(inv.HouseID).Money
	}
	return sum
}

func messagesTo(ns []Notification, conn ConnID) []string {
	var out []string
	for _, n := range ns {
		if n.Kind == ServerMessage && n.To == conn && !n.Broadcast {
			out = append(out, n.Text)
		}
	}
	return out
}

func kinds(ns []Notification) map[NotificationKind]int {
	out := make(map[NotificationKind]int)
	for _, n := range ns {
		out[n.Kind]++
	}
	return out
}
