package game

import (
	"fmt"
	"sort"
	"sync"
)

// LoginResult describes how a login was bound.
type LoginResult struct {
	Player      PlayerID
	Reconnected bool
	// Superseded is the human connection that previously held the identity,
	// or 0.
	Superseded ConnID
}

// IdentityMap binds connections and client handles to player identities.
// It has its own lock so transports may read it while the world mutates
// balances.
type IdentityMap struct {
	mu sync.RWMutex

	connToPlayer map[ConnID]PlayerID
	playerToConn map[PlayerID]ConnID
	virtual      map[PlayerID]ConnID

	clientToPlayer map[ClientHandle]PlayerID
	playerToClient map[PlayerID]ClientHandle

	tokens map[ConnID]string

	// Bot-controlled identities available for takeover. Identities no
	// client ever claimed are handed out before released ones so a
	// disconnected client keeps its identity as long as possible.
	fresh    freeList
	released freeList
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		connToPlayer:   make(map[ConnID]PlayerID),
		playerToConn:   make(map[PlayerID]ConnID),
		virtual:        make(map[PlayerID]ConnID),
		clientToPlayer: make(map[ClientHandle]PlayerID),
		playerToClient: make(map[PlayerID]ClientHandle),
		tokens:         make(map[ConnID]string),
		fresh:          newFreeList(),
		released:       newFreeList(),
	}
}

// addBots registers identities in creation order, each driven by its own
// virtual connection -(i+1).
func (m *IdentityMap) addBots(players []PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := len(m.virtual)
	for i, p := range players {
		if _, dup := m.virtual[p]; dup {
			invariantf("identity %s registered twice", p)
		}
		v := ConnID(-(base + i + 1))
		m.virtual[p] = v
		m.connToPlayer[v] = p
		m.playerToConn[p] = v
	}
	// Popped from the back, so the first created identity is taken first.
	for i := len(players) - 1; i >= 0; i-- {
		m.fresh.push(players[i])
	}
}

// Login binds conn to the identity remembered for client, or takes over a
// bot-controlled identity when the client is new.
func (m *IdentityMap) Login(client ClientHandle, conn ConnID) (LoginResult, error) {
	if conn <= 0 {
		return LoginResult{}, fmt.Errorf("login on non-human connection %d", conn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.connToPlayer[conn]; ok {
		if c, bound := m.playerToClient[cur]; bound && c == client {
			return LoginResult{Player: cur, Reconnected: true}, nil
		}
		m.logoutLocked(conn)
	}

	if p, ok := m.clientToPlayer[client]; ok {
		res := LoginResult{Player: p, Reconnected: true}
		old := m.playerToConn[p]
		delete(m.connToPlayer, old)
		if old > 0 {
			delete(m.tokens, old)
			res.Superseded = old
		} else {
			m.released.remove(p)
		}
		m.bindLocked(p, conn)
		return res, nil
	}

	p, ok := m.fresh.pop()
	if !ok {
		p, ok = m.released.pop()
	}
	if !ok {
		return LoginResult{}, ErrNoAvailableIdentity
	}
	delete(m.connToPlayer, m.playerToConn[p])
	if prev, bound := m.playerToClient[p]; bound {
		delete(m.clientToPlayer, prev)
	}
	m.clientToPlayer[client] = p
	m.playerToClient[p] = client
	m.bindLocked(p, conn)
	return LoginResult{Player: p}, nil
}

func (m *IdentityMap) bindLocked(p PlayerID, conn ConnID) {
	m.connToPlayer[conn] = p
	m.playerToConn[p] = conn
}

// Logout releases conn. The identity goes back under bot control and keeps
// its client handle for a later reconnect.
func (m *IdentityMap) Logout(conn ConnID) (PlayerID, error) {
	if conn <= 0 {
		return "", ErrNotLoggedIn
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.connToPlayer[conn]
	if !ok {
		return "", ErrNotLoggedIn
	}
	m.logoutLocked(conn)
	return p, nil
}

func (m *IdentityMap) logoutLocked(conn ConnID) {
	p := m.connToPlayer[conn]
	delete(m.connToPlayer, conn)
	delete(m.tokens, conn)
	v := m.virtual[p]
	m.connToPlayer[v] = p
	m.playerToConn[p] = v
	m.released.push(p)
}

func (m *IdentityMap) Resolve(conn ConnID) (PlayerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.connToPlayer[conn]
	if !ok {
		return "", ErrNotLoggedIn
	}
	return p, nil
}

// IsBotControlled reports whether conn is a bot virtual connection.
func IsBotControlled(conn ConnID) bool { return conn < 0 }

func (m *IdentityMap) IsBotControlled(conn ConnID) bool { return IsBotControlled(conn) }

// ConnOf returns the live connection of player, negative when a bot drives it.
func (m *IdentityMap) ConnOf(player PlayerID) ConnID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.playerToConn[player]
	if !ok {
		invariantf("unknown identity %q", player)
	}
	return c
}

func (m *IdentityMap) ClientOf(player PlayerID) (ClientHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.playerToClient[player]
	return c, ok
}

func (m *IdentityMap) SetToken(conn ConnID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connToPlayer[conn]; ok {
		m.tokens[conn] = token
	}
}

func (m *IdentityMap) Token(conn ConnID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[conn]
	return t, ok
}

// Humans returns the identities with a live human connection, sorted.
func (m *IdentityMap) Humans() []PlayerID { return m.filter(func(c ConnID) bool { return c > 0 }) }

// Bots returns the bot-controlled identities, sorted.
func (m *IdentityMap) Bots() []PlayerID { return m.filter(IsBotControlled) }

func (m *IdentityMap) filter(keep func(ConnID) bool) []PlayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PlayerID
	for p, c := range m.playerToConn {
		if keep(c) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Available is the number of identities a new client could take over.
func (m *IdentityMap) Available() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fresh.len() + m.released.len()
}

type freeList struct {
	items []PlayerID
	pos   map[PlayerID]int
}

func newFreeList() freeList {
	return freeList{pos: make(map[PlayerID]int)}
}

func (f *freeList) push(p PlayerID) {
	if _, ok := f.pos[p]; ok {
		return
	}
	f.pos[p] = len(f.items)
	f.items = append(f.items, p)
}

func (f *freeList) pop() (PlayerID, bool) {
	if len(f.items) == 0 {
		return "", false
	}
	p := f.items[len(f.items)-1]
	f.remove(p)
	return p, true
}

func (f *freeList) remove(p PlayerID) {
	i, ok := f.pos[p]
	if !ok {
		return
	}
	last := len(f.items) - 1
	f.items[i] = f.items[last]
	f.pos[f.items[i]] = i
	f.items = f.items[:last]
	delete(f.pos, p)
}

func (f *freeList) len() int { return len(f.items) }
