package server

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/example/house-heist/internal/game"
	"github.com/example/house-heist/internal/protocol"
)

// client is the outbound side of one websocket connection.
type client struct {
	id   game.ConnID
	out  chan []byte
	kick chan struct{}
	once sync.Once
}

// send queues b, discarding the oldest queued frame when the queue is full.
// It reports whether a frame was lost.
func (c *client) send(b []byte) bool {
	select {
	case c.out <- b:
		return false
	default:
	}
	select {
	case <-c.out:
	default:
	}
	select {
	case c.out <- b:
	default:
	}
	return true
}

// close asks the writer to flush what is queued and hang up.
func (c *client) close() {
	c.once.Do(func() { close(c.kick) })
}

// Dispatcher routes world notifications to connected clients. It implements
// game.Outbox; delivery is best effort and never blocks the world.
type Dispatcher struct {
	log  *log.Logger
	size int

	mu      sync.RWMutex
	clients map[game.ConnID]*client

	dropped atomic.Uint64
}

func NewDispatcher(queueSize int, logger *log.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		log:     logger,
		size:    queueSize,
		clients: make(map[game.ConnID]*client),
	}
}

func (d *Dispatcher) register(id game.ConnID) *client {
	c := &client{id: id, out: make(chan []byte, d.size), kick: make(chan struct{})}
	d.mu.Lock()
	d.clients[id] = c
	d.mu.Unlock()
	return c
}

func (d *Dispatcher) unregister(id game.ConnID) {
	d.mu.Lock()
	delete(d.clients, id)
	d.mu.Unlock()
}

// Connected is the number of registered connections.
func (d *Dispatcher) Connected() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// Dropped is the number of frames discarded on full queues.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func (d *Dispatcher) Publish(n game.Notification) {
	b, err := json.Marshal(protocol.FromNotification(n))
	if err != nil {
		d.log.Printf("encode %v: %v", n.Kind, err)
		return
	}
	if n.Broadcast {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, c := range d.clients {
			d.deliver(c, b)
		}
		return
	}

	d.mu.RLock()
	c := d.clients[n.To]
	d.mu.RUnlock()
	if c == nil {
		return
	}
	d.deliver(c, b)
	if n.Kind == game.Superseded {
		c.close()
	}
}

// Send queues v for one connection outside the notification stream.
func (d *Dispatcher) Send(id game.ConnID, v protocol.WSOut) {
	b, err := json.Marshal(v)
	if err != nil {
		d.log.Printf("encode %s: %v", v.Type, err)
		return
	}
	d.mu.RLock()
	c := d.clients[id]
	d.mu.RUnlock()
	if c != nil {
		d.deliver(c, b)
	}
}

func (d *Dispatcher) deliver(c *client, b []byte) {
	if c.send(b) {
		d.dropped.Add(1)
		d.log.Printf("[%d] outbound queue full, dropped oldest frame", c.id)
	}
}
