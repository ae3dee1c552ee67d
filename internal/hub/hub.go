// Package hub fans server state out to every connected websocket client.
// Publishes are fire-and-forget: a slow peer's queue fills up and frames are
// dropped rather than backpressuring the publisher.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"cardroom/internal/models"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Frame types sent to clients.
const (
	TypeState          = "state"
	TypeChat           = "chat"
	TypeNotice         = "notice"
	TypeAuthOK         = "auth_ok"
	TypeError          = "error"
	TypeTradeRequest   = "trade_request"
	TypeBlackjack      = "blackjack"
	TypePokerResult    = "poker_result"
	TypeGiveawayClosed = "giveaway_closed"
)

// Envelope is the wire frame for every outbound message.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ChatMessage is the payload of a relayed chat line.
type ChatMessage struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// sendBuffer bounds each client's outbound queue. A stalled peer loses
// frames once it is full.
const sendBuffer = 64

// Client is one connected websocket peer. Writes go through the send
// channel; a single writer goroutine owns the connection.
type Client struct {
	ID   int64
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// Send queues a frame for the client, dropping it if the queue is full.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		log.WithField("conn_id", c.ID).Warn("send queue full, dropping frame")
	}
}

// Close shuts the client's writer down. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.send) })
}

func (c *Client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.WithField("conn_id", c.ID).Debugf("write failed: %v", err)
			break
		}
	}
	c.conn.Close()
	// Drain so late Sends never block.
	for range c.send {
	}
}

// Hub tracks connected clients and broadcasts state snapshots built by the
// snapshot function after each committed mutation.
type Hub struct {
	mu       sync.RWMutex
	clients  map[int64]*Client
	nextID   int64
	snapshot func() models.StateSnapshot
	pub      chan struct{}
}

// New creates a hub. The snapshot function is called by the broadcaster
// goroutine, never inside a caller's critical section.
func New(snapshot func() models.StateSnapshot) *Hub {
	return &Hub{
		clients:  make(map[int64]*Client),
		snapshot: snapshot,
		pub:      make(chan struct{}, 1),
	}
}

// Register adds a connection and starts its writer. Returns the client with
// its assigned connection id.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   atomic.AddInt64(&h.nextID, 1),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	go client.writePump()
	return client
}

// Remove drops a client on disconnect.
func (h *Hub) Remove(connID int64) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		client.Close()
	}
}

// Publish schedules a snapshot broadcast. Signals coalesce: many mutations
// in a burst produce one fresh snapshot, built after they all committed.
func (h *Hub) Publish() {
	select {
	case h.pub <- struct{}{}:
	default:
	}
}

// Run consumes publish signals until the context is cancelled. Call it from
// a dedicated goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.pub:
			h.Broadcast(Envelope{Type: TypeState, Data: h.snapshot()})
		}
	}
}

// Broadcast sends a frame to every connected client.
func (h *Hub) Broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Errorf("failed to marshal %s frame: %v", env.Type, err)
		return
	}
	h.mu.RLock()
	for _, client := range h.clients {
		client.Send(data)
	}
	h.mu.RUnlock()
}

// SendTo sends a frame to a single connection. Unknown ids are ignored; the
// peer may have disconnected.
func (h *Hub) SendTo(connID int64, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Errorf("failed to marshal %s frame: %v", env.Type, err)
		return
	}
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		client.Send(data)
	}
}

// Announce broadcasts a plain server notice.
func (h *Hub) Announce(text string) {
	h.Broadcast(Envelope{Type: TypeNotice, Data: text})
}
