/*
Package api
File: hub.go
Description:
    The WebSocket Hub is the core of the real-time communication layer.

    It exposes the server's market.Store to remote processes. Inbound frames
    (validated against the protocol schema) are applied to the store; every
    snapshot the store emits is broadcast to all connected clients.

    Architecture:
    - Hub: One per server, owns the client registry and the broadcast loop.
    - Client: Represents one socket. Remembers the presence records it
      published so they can be removed when it disconnects. A record
      re-published over a newer socket belongs to that socket; the old
      one's cleanup leaves it alone.
    - ServeWs: The HTTP handler that upgrades a GET request to a WebSocket.
*/

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/caravan-roads/internal/market"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	storeTimeout = 5 * time.Second
)

// Client represents a single connected process.
// It acts as a middleman between the websocket connection and the Hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte         // Buffered channel for outbound messages
	presence map[string]struct{} // Presence IDs published over this socket (readPump only)
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts store snapshots to them.
type Hub struct {
	store  market.Store
	logger *slog.Logger

	// Registered clients map.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	direct     chan directMessage
	pulse      chan struct{}
	done       chan struct{} // Closed when Run returns

	// Last encoded snapshots, replayed to newly registered clients.
	lastMarket   []byte
	lastPresence []byte
	lastStock    market.MarketSnapshot

	online atomic.Int64

	// Which socket last published each presence ID.
	ownersMu sync.Mutex
	owners   map[string]*Client
}

// NewHub creates a new Hub instance. Run must be started before clients connect.
func NewHub(store market.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:      store,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage, 64),
		pulse:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		owners:     make(map[string]*Client),
	}
}

// Online returns the number of connected sockets.
func (h *Hub) Online() int { return int(h.online.Load()) }

// Pulse asks the hub to broadcast a market_pulse with the latest stock table.
func (h *Hub) Pulse() {
	select {
	case h.pulse <- struct{}{}:
	default:
	}
}

// Run is the main event loop for the Hub. It blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	events := h.store.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return nil

		case client := <-h.register:
			h.clients[client] = true
			h.online.Add(1)
			h.logger.Info("ws client registered", "remote", client.conn.RemoteAddr().String())
			for _, snap := range [][]byte{h.lastMarket, h.lastPresence} {
				if snap != nil {
					h.deliver(client, snap)
				}
			}

		case client := <-h.unregister:
			// Clean up resources to prevent leaks.
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.data)
			}

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, relay, err := EncodeEvent(ev)
			if err != nil {
				h.logger.Error("encode store event", "err", err)
				continue
			}
			if !relay {
				continue
			}
			switch e := ev.(type) {
			case market.MarketSnapshot:
				h.lastMarket = data
				h.lastStock = e
			case market.PresenceSnapshot:
				h.lastPresence = data
			}
			h.broadcast(data)

		case <-h.pulse:
			if h.lastMarket == nil {
				continue
			}
			data, err := Encode(TypeMarketPulse, "system", h.lastStock)
			if err != nil {
				h.logger.Error("encode market pulse", "err", err)
				continue
			}
			h.broadcast(data)
			h.logger.Info("market pulse", "clients", len(h.clients))
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	for client := range h.clients {
		h.deliver(client, data)
	}
}

// deliver never blocks the loop. If the client's send buffer is full, assume
// it hung and drop it.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("ws client too slow, dropping")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.online.Add(-1)
}

// upgrader configures the WebSocket handshake.
// CheckOrigin returns true to allow connections from any host.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs handles the HTTP request that initiates a WebSocket connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), presence: make(map[string]struct{})}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Separate pumps so one slow client doesn't block the whole server.
	go client.writePump()
	go client.readPump()
}

// readPump applies inbound frames to the store.
func (c *Client) readPump() {
	defer func() {
		c.releasePresence()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws read error", "err", err)
			}
			return
		}
		if err := c.apply(raw); err != nil {
			c.hub.logger.Warn("ws message rejected", "err", err)
			if data, encErr := Encode(TypeError, "system", ErrorPayload{Message: err.Error()}); encErr == nil {
				select {
				case c.hub.direct <- directMessage{client: c, data: data}:
				case <-c.hub.done:
				}
			}
		}
	}
}

func (c *Client) apply(raw []byte) error {
	msg, err := DecodeInbound(raw)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch msg.Type {
	case TypeSeed:
		var p SeedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		return c.hub.store.Seed(ctx, p.Cities)
	case TypeAddStock:
		var p AddStockPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		return c.hub.store.AddStock(ctx, p.CityID, p.Good, p.Delta)
	case TypePutPresence:
		var p market.Presence
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		p.LastSeen = time.Now()
		c.presence[p.ID] = struct{}{}
		return c.hub.putPresence(ctx, c, p)
	case TypeRemovePresence:
		var p RemovePresencePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		delete(c.presence, p.ID)
		return c.hub.removePresence(ctx, c, p.ID)
	}
	return nil
}

// releasePresence removes every record this socket still owns.
func (c *Client) releasePresence() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	for id := range c.presence {
		if err := c.hub.removePresence(ctx, c, id); err != nil {
			c.hub.logger.Warn("presence cleanup failed", "player", id, "err", err)
		}
	}
}

// putPresence writes p and hands its ID to c.
func (h *Hub) putPresence(ctx context.Context, c *Client, p market.Presence) error {
	h.ownersMu.Lock()
	defer h.ownersMu.Unlock()
	h.owners[p.ID] = c
	return h.store.PutPresence(ctx, p)
}

// removePresence deletes the record only while c still owns it.
func (h *Hub) removePresence(ctx context.Context, c *Client, id string) error {
	h.ownersMu.Lock()
	defer h.ownersMu.Unlock()
	if owner, ok := h.owners[id]; ok && owner != c {
		return nil
	}
	delete(h.owners, id)
	return h.store.RemovePresence(ctx, id)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
