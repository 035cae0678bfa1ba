/*
Package wsstore
File: client.go
Description:
    market.Store implemented as a client of another server's /ws hub. Lets a
    process join a market hosted elsewhere.

    Writes are sent as protocol frames without waiting for acknowledgement.
    Snapshots pushed by the hub are re-published to local subscribers. When
    the socket drops, subscribers receive Connectivity{Online:false}, the
    client redials with backoff, and after reconnecting it re-sends the seed
    and every presence record it owns (the hub drops them on disconnect).
*/

package wsstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/caravan-roads/internal/api"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

// ErrOffline is returned by writes while the socket is down.
var ErrOffline = errors.New("market hub unreachable")

const (
	writeWait  = 10 * time.Second
	maxBackoff = 10 * time.Second
)

type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
	fanout *market.Fanout

	mu           sync.Mutex
	conn         *websocket.Conn
	online       bool
	seed         []game.City
	owned        map[string]market.Presence
	lastMarket   *market.MarketSnapshot
	lastPresence *market.PresenceSnapshot

	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to a hub at url (ws://host/ws). The first connection must
// succeed; later drops are retried in the background until Close.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
		fanout: market.NewFanout(),
		owned:  make(map[string]market.Presence),
		done:   make(chan struct{}),
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.online = true

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		defer close(c.done)
		c.run(runCtx, conn)
	}()
	return c, nil
}

func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func (c *Client) Seed(_ context.Context, cities []game.City) error {
	c.mu.Lock()
	c.seed = append([]game.City(nil), cities...)
	c.mu.Unlock()
	return c.send(api.TypeSeed, api.SeedPayload{Cities: cities})
}

func (c *Client) AddStock(_ context.Context, cityID, good string, delta int) error {
	return c.send(api.TypeAddStock, api.AddStockPayload{CityID: cityID, Good: good, Delta: delta})
}

// PutPresence records p as owned and sends it. Both happen under writeMu so
// the owned set always matches the last frame sent for that ID.
func (c *Client) PutPresence(_ context.Context, p market.Presence) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.owned[p.ID] = p
	c.mu.Unlock()
	return c.sendLocked(api.TypePutPresence, p)
}

func (c *Client) RemovePresence(_ context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	delete(c.owned, id)
	c.mu.Unlock()
	return c.sendLocked(api.TypeRemovePresence, api.RemovePresencePayload{ID: id})
}

func (c *Client) Events(ctx context.Context) <-chan market.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	initial := []market.Event{market.Connectivity{Online: c.online}}
	if c.lastMarket != nil {
		initial = append(initial, *c.lastMarket)
	}
	if c.lastPresence != nil {
		initial = append(initial, *c.lastPresence)
	}
	return c.fanout.Subscribe(ctx, initial...)
}

func (c *Client) send(msgType string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sendLocked(msgType, payload)
}

// sendLocked writes one frame. writeMu must be held.
func (c *Client) sendLocked(msgType string, payload any) error {
	data, err := api.Encode(msgType, "", payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn, online := c.conn, c.online
	c.mu.Unlock()
	if !online || conn == nil {
		return ErrOffline
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// run reads until the socket fails, then redials with exponential backoff.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	// Closing the current socket unblocks read once ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			c.conn.Close()
		}
	})
	defer stop()

	for {
		c.read(conn)
		c.setOffline("connection lost")
		if ctx.Err() != nil {
			return
		}

		next, err := c.redial(ctx)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			next.Close()
			return
		}
		conn = next
		c.resend()
	}
}

func (c *Client) read(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg api.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("hub sent invalid json", "err", err)
			continue
		}
		switch msg.Type {
		case api.TypeMarketSnapshot, api.TypeMarketPulse:
			var snap market.MarketSnapshot
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				c.logger.Warn("bad market snapshot", "err", err)
				continue
			}
			c.mu.Lock()
			c.lastMarket = &snap
			c.mu.Unlock()
			c.fanout.Publish(snap)
		case api.TypePresenceSnapshot:
			var snap market.PresenceSnapshot
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				c.logger.Warn("bad presence snapshot", "err", err)
				continue
			}
			c.mu.Lock()
			c.lastPresence = &snap
			c.mu.Unlock()
			c.fanout.Publish(snap)
		case api.TypeError:
			var p api.ErrorPayload
			_ = json.Unmarshal(msg.Payload, &p)
			c.logger.Warn("hub rejected message", "reason", p.Message)
		}
	}
}

func (c *Client) setOffline(reason string) {
	c.mu.Lock()
	was := c.online
	c.online = false
	c.mu.Unlock()
	if was {
		c.logger.Warn("market hub offline", "url", c.url, "reason", reason)
		c.fanout.Publish(market.Connectivity{Online: false, Reason: reason})
	}
}

func (c *Client) redial(ctx context.Context) (*websocket.Conn, error) {
	backoff := 250 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.online = true
			c.mu.Unlock()
			c.logger.Info("market hub reconnected", "url", c.url)
			c.fanout.Publish(market.Connectivity{Online: true})
			return conn, nil
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// resend holds writeMu throughout so a concurrent PutPresence cannot be
// followed by an older copy of the same record.
func (c *Client) resend() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	seed := c.seed
	owned := make([]market.Presence, 0, len(c.owned))
	for _, p := range c.owned {
		owned = append(owned, p)
	}
	c.mu.Unlock()

	if seed != nil {
		if err := c.sendLocked(api.TypeSeed, api.SeedPayload{Cities: seed}); err != nil {
			c.logger.Warn("reseed failed", "err", err)
		}
	}
	for _, p := range owned {
		if err := c.sendLocked(api.TypePutPresence, p); err != nil {
			c.logger.Warn("presence resend failed", "player", p.ID, "err", err)
		}
	}
}
