/*
Package market
File: store.go
Description:
    The shared-state contract. A Store holds the authoritative stock of every
    (city, good) pair plus the presence records of connected players, and
    pushes full snapshots to subscribers whenever either changes.

    Implementations: MemoryStore (this package), sqlitestore (SQLite file
    shared by every process on the host) and wsstore (remote hub client).
*/

package market

import (
	"context"
	"errors"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

//go:generate go tool mockgen -destination=./mocks/store_mock.go -package=mocks . Store

// ErrUnknownStock is returned when a delta targets a pair that was never seeded.
var ErrUnknownStock = errors.New("no stock record")

// Store is the backing realtime store.
type Store interface {
	// Seed creates missing stock records from the world definition. Existing
	// records keep their current value.
	Seed(ctx context.Context, cities []game.City) error
	// AddStock applies a signed delta as one atomic clamped increment.
	AddStock(ctx context.Context, cityID, good string, delta int) error
	PutPresence(ctx context.Context, p Presence) error
	RemovePresence(ctx context.Context, id string) error
	// Events delivers the current snapshots immediately, then every change,
	// until ctx is done.
	Events(ctx context.Context) <-chan Event
}

// Presence is the record each player publishes about themselves.
type Presence struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Job            game.Job  `json:"job"`
	CityID         string    `json:"city_id"`
	Gold           int       `json:"gold"`
	InventoryValue int       `json:"inventory_value"`
	Traveling      bool      `json:"traveling"`
	LastSeen       time.Time `json:"last_seen"`
}

// Event is one of MarketSnapshot, PresenceSnapshot or Connectivity.
type Event interface {
	isEvent()
}

// StockLevels maps city ID -> good name -> units.
type StockLevels map[string]map[string]int

// MarketSnapshot is the full stock table.
type MarketSnapshot struct {
	Stock StockLevels `json:"stock"`
}

// PresenceSnapshot lists every connected player.
type PresenceSnapshot struct {
	Players []Presence `json:"players"`
}

// Connectivity reports whether the store is reachable.
type Connectivity struct {
	Online bool   `json:"online"`
	Reason string `json:"reason,omitempty"`
}

func (MarketSnapshot) isEvent()   {}
func (PresenceSnapshot) isEvent() {}
func (Connectivity) isEvent()     {}

// Clone copies the nested maps.
func (s StockLevels) Clone() StockLevels {
	out := make(StockLevels, len(s))
	for city, goods := range s {
		m := make(map[string]int, len(goods))
		for g, n := range goods {
			m[g] = n
		}
		out[city] = m
	}
	return out
}

// Clamp bounds a stock value into [0, max].
func Clamp(stock, maxStock int) int {
	if stock < 0 {
		return 0
	}
	if stock > maxStock {
		return maxStock
	}
	return stock
}
