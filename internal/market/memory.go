package market

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

type stockRecord struct {
	stock    int
	maxStock int
}

// MemoryStore is an in-process Store. All sessions of one server process can
// share it; the hub relays it to remote clients.
// Snapshots are published while mu is held so subscribers see them in
// mutation order.
type MemoryStore struct {
	mu       sync.Mutex
	stock    map[string]map[string]*stockRecord
	presence map[string]Presence
	fanout   *Fanout
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stock:    make(map[string]map[string]*stockRecord),
		presence: make(map[string]Presence),
		fanout:   NewFanout(),
		now:      time.Now,
	}
}

func (m *MemoryStore) Seed(_ context.Context, cities []game.City) error {
	m.mu.Lock()
	for _, c := range cities {
		goods, ok := m.stock[c.ID]
		if !ok {
			goods = make(map[string]*stockRecord)
			m.stock[c.ID] = goods
		}
		for _, g := range c.Goods {
			if _, exists := goods[g.Name]; exists {
				continue
			}
			goods[g.Name] = &stockRecord{stock: Clamp(g.Stock, g.MaxStock), maxStock: g.MaxStock}
		}
	}
	m.fanout.Publish(m.marketLocked())
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) AddStock(_ context.Context, cityID, good string, delta int) error {
	m.mu.Lock()
	rec := m.stock[cityID][good]
	if rec == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrUnknownStock, cityID, good)
	}
	rec.stock = Clamp(rec.stock+delta, rec.maxStock)
	m.fanout.Publish(m.marketLocked())
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PutPresence(_ context.Context, p Presence) error {
	m.mu.Lock()
	if p.LastSeen.IsZero() {
		p.LastSeen = m.now()
	}
	m.presence[p.ID] = p
	m.fanout.Publish(m.presenceLocked())
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemovePresence(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.presence[id]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.presence, id)
	m.fanout.Publish(m.presenceLocked())
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Events(ctx context.Context) <-chan Event {
	// Holding mu keeps a concurrent publish from slipping in ahead of the
	// initial snapshots.
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fanout.Subscribe(ctx, Connectivity{Online: true}, m.marketLocked(), m.presenceLocked())
}

// Snapshot returns the current stock table.
func (m *MemoryStore) Snapshot() MarketSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marketLocked()
}

// Players returns the current presence list.
func (m *MemoryStore) Players() PresenceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presenceLocked()
}

func (m *MemoryStore) marketLocked() MarketSnapshot {
	levels := make(StockLevels, len(m.stock))
	for city, goods := range m.stock {
		row := make(map[string]int, len(goods))
		for name, rec := range goods {
			row[name] = rec.stock
		}
		levels[city] = row
	}
	return MarketSnapshot{Stock: levels}
}

func (m *MemoryStore) presenceLocked() PresenceSnapshot {
	players := make([]Presence, 0, len(m.presence))
	for _, p := range m.presence {
		players = append(players, p)
	}
	SortPlayers(players)
	return PresenceSnapshot{Players: players}
}

// SortPlayers orders presence records by ID for stable output.
func SortPlayers(players []Presence) {
	slices.SortFunc(players, func(a, b Presence) int { return strings.Compare(a.ID, b.ID) })
}
