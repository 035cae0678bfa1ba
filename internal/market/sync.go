/*
Package market
File: sync.go
Description:
    The client side of market synchronization.

    1. Local stock is mutated immediately (optimistic apply).
    2. The same delta is sent to the Store without waiting for it.
    3. Inbound full snapshots overwrite local stock unconditionally.

    Presence writes for one player ID go through a latest-wins slot drained
    by a single goroutine, so the store never sees them out of order and
    only the newest pending record is sent.

    Store failures are logged and swallowed. Local state is never rolled back;
    the next snapshot from the store reconciles it.
*/

package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

const propagateTimeout = 5 * time.Second

// Sync pairs a session's local world view with a Store.
type Sync struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	group    *errgroup.Group
	presence map[string]*presenceSlot
}

// presenceSlot holds the newest unsent presence write for one player.
type presenceSlot struct {
	pending  *presenceOp
	draining bool
}

type presenceOp struct {
	put    Presence
	remove bool
}

func NewSync(store Store, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		store:    store,
		logger:   logger,
		group:    new(errgroup.Group),
		presence: make(map[string]*presenceSlot),
	}
}

// Store exposes the backing store, e.g. for subscribing to events.
func (s *Sync) Store() Store { return s.store }

// ApplyStock mutates the local good (clamped) and propagates the delta.
func (s *Sync) ApplyStock(cityID string, good *game.TradeGood, delta int) {
	good.AdjustStock(delta)
	name := good.Name
	s.goPropagate("add_stock", func(ctx context.Context) error {
		return s.store.AddStock(ctx, cityID, name, delta)
	}, "city", cityID, "good", name, "delta", delta)
}

// ApplySnapshot overwrites every known (city, good) pair from snap. Pairs
// absent from the snapshot are left alone. Last snapshot wins.
func (s *Sync) ApplySnapshot(w *game.World, snap MarketSnapshot) {
	for i := range w.Cities {
		c := &w.Cities[i]
		row, ok := snap.Stock[c.ID]
		if !ok {
			continue
		}
		for j := range c.Goods {
			g := &c.Goods[j]
			if stock, ok := row[g.Name]; ok {
				g.SetStock(stock)
			}
		}
	}
}

// PublishPresence sends the record without waiting. A newer record for the
// same ID supersedes one that has not been sent yet.
func (s *Sync) PublishPresence(p Presence) {
	s.queuePresence(p.ID, presenceOp{put: p})
}

// RemovePresence deletes the record without waiting, after any earlier
// write for the same ID.
func (s *Sync) RemovePresence(id string) {
	s.queuePresence(id, presenceOp{remove: true})
}

func (s *Sync) queuePresence(id string, op presenceOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.presence[id]
	if !ok {
		slot = &presenceSlot{}
		s.presence[id] = slot
	}
	slot.pending = &op
	if slot.draining {
		return
	}
	slot.draining = true
	s.group.Go(func() error { return s.drainPresence(id, slot) })
}

// drainPresence sends the slot's pending op until none is left. It returns
// the first failure but keeps draining.
func (s *Sync) drainPresence(id string, slot *presenceSlot) error {
	var first error
	for {
		s.mu.Lock()
		op := slot.pending
		slot.pending = nil
		if op == nil {
			slot.draining = false
			delete(s.presence, id)
			s.mu.Unlock()
			return first
		}
		s.mu.Unlock()

		name, fn := "put_presence", func(ctx context.Context) error {
			return s.store.PutPresence(ctx, op.put)
		}
		if op.remove {
			name, fn = "remove_presence", func(ctx context.Context) error {
				return s.store.RemovePresence(ctx, id)
			}
		}
		if err := s.propagate(name, fn, "player", id); err != nil && first == nil {
			first = err
		}
	}
}

// Flush waits for every propagation started so far, including presence
// writes queued while it waits, and returns the first error among them.
func (s *Sync) Flush() error {
	var first error
	for {
		s.mu.Lock()
		g := s.group
		s.group = new(errgroup.Group)
		s.mu.Unlock()
		if err := g.Wait(); err != nil && first == nil {
			first = err
		}

		s.mu.Lock()
		idle := len(s.presence) == 0
		s.mu.Unlock()
		if idle {
			return first
		}
	}
}

func (s *Sync) goPropagate(op string, fn func(ctx context.Context) error, attrs ...any) {
	// Go is called under mu so Flush never waits on a group that is still
	// being added to.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group.Go(func() error { return s.propagate(op, fn, attrs...) })
}

func (s *Sync) propagate(op string, fn func(ctx context.Context) error, attrs ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warn("market sync failed", append([]any{"op", op, "err", err}, attrs...)...)
		return err
	}
	return nil
}
