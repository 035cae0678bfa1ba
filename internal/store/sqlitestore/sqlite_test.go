package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func seedWorld(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Seed(context.Background(), game.DefaultWorld().Cities); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func stockOf(t *testing.T, s *Store, city, good string) int {
	t.Helper()
	snap, err := s.MarketSnapshot(context.Background())
	if err != nil {
		t.Fatalf("MarketSnapshot: %v", err)
	}
	return snap.Stock[city][good]
}

func TestAddStock_ClampsInOneStatement(t *testing.T) {
	s, _ := openTemp(t)
	seedWorld(t, s)
	ctx := context.Background()

	if err := s.AddStock(ctx, "goldhaven", "Iron Ore", -3); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if got := stockOf(t, s, "goldhaven", "Iron Ore"); got != 47 {
		t.Fatalf("expected 47, got %d", got)
	}
	if err := s.AddStock(ctx, "goldhaven", "Iron Ore", -1000); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if got := stockOf(t, s, "goldhaven", "Iron Ore"); got != 0 {
		t.Fatalf("expected floor at 0, got %d", got)
	}
	if err := s.AddStock(ctx, "goldhaven", "Iron Ore", 1000); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if got := stockOf(t, s, "goldhaven", "Iron Ore"); got != 100 {
		t.Fatalf("expected ceiling at 100, got %d", got)
	}
}

func TestAddStock_ConcurrentDeltasAreNotLost(t *testing.T) {
	s, _ := openTemp(t)
	seedWorld(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AddStock(ctx, "arcana", "Food", -1); err != nil {
				t.Errorf("AddStock: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := stockOf(t, s, "arcana", "Food"); got != 80 {
		t.Fatalf("expected 80, got %d", got)
	}
}

func TestAddStock_UnknownPair(t *testing.T) {
	s, _ := openTemp(t)
	err := s.AddStock(context.Background(), "goldhaven", "Dragon Egg", 1)
	if !errors.Is(err, market.ErrUnknownStock) {
		t.Fatalf("expected ErrUnknownStock, got %v", err)
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	s, path := openTemp(t)
	seedWorld(t, s)
	if err := s.AddStock(context.Background(), "goldhaven", "Food", -10); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	seedWorld(t, s)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var stock, maxStock int
	row := db.QueryRow(`SELECT stock, max_stock FROM stock WHERE city_id='goldhaven' AND good='Food'`)
	if err := row.Scan(&stock, &maxStock); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stock != 90 || maxStock != 200 {
		t.Fatalf("row mismatch: stock=%d max=%d", stock, maxStock)
	}
}

func TestPresence_RoundTrip(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	p := market.Presence{ID: "p1", Name: "Aria", Job: game.JobWizard, CityID: "arcana", Gold: 4200, InventoryValue: 900, Traveling: true}
	if err := s.PutPresence(ctx, p); err != nil {
		t.Fatalf("PutPresence: %v", err)
	}
	snap, err := s.PresenceSnapshot(ctx)
	if err != nil {
		t.Fatalf("PresenceSnapshot: %v", err)
	}
	if len(snap.Players) != 1 {
		t.Fatalf("expected 1 player, got %d", len(snap.Players))
	}
	got := snap.Players[0]
	if got.Name != "Aria" || got.Job != game.JobWizard || !got.Traveling || got.InventoryValue != 900 || got.LastSeen.IsZero() {
		t.Fatalf("presence mismatch: %+v", got)
	}

	if err := s.RemovePresence(ctx, "p1"); err != nil {
		t.Fatalf("RemovePresence: %v", err)
	}
	snap, _ = s.PresenceSnapshot(ctx)
	if len(snap.Players) != 0 {
		t.Fatalf("expected empty presence, got %+v", snap.Players)
	}
}

func TestEvents_SeesWritesFromAnotherConnection(t *testing.T) {
	s, path := openTemp(t)
	seedWorld(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Events(ctx)

	other, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer other.Close()
	if err := other.AddStock(context.Background(), "frosthold", "Iron Ore", -5); err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if snap, ok := ev.(market.MarketSnapshot); ok && snap.Stock["frosthold"]["Iron Ore"] == 45 {
				return
			}
		case <-deadline:
			t.Fatalf("never observed the external write")
		}
	}
}
