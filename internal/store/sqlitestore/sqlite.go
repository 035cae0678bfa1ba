/*
Package sqlitestore
File: sqlite.go
Description:
    market.Store backed by a SQLite file. Every server process on the host
    that opens the same file shares one market.

    Stock deltas are applied as a single clamped UPDATE so concurrent writers
    never lose an increment. Writes made by this process are broadcast
    immediately; writes made by other processes are picked up by polling
    PRAGMA data_version.
*/

package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

const defaultPollInterval = 500 * time.Millisecond

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	fanout *market.Fanout

	// pubMu orders "write, read snapshot, publish" so subscribers see
	// snapshots in commit order.
	pubMu       sync.Mutex
	dataVersion int64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open creates (or reuses) the database at path and starts the change poller.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		fanout: market.NewFanout(),
		stop:   make(chan struct{}),
	}
	if v, err := s.readDataVersion(context.Background()); err == nil {
		s.dataVersion = v
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(defaultPollInterval)
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock (
			city_id TEXT NOT NULL,
			good TEXT NOT NULL,
			stock INTEGER NOT NULL,
			max_stock INTEGER NOT NULL,
			PRIMARY KEY (city_id, good)
		);`,
		`CREATE TABLE IF NOT EXISTS presence (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			job TEXT NOT NULL,
			city_id TEXT NOT NULL,
			gold INTEGER NOT NULL,
			inventory_value INTEGER NOT NULL,
			traveling INTEGER NOT NULL,
			last_seen TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) Seed(ctx context.Context, cities []game.City) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock (city_id, good, stock, max_stock)
		VALUES (?, ?, ?, ?) ON CONFLICT (city_id, good) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cities {
		for _, g := range c.Goods {
			if _, err := stmt.ExecContext(ctx, c.ID, g.Name, market.Clamp(g.Stock, g.MaxStock), g.MaxStock); err != nil {
				return fmt.Errorf("seed %s/%s: %w", c.ID, g.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.publishMarket(ctx)
}

func (s *Store) AddStock(ctx context.Context, cityID, good string, delta int) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE stock SET stock = MAX(0, MIN(max_stock, stock + ?)) WHERE city_id = ? AND good = ?`,
		delta, cityID, good)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", market.ErrUnknownStock, cityID, good)
	}
	return s.publishMarketLocked(ctx)
}

func (s *Store) PutPresence(ctx context.Context, p market.Presence) error {
	if p.LastSeen.IsZero() {
		p.LastSeen = time.Now()
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO presence (id, name, job, city_id, gold, inventory_value, traveling, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, job = excluded.job, city_id = excluded.city_id, gold = excluded.gold,
			inventory_value = excluded.inventory_value, traveling = excluded.traveling, last_seen = excluded.last_seen`,
		p.ID, p.Name, string(p.Job), p.CityID, p.Gold, p.InventoryValue, p.Traveling, p.LastSeen.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	return s.publishPresenceLocked(ctx)
}

func (s *Store) RemovePresence(ctx context.Context, id string) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM presence WHERE id = ?`, id); err != nil {
		return err
	}
	return s.publishPresenceLocked(ctx)
}

func (s *Store) Events(ctx context.Context) <-chan market.Event {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	initial := []market.Event{market.Connectivity{Online: true}}
	if snap, err := s.MarketSnapshot(ctx); err == nil {
		initial = append(initial, snap)
	} else {
		s.logger.Warn("sqlite market snapshot failed", "err", err)
	}
	if snap, err := s.PresenceSnapshot(ctx); err == nil {
		initial = append(initial, snap)
	} else {
		s.logger.Warn("sqlite presence snapshot failed", "err", err)
	}
	return s.fanout.Subscribe(ctx, initial...)
}

// MarketSnapshot reads the whole stock table.
func (s *Store) MarketSnapshot(ctx context.Context) (market.MarketSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT city_id, good, stock FROM stock`)
	if err != nil {
		return market.MarketSnapshot{}, err
	}
	defer rows.Close()

	levels := market.StockLevels{}
	for rows.Next() {
		var city, good string
		var stock int
		if err := rows.Scan(&city, &good, &stock); err != nil {
			return market.MarketSnapshot{}, err
		}
		if levels[city] == nil {
			levels[city] = map[string]int{}
		}
		levels[city][good] = stock
	}
	return market.MarketSnapshot{Stock: levels}, rows.Err()
}

// PresenceSnapshot reads every presence record, ordered by ID.
func (s *Store) PresenceSnapshot(ctx context.Context) (market.PresenceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, job, city_id, gold, inventory_value, traveling, last_seen
		FROM presence ORDER BY id`)
	if err != nil {
		return market.PresenceSnapshot{}, err
	}
	defer rows.Close()

	players := []market.Presence{}
	for rows.Next() {
		var (
			p        market.Presence
			job      string
			lastSeen string
		)
		if err := rows.Scan(&p.ID, &p.Name, &job, &p.CityID, &p.Gold, &p.InventoryValue, &p.Traveling, &lastSeen); err != nil {
			return market.PresenceSnapshot{}, err
		}
		p.Job = game.Job(job)
		p.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
		players = append(players, p)
	}
	return market.PresenceSnapshot{Players: players}, rows.Err()
}

func (s *Store) publishMarket(ctx context.Context) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	return s.publishMarketLocked(ctx)
}

func (s *Store) publishMarketLocked(ctx context.Context) error {
	snap, err := s.MarketSnapshot(ctx)
	if err != nil {
		return err
	}
	s.fanout.Publish(snap)
	return nil
}

func (s *Store) publishPresenceLocked(ctx context.Context) error {
	snap, err := s.PresenceSnapshot(ctx)
	if err != nil {
		return err
	}
	s.fanout.Publish(snap)
	return nil
}

func (s *Store) readDataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

// poll republishes both snapshots when another connection commits.
func (s *Store) poll(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
		}
		if s.fanout.Len() == 0 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		s.checkExternalWrites(ctx)
		cancel()
	}
}

func (s *Store) checkExternalWrites(ctx context.Context) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	v, err := s.readDataVersion(ctx)
	if err != nil {
		s.logger.Warn("sqlite poll failed", "err", err)
		return
	}
	if v == s.dataVersion {
		return
	}
	s.dataVersion = v
	if err := s.publishMarketLocked(ctx); err != nil {
		s.logger.Warn("sqlite market snapshot failed", "err", err)
	}
	if err := s.publishPresenceLocked(ctx); err != nil {
		s.logger.Warn("sqlite presence snapshot failed", "err", err)
	}
}
