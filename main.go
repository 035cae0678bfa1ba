/*
Package main
File: main.go
Description: Server entry point. Loads the world, opens the shared market store,
starts the real-time WebSocket hub and the REST API, and runs the market pulse
heartbeat that re-broadcasts stock levels to every connected client.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/everforgeworks/caravan-roads/internal/api"
	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/ledger"
	"github.com/everforgeworks/caravan-roads/internal/market"
	"github.com/everforgeworks/caravan-roads/internal/session"
	"github.com/everforgeworks/caravan-roads/internal/store/sqlitestore"
	"github.com/everforgeworks/caravan-roads/internal/store/wsstore"
)

const storeTimeout = 5 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env not loaded", "err", err)
	}
	if err := run(logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// 1. Load the world definition (embedded default unless WORLD_CONFIG is set)
	world, err := loadWorld()
	if err != nil {
		return fmt.Errorf("world config: %w", err)
	}

	// 2. Open the shared market store and seed it
	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("market store: %w", err)
	}
	defer closeStore()
	if err := seed(ctx, store, world); err != nil {
		return fmt.Errorf("seed market: %w", err)
	}

	// 3. Narrator: remote service with a local fallback, or local only
	local := combat.NewLocalNarrator(newRNG(), combat.NewResolver(newRNG()))
	var narrator combat.Narrator = local
	if url := os.Getenv("NARRATOR_URL"); url != "" {
		narrator = &combat.Fallback{Primary: combat.NewHTTPNarrator(url), Local: local, Logger: logger}
		logger.Info("remote narrator enabled", "url", url)
	}

	// 4. Ledger
	var recorder ledger.Recorder = ledger.Nop{}
	if dir := os.Getenv("LEDGER_DIR"); dir != "" {
		l := ledger.Open(dir)
		defer l.Close()
		recorder = l
		logger.Info("ledger enabled", "dir", dir)
	}

	sessions := session.NewManager(ctx, session.Config{
		World:    world,
		Store:    store,
		Narrator: narrator,
		IDs:      game.UUIDs{},
		Ledger:   recorder,
		Logger:   logger,
	})
	hub := api.NewHub(store, logger)

	// 5. Setup Router and Handlers
	mux := http.NewServeMux()
	h := &api.Handlers{Sessions: sessions, Hub: hub, Narrator: narrator, Logger: logger}
	h.Routes(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{Addr: ":" + port, Handler: corsMiddleware(mux)}

	// Real-time hub
	g.Go(func() error { return hub.Run(ctx) })

	// THE MARKET HEARTBEAT
	g.Go(func() error {
		ticker := time.NewTicker(pulseInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				hub.Pulse()
			}
		}
	})

	// Hot-reload: SIGHUP re-reads the world for new characters and seeds
	// any cities or goods it adds.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				next, err := loadWorld()
				if err != nil {
					logger.Error("world reload failed", "err", err)
					continue
				}
				if err := seed(ctx, store, next); err != nil {
					logger.Error("reseed failed", "err", err)
					continue
				}
				sessions.SetWorld(next)
				logger.Info("world reloaded", "cities", len(next.Cities))
			}
		}
	})

	g.Go(func() error {
		logger.Info("CARAVAN ROADS server live", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	sessions.Wait()
	return err
}

func loadWorld() (*game.World, error) {
	if path := os.Getenv("WORLD_CONFIG"); path != "" {
		return game.LoadWorld(path)
	}
	return game.DefaultWorld(), nil
}

// openStore picks the market backend: a remote hub (STORE_URL), a SQLite
// file (DB_PATH), or process memory.
func openStore(ctx context.Context, logger *slog.Logger) (market.Store, func(), error) {
	if url := os.Getenv("STORE_URL"); url != "" {
		c, err := wsstore.Dial(ctx, url, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("joined remote market", "url", url)
		return c, func() { c.Close() }, nil
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		s, err := sqlitestore.Open(path, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("market store opened", "path", path)
		return s, func() { s.Close() }, nil
	}
	logger.Info("market store in memory")
	return market.NewMemoryStore(), func() {}, nil
}

func seed(ctx context.Context, store market.Store, w *game.World) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return store.Seed(ctx, w.Cities)
}

func pulseInterval() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("MARKET_PULSE_SECONDS"))
	if err != nil || secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// corsMiddleware lets browser clients on other origins call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
