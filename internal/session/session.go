/*
Package session
File: session.go
Description:
    One player's running game. A Session owns its Character, a private copy
    of the world (so local stock views never alias between players) and a
    single dispatcher goroutine.

    Everything that touches session state runs on that goroutine:
    1. Intents from callers (travel, buy, sell, discard, use, combat, bribe).
    2. Travel ticks while a trip is underway.
    3. Snapshots and connectivity changes from the shared store.
    4. Completed combat turns and narrated ambushes (the narrator calls
       themselves run off-loop).

    Callers block only on their own intent's reply.
*/

package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/encounter"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/ledger"
	"github.com/everforgeworks/caravan-roads/internal/market"
	"github.com/everforgeworks/caravan-roads/internal/travel"
)

var (
	// ErrClosed is returned once the session loop has stopped.
	ErrClosed = errors.New("session closed")
)

const (
	turnTimeout      = 15 * time.Second
	encounterTimeout = 3 * time.Second
	maxLogEntries    = 20
	playerLevel      = 1
)

// Config wires a session's collaborators. World is cloned; nothing else is
// copied, so Store, Narrator and Ledger may be shared between sessions.
// RNG is used only from the session goroutine and must not be shared.
type Config struct {
	World    *game.World
	Store    market.Store
	Narrator combat.Narrator
	IDs      game.IDProvider
	RNG      game.Roller
	Ledger   ledger.Recorder
	Logger   *slog.Logger

	// Character restores an existing character instead of rolling a new one.
	Character *game.Character
}

type response struct {
	val any
	err error
}

type intent struct {
	run   func(done func(any, error))
	reply chan response
}

type ambushResult struct {
	data combat.EncounterData
	err  error
}

type turnOutcome struct {
	req combat.TurnRequest
	res combat.TurnResult
	err error
}

// Session is a single player's game loop.
type Session struct {
	id      string
	intents chan intent
	done    chan struct{}

	// Owned by the loop goroutine.
	world    *game.World
	econ     *game.Economy
	sync     *market.Sync
	gen      *encounter.Generator
	machine  *travel.Machine
	narrator combat.Narrator
	ids      game.IDProvider
	rng      game.Roller
	ledger   ledger.Recorder
	logger   *slog.Logger

	char      *game.Character
	encounter *game.Encounter
	players   []market.Presence
	online    bool
	logs      []LogEntry

	ticker   *time.Ticker
	tickC    <-chan time.Time
	tickStep time.Duration

	runCtx      context.Context
	turnC       chan turnOutcome
	pendingTurn func(any, error)
	ambushC     chan ambushResult
	ambushing   bool
}

// New builds the session and its character. Run must be called to start it.
func New(cfg Config, name string, job game.Job) (*Session, error) {
	world := cfg.World.Clone()
	if cfg.IDs == nil {
		cfg.IDs = game.UUIDs{}
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Narrator == nil {
		src := rand.New(rand.NewSource(time.Now().UnixNano()))
		cfg.Narrator = combat.NewLocalNarrator(src, combat.NewResolver(rand.New(rand.NewSource(src.Int63()))))
	}

	char := cfg.Character
	if char == nil {
		var err error
		char, err = game.NewCharacter(world, cfg.IDs, cfg.RNG, name, job)
		if err != nil {
			return nil, err
		}
	}
	if char.State == nil {
		char.State = game.Idle{}
	}

	s := &Session{
		id:       char.ID,
		intents:  make(chan intent),
		done:     make(chan struct{}),
		world:    world,
		econ:     game.NewEconomy(world),
		sync:     market.NewSync(cfg.Store, cfg.Logger),
		gen:      encounter.New(world, cfg.IDs, cfg.RNG),
		machine:  travel.New(world, cfg.RNG),
		narrator: cfg.Narrator,
		ids:      cfg.IDs,
		rng:      cfg.RNG,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger.With("character", char.ID),
		char:     char,
		tickStep: time.Duration(world.Balance.TravelTickMs) * time.Millisecond,
		turnC:    make(chan turnOutcome, 1),
		ambushC:  make(chan ambushResult, 1),
	}
	return s, nil
}

// ID is the character ID.
func (s *Session) ID() string { return s.id }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run drives the session until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.runCtx = ctx

	events := s.sync.Store().Events(ctx)
	s.addLog("Welcome, "+s.char.Name+". The market in "+s.cityName(s.char.CityID)+" is open.", LogInfo)
	s.record(ledger.KindCreate, "join", nil)
	s.publishPresence()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil

		case in := <-s.intents:
			in.run(s.replier(in.reply))

		case <-s.tickC:
			s.onTick()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.onEvent(ev)

		case out := <-s.turnC:
			s.onTurn(out)

		case r := <-s.ambushC:
			s.onAmbush(r)
		}
	}
}

func (s *Session) replier(reply chan response) func(any, error) {
	return func(v any, err error) {
		if err != nil && game.IsRejection(err) {
			s.addLog(err.Error(), LogError)
		}
		reply <- response{val: v, err: err}
	}
}

func (s *Session) shutdown() {
	s.stopTicker()
	if s.pendingTurn != nil {
		s.pendingTurn(nil, ErrClosed)
		s.pendingTurn = nil
	}
	// Let in-flight presence writes land before removing the record.
	_ = s.sync.Flush()
	s.sync.RemovePresence(s.char.ID)
	if err := s.sync.Flush(); err != nil {
		s.logger.Warn("presence removal failed", "err", err)
	}
	s.logger.Info("session closed")
}

// exec submits fn to the loop and waits for its reply.
func exec[T any](ctx context.Context, s *Session, fn func(done func(any, error))) (T, error) {
	var zero T
	reply := make(chan response, 1)
	select {
	case s.intents <- intent{run: fn, reply: reply}:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrClosed
	}
	select {
	case r := <-reply:
		if r.err != nil {
			return zero, r.err
		}
		v, _ := r.val.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrClosed
	}
}

// now runs fn on the loop and replies immediately with its result.
func now[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	return exec[T](ctx, s, func(done func(any, error)) {
		v, err := fn()
		done(v, err)
	})
}

func (s *Session) onEvent(ev market.Event) {
	switch e := ev.(type) {
	case market.MarketSnapshot:
		s.sync.ApplySnapshot(s.world, e)
	case market.PresenceSnapshot:
		s.players = e.Players
	case market.Connectivity:
		if e.Online == s.online {
			return
		}
		s.online = e.Online
		if e.Online {
			s.addLog("Connected to the shared market.", LogNetwork)
			s.publishPresence()
		} else {
			s.addLog("Lost connection to the shared market: "+e.Reason, LogNetwork)
		}
	}
}

func (s *Session) publishPresence() {
	s.sync.PublishPresence(market.Presence{
		ID:             s.char.ID,
		Name:           s.char.Name,
		Job:            s.char.Job,
		CityID:         s.char.CityID,
		Gold:           s.char.Gold,
		InventoryValue: game.InventoryValue(s.char.Inventory),
		Traveling:      s.char.Traveling,
		LastSeen:       time.Now(),
	})
}

func (s *Session) record(kind ledger.Kind, action string, detail map[string]any) {
	err := s.ledger.Record(ledger.Entry{
		Kind:        kind,
		CharacterID: s.char.ID,
		Action:      action,
		CityID:      s.char.CityID,
		Gold:        s.char.Gold,
		Detail:      detail,
	})
	if err != nil {
		s.logger.Warn("ledger write failed", "action", action, "err", err)
	}
}

func (s *Session) cityName(id string) string {
	if c := s.world.City(id); c != nil {
		return c.Name
	}
	return id
}

// Flush waits for outstanding store writes. Tests and shutdown use it.
func (s *Session) Flush(ctx context.Context) error {
	_, err := now(ctx, s, func() (struct{}, error) { return struct{}{}, nil })
	if err != nil {
		return err
	}
	return s.sync.Flush()
}
