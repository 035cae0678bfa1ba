package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

// ErrNoCharacter is returned for an unknown or departed character ID.
var ErrNoCharacter = errors.New("no such character")

// Manager owns every live session in the process.
type Manager struct {
	base   Config
	ctx    context.Context
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	s      *Session
	cancel context.CancelFunc
}

// NewManager starts sessions from base. Each session gets its own RNG from
// NewRNG. Sessions stop when ctx is cancelled.
func NewManager(ctx context.Context, base Config) *Manager {
	if base.Logger == nil {
		base.Logger = slog.Default()
	}
	return &Manager{
		base:     base,
		ctx:      ctx,
		logger:   base.Logger,
		sessions: make(map[string]*entry),
	}
}

// NewRNG seeds per-session randomness.
var NewRNG = func() game.Roller {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// World is the world new sessions start from.
func (m *Manager) World() *game.World {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base.World
}

// SetWorld swaps the world for sessions created from now on. Running
// sessions keep their own copy.
func (m *Manager) SetWorld(w *game.World) {
	m.mu.Lock()
	m.base.World = w
	m.mu.Unlock()
}

// Create rolls a new character and starts its session.
func (m *Manager) Create(name string, job game.Job) (*Session, error) {
	m.mu.RLock()
	cfg := m.base
	m.mu.RUnlock()
	cfg.RNG = NewRNG()
	s, err := New(cfg, name, job)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.mu.Lock()
	m.sessions[s.ID()] = &entry{s: s, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(ctx); err != nil {
			m.logger.Error("session stopped", "character", s.ID(), "err", err)
		}
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
	}()
	m.logger.Info("character created", "character", s.ID(), "name", name, "job", job)
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNoCharacter
	}
	return e.s, nil
}

// Leave stops one session and waits for it to clean up.
func (m *Manager) Leave(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNoCharacter
	}
	e.cancel()
	select {
	case <-e.s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len counts live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Wait blocks until every session has stopped. Cancel the manager's context first.
func (m *Manager) Wait() { m.wg.Wait() }
