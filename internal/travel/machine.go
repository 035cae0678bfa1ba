/*
Package travel
File: machine.go
Description:
    The trip between two cities as a small state machine:

        IDLE -> TRAVELING -> ENCOUNTERED   (road blocked, city unchanged)
                          -> ARRIVED       (city updated, arrival effects applied)

    Time only advances through Tick, so tests drive it with synthetic
    durations and the session drives it from a ticker. A trip cannot be
    cancelled once started.
*/

package travel

import (
	"fmt"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

// Phase is the machine state.
type Phase int

const (
	Idle Phase = iota
	Traveling
	Encountered
	Arrived
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Traveling:
		return "TRAVELING"
	case Encountered:
		return "ENCOUNTERED"
	case Arrived:
		return "ARRIVED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether the trip is over.
func (p Phase) Terminal() bool { return p == Encountered || p == Arrived }

// Arrival describes what happened at the gate.
type Arrival struct {
	CityID   string
	Effect   *game.ArrivalEffect // nil when nothing happened
	GoldPaid int                 // Actual amount taken (gold floors at zero)
}

// Machine drives one character's trip.
type Machine struct {
	world *game.World
	rng   game.Roller

	char     *game.Character
	phase    Phase
	dest     string
	elapsed  time.Duration
	duration time.Duration
	chance   float64
	rolled   bool
	arrival  *Arrival
}

// New builds a machine using the world's travel balance.
func New(w *game.World, rng game.Roller) *Machine {
	return &Machine{
		world:    w,
		rng:      rng,
		duration: time.Duration(w.Balance.TravelDurationMs) * time.Millisecond,
		chance:   w.Balance.EncounterChance,
	}
}

// Start validates the destination and begins the trip. On error nothing changes.
func (m *Machine) Start(c *game.Character, destID string) error {
	if m.phase == Traveling || c.Traveling {
		return game.ErrAlreadyTraveling
	}
	dest := m.world.City(destID)
	if dest == nil {
		return fmt.Errorf("%w: %q", game.ErrUnknownCity, destID)
	}
	if destID == c.CityID {
		return fmt.Errorf("%w: %s", game.ErrAlreadyThere, dest.Name)
	}
	if dest.Restricts(c.Job) {
		return fmt.Errorf("%w: %s does not admit a %s", game.ErrRestrictedCity, dest.Name, c.Job)
	}

	m.char = c
	m.phase = Traveling
	m.dest = destID
	m.elapsed = 0
	m.rolled = false
	m.arrival = nil

	c.Traveling = true
	c.TargetCityID = destID
	return nil
}

// Tick advances the trip by dt and returns the resulting phase. Ticks outside
// TRAVELING are no-ops.
func (m *Machine) Tick(dt time.Duration) Phase {
	if m.phase != Traveling {
		return m.phase
	}
	m.elapsed += dt

	// 1. The midpoint roll happens exactly once per trip
	if !m.rolled && m.elapsed >= m.duration/2 {
		m.rolled = true
		if m.rng.Float64() < m.chance {
			m.phase = Encountered
			m.char.Traveling = false
			m.char.TargetCityID = ""
			return m.phase
		}
	}

	// 2. Arrival
	if m.elapsed >= m.duration {
		m.arrive()
	}
	return m.phase
}

func (m *Machine) arrive() {
	c := m.char
	c.CityID = m.dest
	c.Traveling = false
	c.TargetCityID = ""
	m.phase = Arrived

	arr := &Arrival{CityID: m.dest}
	if eff := m.world.ArrivalEffect(c.Job, m.dest); eff != nil {
		paid := min(eff.GoldPenalty, c.Gold)
		c.Gold -= paid
		arr.Effect = eff
		arr.GoldPaid = paid
	}
	m.arrival = arr
}

// Phase returns the current state.
func (m *Machine) Phase() Phase { return m.phase }

// Destination is the city of the current or last trip.
func (m *Machine) Destination() string { return m.dest }

// Arrival is set once the machine reaches ARRIVED.
func (m *Machine) Arrival() *Arrival { return m.arrival }

// Progress is elapsed/duration in [0, 1].
func (m *Machine) Progress() float64 {
	if m.duration <= 0 {
		return 1
	}
	return min(1, float64(m.elapsed)/float64(m.duration))
}

// Reset returns a terminal machine to IDLE so the next trip can start.
func (m *Machine) Reset() {
	if m.phase == Traveling {
		return
	}
	m.phase = Idle
	m.char = nil
}
