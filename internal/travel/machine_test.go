package travel

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/game/gametest"
)

const tick = 50 * time.Millisecond

func newTrader(job game.Job) *game.Character {
	return &game.Character{ID: "c1", Name: "Aria", Job: job, Gold: 5000, CityID: "goldhaven", State: game.Idle{}}
}

func runTrip(t *testing.T, m *Machine) Phase {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if p := m.Tick(tick); p.Terminal() {
			return p
		}
	}
	t.Fatalf("trip never finished")
	return Idle
}

// seedWhere finds a math/rand seed whose first Float64 satisfies pred.
func seedWhere(pred func(float64) bool) int64 {
	for seed := int64(1); ; seed++ {
		if pred(rand.New(rand.NewSource(seed)).Float64()) {
			return seed
		}
	}
}

func TestTrip_SeededEncounterKeepsCity(t *testing.T) {
	seed := seedWhere(func(f float64) bool { return f < 0.4 })
	m := New(game.DefaultWorld(), rand.New(rand.NewSource(seed)))
	c := newTrader(game.JobWarrior)

	if err := m.Start(c, "arcana"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := runTrip(t, m); got != Encountered {
		t.Fatalf("expected ENCOUNTERED, got %s", got)
	}
	if c.CityID != "goldhaven" || c.Traveling {
		t.Fatalf("city must not change on encounter: %+v", c)
	}
}

func TestTrip_SeededArrivalUpdatesCity(t *testing.T) {
	seed := seedWhere(func(f float64) bool { return f >= 0.4 })
	m := New(game.DefaultWorld(), rand.New(rand.NewSource(seed)))
	c := newTrader(game.JobWarrior)

	if err := m.Start(c, "arcana"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := runTrip(t, m); got != Arrived {
		t.Fatalf("expected ARRIVED, got %s", got)
	}
	if c.CityID != "arcana" || c.Traveling {
		t.Fatalf("city should be arcana: %+v", c)
	}
}

func TestTrip_SingleRollAtMidpoint(t *testing.T) {
	// Only one value is scripted; a second roll would read the 0.0 fallback and encounter.
	rng := &gametest.Script{Floats: []float64{0.99}, FloatDefault: 0.0}
	m := New(game.DefaultWorld(), rng)
	c := newTrader(game.JobWarrior)
	if err := m.Start(c, "arcana"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if p := m.Tick(1450 * time.Millisecond); p != Traveling {
		t.Fatalf("before midpoint: expected TRAVELING, got %s", p)
	}
	if len(rng.Floats) != 1 {
		t.Fatalf("no roll expected before the midpoint")
	}
	if got := runTrip(t, m); got != Arrived {
		t.Fatalf("expected ARRIVED, got %s", got)
	}
}

func TestTrip_ThiefFinedAtIronwall(t *testing.T) {
	rng := &gametest.Script{FloatDefault: 0.99}
	m := New(game.DefaultWorld(), rng)
	c := newTrader(game.JobThief)
	c.Gold = 300

	// Thieves are refused at Ironwall's gate, so lift the restriction for this world.
	m.world.City("ironwall").Restricted = nil

	if err := m.Start(c, "ironwall"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := runTrip(t, m); got != Arrived {
		t.Fatalf("expected ARRIVED, got %s", got)
	}
	if c.Gold != 0 {
		t.Fatalf("gold should floor at 0, got %d", c.Gold)
	}
	arr := m.Arrival()
	if arr == nil || arr.Effect == nil || arr.GoldPaid != 300 {
		t.Fatalf("unexpected arrival %+v", arr)
	}
}

func TestStart_Rejections(t *testing.T) {
	w := game.DefaultWorld()
	cases := []struct {
		name string
		job  game.Job
		dest string
		want error
	}{
		{"same city", game.JobWarrior, "goldhaven", game.ErrAlreadyThere},
		{"restricted", game.JobThief, "ironwall", game.ErrRestrictedCity},
		{"priest barred from shadowfen", game.JobPriest, "shadowfen", game.ErrRestrictedCity},
		{"unknown", game.JobWarrior, "atlantis", game.ErrUnknownCity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New(w, &gametest.Script{})
			c := newTrader(tc.job)
			err := m.Start(c, tc.dest)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if m.Phase() != Idle || c.Traveling || c.CityID != "goldhaven" {
				t.Fatalf("rejected start must not transition: phase=%s char=%+v", m.Phase(), c)
			}
		})
	}
}

func TestStart_AlreadyTraveling(t *testing.T) {
	m := New(game.DefaultWorld(), &gametest.Script{FloatDefault: 0.99})
	c := newTrader(game.JobWarrior)
	if err := m.Start(c, "arcana"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(c, "frosthold"); !errors.Is(err, game.ErrAlreadyTraveling) {
		t.Fatalf("expected ErrAlreadyTraveling, got %v", err)
	}
	if m.Destination() != "arcana" {
		t.Fatalf("destination changed to %s", m.Destination())
	}
}
