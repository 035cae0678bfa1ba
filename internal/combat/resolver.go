/*
Package combat
File: resolver.go
Description:
    The turn resolver for road encounters. Given both stat blocks and the
    player's chosen action it computes the damage exchanged in one round and
    a narrative line describing it.

    The resolver only answers "what happened this round". HP pools, loot and
    defeat penalties are applied by the session after each turn.
*/

package combat

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

// Action is one of the four combat choices.
type Action string

const (
	ActionAttack Action = "ATTACK"
	ActionMagic  Action = "MAGIC"
	ActionDefend Action = "DEFEND"
	ActionFlee   Action = "FLEE"
)

// ErrUnknownAction is returned for anything outside the four actions.
var ErrUnknownAction = errors.New("unknown combat action")

// ParseAction validates a client-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAttack, ActionMagic, ActionDefend, ActionFlee:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// TurnRequest carries everything needed to resolve one round.
type TurnRequest struct {
	AttackerName  string     `json:"attacker_name"`
	Job           game.Job   `json:"job"`
	AttackerStats game.Stats `json:"attacker_stats"`
	DefenderName  string     `json:"defender_name"`
	DefenderStats game.Stats `json:"defender_stats"`
	Action        Action     `json:"action"`
}

// TurnResult is the shape every narrator must return. Both damage fields are
// always present, even when zero.
type TurnResult struct {
	Narrative         string `json:"narrative"`
	PlayerDamageTaken int    `json:"player_damage_taken"`
	EnemyDamageTaken  int    `json:"enemy_damage_taken"`
	IsCritical        bool   `json:"is_critical"`
	Fled              bool   `json:"fled"`
}

const (
	critChance     = 0.15
	critMultiplier = 1.5
	defendFactor   = 0.4
)

// Resolver applies the combat formulas. It is safe for concurrent use.
type Resolver struct {
	mu  sync.Mutex
	rng game.Roller
}

// NewResolver wraps a random source. *rand.Rand is not goroutine-safe, so the
// resolver serializes access to it.
func NewResolver(rng game.Roller) *Resolver {
	return &Resolver{rng: rng}
}

// rolls are drawn before any branching so two actions resolved from the same
// seed see the same counter-attack roll.
type rolls struct {
	crit    bool
	hit     int // U(1,20)
	spell   int // U(0,7)
	counter int // U(0,5)
	flee    float64
}

func (r *Resolver) draw() rolls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rolls{
		crit:    r.rng.Float64() < critChance,
		hit:     r.rng.Intn(20) + 1,
		spell:   r.rng.Intn(8),
		counter: r.rng.Intn(6),
		flee:    r.rng.Float64(),
	}
}

// Resolve computes one round.
func (r *Resolver) Resolve(req TurnRequest) (TurnResult, error) {
	if _, err := ParseAction(string(req.Action)); err != nil {
		return TurnResult{}, err
	}
	roll := r.draw()
	a, d := req.AttackerStats, req.DefenderStats

	var res TurnResult
	switch req.Action {
	case ActionAttack:
		raw := math.Max(1, float64(a.Str)*0.6+float64(a.Dex)*0.4+float64(roll.hit)) -
			float64(d.Dex)*0.2 - float64(d.Str)*0.1
		dmg := nonNegative(raw)
		if roll.crit {
			dmg = int(math.Floor(float64(dmg) * critMultiplier))
			res.IsCritical = true
		}
		res.EnemyDamageTaken = dmg
		res.PlayerDamageTaken = counterDamage(a, d, roll.counter)
		res.Narrative = hitLine(req.AttackerName, req.DefenderName, dmg, roll.crit) +
			" Then " + hitLine(req.DefenderName, req.AttackerName, res.PlayerDamageTaken, false)

	case ActionMagic:
		raw := math.Max(1, float64(a.Int)+float64(a.Wis)*0.3-float64(d.Wis)*0.3+float64(roll.spell))
		dmg := nonNegative(raw)
		if roll.crit {
			dmg = int(math.Floor(float64(dmg) * critMultiplier))
			res.IsCritical = true
		}
		res.EnemyDamageTaken = dmg
		res.PlayerDamageTaken = counterDamage(a, d, roll.counter)
		if roll.crit {
			res.Narrative = fmt.Sprintf("%s's spell erupts with overwhelming force! %s takes %d damage!", req.AttackerName, req.DefenderName, dmg)
		} else {
			res.Narrative = fmt.Sprintf("%s chants a spell and deals %d damage to %s.", req.AttackerName, dmg, req.DefenderName)
		}
		res.Narrative += fmt.Sprintf(" %s strikes back for %d damage.", req.DefenderName, res.PlayerDamageTaken)

	case ActionDefend:
		taken := int(math.Floor(float64(counterDamage(a, d, roll.counter)) * defendFactor))
		res.PlayerDamageTaken = taken
		res.Narrative = fmt.Sprintf("%s takes a defensive stance and holds off %s, taking only %d damage.", req.AttackerName, req.DefenderName, taken)

	case ActionFlee:
		// Unclamped: extreme stat gaps make escape certain or impossible.
		chance := 0.5 + 0.01*float64(a.Dex-d.Dex)
		if roll.flee < chance {
			res.Fled = true
			res.Narrative = fmt.Sprintf("%s turns and slips away from %s. The fight is over.", req.AttackerName, req.DefenderName)
		} else {
			res.PlayerDamageTaken = nonNegative(float64(d.Str) * 0.5)
			res.Narrative = fmt.Sprintf("%s tries to run but %s catches up, dealing %d damage!", req.AttackerName, req.DefenderName, res.PlayerDamageTaken)
		}
	}
	return res, nil
}

// counterDamage is the defender's unconditional reply on ATTACK and MAGIC.
func counterDamage(a, d game.Stats, roll int) int {
	attackerDef := float64(a.Dex)*0.3 + float64(a.Str)*0.2
	return nonNegative(float64(d.Str) - attackerDef + float64(roll))
}

func nonNegative(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Floor(v))
}

func hitLine(attacker, defender string, damage int, crit bool) string {
	switch {
	case damage == 0:
		return fmt.Sprintf("%s easily dodges %s's blow.", defender, attacker)
	case crit:
		return fmt.Sprintf("A critical strike from %s! %s takes a heavy %d damage!", attacker, defender, damage)
	default:
		return fmt.Sprintf("%s hits %s for %d damage.", attacker, defender, damage)
	}
}
