/*
Package session
File: combat.go
Description:
    Combat intents. A turn is resolved by the narrator off the loop; the
    caller's reply is held until the result has been applied, so the reply
    always reflects the post-turn state. Only one turn may be in flight.

    Outcomes:
    - Victory: up to MaxLootPickup spoils, each kept only if it fits.
    - Defeat:  the most valuable item is taken.
    - Fled:    the encounter ends with nothing gained or lost.
*/

package session

import (
	"context"
	"fmt"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/ledger"
)

// Outcome is how a combat turn left the encounter.
type Outcome string

const (
	OutcomeContinue Outcome = "continue"
	OutcomeVictory  Outcome = "victory"
	OutcomeDefeat   Outcome = "defeat"
	OutcomeFled     Outcome = "fled"
)

// TurnOutcome is the reply to a combat intent.
type TurnOutcome struct {
	Result   combat.TurnResult `json:"result"`
	Outcome  Outcome           `json:"outcome"`
	PlayerHP int               `json:"player_hp"`
	EnemyHP  int               `json:"enemy_hp"`
	Looted   []game.Item       `json:"looted,omitempty"`
	Lost     *game.Item        `json:"lost,omitempty"`
}

// Combat resolves one turn of the active encounter.
func (s *Session) Combat(ctx context.Context, action string) (TurnOutcome, error) {
	return exec[TurnOutcome](ctx, s, func(done func(any, error)) {
		if s.encounter == nil {
			done(nil, game.ErrNoEncounter)
			return
		}
		if s.pendingTurn != nil {
			done(nil, game.ErrTurnInFlight)
			return
		}
		act, err := combat.ParseAction(action)
		if err != nil {
			done(nil, err)
			return
		}

		req := combat.TurnRequest{
			AttackerName:  s.char.Name,
			Job:           s.char.Job,
			AttackerStats: s.char.CurrentStats,
			DefenderName:  s.encounter.Name,
			DefenderStats: s.encounter.Stats,
			Action:        act,
		}
		s.pendingTurn = done
		go s.resolveTurn(req)
	})
}

func (s *Session) resolveTurn(req combat.TurnRequest) {
	ctx, cancel := context.WithTimeout(s.runCtx, turnTimeout)
	defer cancel()
	res, err := s.narrator.ResolveTurn(ctx, req)
	// Buffered for the single in-flight turn.
	s.turnC <- turnOutcome{req: req, res: res, err: err}
}

func (s *Session) onTurn(out turnOutcome) {
	done := s.pendingTurn
	s.pendingTurn = nil
	if done == nil {
		return
	}
	enc := s.encounter
	if enc == nil {
		done(nil, game.ErrNoEncounter)
		return
	}
	if out.err != nil {
		s.addLog("The fight falters: "+out.err.Error(), LogError)
		done(nil, out.err)
		return
	}

	res := out.res
	enc.PlayerHP = max(0, enc.PlayerHP-res.PlayerDamageTaken)
	enc.EnemyHP = max(0, enc.EnemyHP-res.EnemyDamageTaken)
	if st, ok := s.char.State.(game.InCombat); ok {
		st.HP = enc.PlayerHP
		s.char.State = st
	}
	s.addLog(res.Narrative, LogCombat)

	reply := TurnOutcome{Result: res, Outcome: OutcomeContinue, PlayerHP: enc.PlayerHP, EnemyHP: enc.EnemyHP}
	switch {
	case res.Fled:
		reply.Outcome = OutcomeFled
		s.addLog("You slip away from "+enc.Name+".", LogInfo)
		s.record(ledger.KindCombat, "flee", map[string]any{"enemy": enc.Name})
		s.endEncounter()
	case enc.EnemyHP <= 0:
		reply.Outcome = OutcomeVictory
		reply.Looted = s.win(enc)
	case enc.PlayerHP <= 0:
		reply.Outcome = OutcomeDefeat
		reply.Lost = s.lose(enc)
	}
	done(reply, nil)
}

func (s *Session) win(enc *game.Encounter) []game.Item {
	c := s.char
	s.addLog("Victory over "+enc.Name+"!", LogCombat)

	var looted []game.Item
	for i, it := range enc.Loot {
		if i >= s.world.Balance.MaxLootPickup {
			break
		}
		if err := s.econ.CheckCapacity(c, s.econ.Weight(c.Job, it.Weight)); err != nil {
			s.addLog("Left "+it.Name+" behind: too heavy.", LogInfo)
			continue
		}
		it.ID = s.ids.NewID()
		it.OriginCity = LootOrigin
		c.Inventory = append(c.Inventory, it)
		looted = append(looted, it)
		s.addLog("Looted "+it.Name+".", LogTrade)
	}

	s.record(ledger.KindCombat, "victory", map[string]any{"enemy": enc.Name, "looted": len(looted)})
	s.endEncounter()
	return looted
}

func (s *Session) lose(enc *game.Encounter) *game.Item {
	c := s.char
	s.addLog("Defeated by "+enc.Name+".", LogDanger)

	var lost *game.Item
	if idx := c.MostValuableItem(); idx >= 0 {
		it, err := c.RemoveItem(c.Inventory[idx].ID)
		if err == nil {
			lost = &it
			s.addLog(fmt.Sprintf("%s took your %s (worth %d).", enc.Name, it.Name, it.Price), LogDanger)
		}
	} else {
		s.addLog(enc.Name+" found nothing worth taking.", LogInfo)
	}

	detail := map[string]any{"enemy": enc.Name}
	if lost != nil {
		detail["lost"] = lost.Name
	}
	s.record(ledger.KindCombat, "defeat", detail)
	s.endEncounter()
	return lost
}

// Bribe pays the fixed toll and ends the encounter.
func (s *Session) Bribe(ctx context.Context) (Receipt, error) {
	return now(ctx, s, func() (Receipt, error) {
		if s.encounter == nil {
			return Receipt{}, game.ErrNoEncounter
		}
		if s.pendingTurn != nil {
			return Receipt{}, game.ErrTurnInFlight
		}
		cost := s.world.Balance.BribeCost
		if s.char.Gold < cost {
			return Receipt{}, fmt.Errorf("%w: a bribe costs %d", game.ErrInsufficientGold, cost)
		}
		s.char.Gold -= cost
		s.addLog(fmt.Sprintf("Paid %d gold. %s lets you pass.", cost, s.encounter.Name), LogTrade)
		s.record(ledger.KindCombat, "bribe", map[string]any{"enemy": s.encounter.Name, "cost": cost})
		s.endEncounter()
		return Receipt{Total: -cost, Gold: s.char.Gold}, nil
	})
}

// endEncounter clears combat. The trip is abandoned; the character stays in
// the city it left from.
func (s *Session) endEncounter() {
	s.encounter = nil
	s.char.State = game.Idle{}
	s.publishPresence()
}
