package session

import (
	"context"
	"fmt"
	"time"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/ledger"
	"github.com/everforgeworks/caravan-roads/internal/travel"
)

// Travel starts a trip. It returns once the caravan has set out; arrival or
// an encounter shows up later in the view and the log.
func (s *Session) Travel(ctx context.Context, destID string) (TravelQuote, error) {
	return now(ctx, s, func() (TravelQuote, error) {
		if s.encounter != nil || s.ambushing {
			return TravelQuote{}, game.ErrInCombat
		}
		from := s.world.City(s.char.CityID)
		if err := s.machine.Start(s.char, destID); err != nil {
			return TravelQuote{}, err
		}
		dest := s.world.City(destID)
		q := TravelQuote{Destination: destID, DurationMs: s.world.Balance.TravelDurationMs}
		if from != nil {
			q.Distance = game.CalculateDistance(from.Coordinates, dest.Coordinates)
		}

		s.startTicker()
		s.addLog(fmt.Sprintf("Setting out for %s (%d leagues).", dest.Name, q.Distance), LogInfo)
		s.record(ledger.KindTravel, "depart", map[string]any{"to": destID})
		s.publishPresence()
		return q, nil
	})
}

func (s *Session) startTicker() {
	s.stopTicker()
	step := s.tickStep
	if step <= 0 {
		step = 50 * time.Millisecond
	}
	s.ticker = time.NewTicker(step)
	s.tickC = s.ticker.C
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.ticker = nil
	s.tickC = nil
}

// onTick advances the trip by one fixed step.
func (s *Session) onTick() {
	switch s.machine.Tick(s.tickStep) {
	case travel.Encountered:
		s.stopTicker()
		s.machine.Reset()
		s.startEncounter()
	case travel.Arrived:
		s.stopTicker()
		arr := s.machine.Arrival()
		s.machine.Reset()
		s.addLog("Arrived at "+s.cityName(arr.CityID)+".", LogInfo)
		if arr.Effect != nil {
			s.addLog(fmt.Sprintf("%s (-%d gold)", arr.Effect.Message, arr.GoldPaid), LogDanger)
		}
		s.record(ledger.KindTravel, "arrive", map[string]any{"penalty": arr.GoldPaid})
		s.publishPresence()
	}
}

// startEncounter blocks the road. Narrated monsters are tried first when the
// world enables them; the narrator call runs off the loop and onAmbush
// finishes the setup.
func (s *Session) startEncounter() {
	if chance := s.world.Balance.MonsterChance; chance > 0 && s.narrator != nil && s.rng.Float64() < chance {
		s.ambushing = true
		go s.narrateEncounter()
		return
	}
	s.beginEncounter(s.gen.Generate(s.players, s.char.ID))
}

func (s *Session) narrateEncounter() {
	ctx, cancel := context.WithTimeout(s.runCtx, encounterTimeout)
	defer cancel()
	data, err := s.narrator.GenerateEncounter(ctx, playerLevel)
	// Buffered for the single pending ambush.
	s.ambushC <- ambushResult{data: data, err: err}
}

// onAmbush falls back to the generator when the narrator failed.
func (s *Session) onAmbush(r ambushResult) {
	if !s.ambushing {
		return
	}
	s.ambushing = false
	var enc *game.Encounter
	if r.err != nil {
		s.logger.Warn("narrated encounter failed", "err", r.err)
		enc = s.gen.Generate(s.players, s.char.ID)
	} else {
		enc = s.gen.FromNarrative(r.data)
	}
	s.beginEncounter(enc)
}

func (s *Session) beginEncounter(enc *game.Encounter) {
	s.encounter = enc
	s.char.State = game.InCombat{HP: enc.PlayerHP, MaxHP: enc.MaxHP, MP: enc.MaxHP, MaxMP: enc.MaxHP}
	s.addLog("Ambush! "+enc.Description, LogDanger)
	s.record(ledger.KindTravel, "encounter", map[string]any{"kind": string(enc.Kind), "enemy": enc.Name})
	s.publishPresence()
}
