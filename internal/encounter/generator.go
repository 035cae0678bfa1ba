/*
Package encounter
File: generator.go
Description:
    Decides what blocks the road once the travel roll succeeds.

    1. Another connected player is ambushed as a rival (40% when anyone else is online).
    2. Otherwise a marauder or a merchant caravan, chosen by a coin flip.

    The generator never produces monsters on its own. FromNarrative turns a
    narrator payload into a monster encounter for worlds that enable them.
*/

package encounter

import (
	"fmt"
	"sync"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

const (
	GoldPouch = "Gold Pouch"
	LootSack  = "Loot Sack"

	rivalStat = 40
)

// Generator builds encounters. It is safe for concurrent use.
type Generator struct {
	ids         game.IDProvider
	rivalChance float64
	hp          int

	mu  sync.Mutex
	rng game.Roller
}

// New reads the rival chance and HP pool size from the world balance.
func New(w *game.World, ids game.IDProvider, rng game.Roller) *Generator {
	return &Generator{
		ids:         ids,
		rivalChance: w.Balance.RivalChance,
		hp:          w.Balance.CombatHP,
		rng:         rng,
	}
}

// Generate picks an encounter. others is the latest presence list; the entry
// whose ID equals selfID is ignored.
func (g *Generator) Generate(others []market.Presence, selfID string) *game.Encounter {
	g.mu.Lock()
	defer g.mu.Unlock()

	rivals := make([]market.Presence, 0, len(others))
	for _, p := range others {
		if p.ID != selfID {
			rivals = append(rivals, p)
		}
	}

	if len(rivals) > 0 && g.rng.Float64() < g.rivalChance {
		target := rivals[g.rng.Intn(len(rivals))]
		return g.withPools(&game.Encounter{
			Kind:        game.EncounterRival,
			Name:        target.Name,
			Description: fmt.Sprintf("Rival trader %s (%s) blocks the road, eyeing your cargo.", target.Name, target.Job),
			Stats:       game.Stats{Str: rivalStat, Int: rivalStat, Dex: rivalStat, Wis: rivalStat},
			Loot: []game.Item{
				g.item(GoldPouch, 1, 1000),
			},
			PlayerID:       target.ID,
			InventoryValue: target.InventoryValue,
		})
	}

	enc := &game.Encounter{
		Stats: game.Stats{
			Str: g.rng.Intn(40) + 20,
			Int: g.rng.Intn(40) + 10,
			Dex: g.rng.Intn(40) + 10,
			Wis: g.rng.Intn(40) + 10,
		},
		Loot: []game.Item{
			g.item(LootSack, 5, 300),
			g.item(GoldPouch, 1, 800),
		},
	}
	// The kind is cosmetic: both fight the same way.
	if g.rng.Float64() < 0.5 {
		enc.Kind = game.EncounterMarauder
		enc.Name = "Road Marauder"
		enc.Description = "A band of marauders steps out of the brush, blades drawn."
	} else {
		enc.Kind = game.EncounterMerchant
		enc.Name = "Armed Merchant Caravan"
		enc.Description = "A heavily guarded caravan refuses to yield the road."
	}
	return g.withPools(enc)
}

// FromNarrative builds a monster encounter from a narrator payload.
func (g *Generator) FromNarrative(data combat.EncounterData) *game.Encounter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.withPools(&game.Encounter{
		Kind:        game.EncounterMonster,
		Name:        data.Name,
		Description: data.Description,
		Stats:       data.Stats,
		Loot: []game.Item{
			g.item(LootSack, 5, 300+100*data.Level),
		},
	})
}

func (g *Generator) withPools(e *game.Encounter) *game.Encounter {
	e.PlayerHP, e.EnemyHP, e.MaxHP = g.hp, g.hp, g.hp
	return e
}

func (g *Generator) item(name string, weight float64, price int) game.Item {
	return game.Item{
		ID:        g.ids.NewID(),
		Name:      name,
		Weight:    weight,
		Type:      game.ItemNormal,
		BasePrice: price,
		Price:     price,
	}
}
