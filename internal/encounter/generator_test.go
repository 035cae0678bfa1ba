package encounter

import (
	"testing"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/game/gametest"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

func newTestGenerator(rng game.Roller) *Generator {
	return New(game.DefaultWorld(), &game.Sequence{Prefix: "loot"}, rng)
}

func TestGenerate_RivalWhenOthersOnline(t *testing.T) {
	others := []market.Presence{
		{ID: "me", Name: "Me"},
		{ID: "p2", Name: "Bram", Job: game.JobThief, InventoryValue: 4200},
	}
	g := newTestGenerator(&gametest.Script{Floats: []float64{0.1}, Ints: []int{0}})

	enc := g.Generate(others, "me")
	if enc.Kind != game.EncounterRival {
		t.Fatalf("expected rival, got %s", enc.Kind)
	}
	if enc.PlayerID != "p2" || enc.InventoryValue != 4200 {
		t.Fatalf("rival payload wrong: %+v", enc)
	}
	if enc.Stats != (game.Stats{Str: 40, Int: 40, Dex: 40, Wis: 40}) {
		t.Fatalf("rival stats wrong: %+v", enc.Stats)
	}
	if len(enc.Loot) != 1 || enc.Loot[0].Name != GoldPouch || enc.Loot[0].Price != 1000 {
		t.Fatalf("rival loot wrong: %+v", enc.Loot)
	}
	if enc.PlayerHP != 100 || enc.EnemyHP != 100 {
		t.Fatalf("HP pools should start full: %+v", enc)
	}
}

func TestGenerate_NeverRivalsSelf(t *testing.T) {
	// Even with a winning rival roll, only self is online.
	g := newTestGenerator(&gametest.Script{Floats: []float64{0.0, 0.1}})
	enc := g.Generate([]market.Presence{{ID: "me"}}, "me")
	if enc.Kind == game.EncounterRival {
		t.Fatalf("must not ambush yourself")
	}
}

func TestGenerate_MarauderOrMerchant(t *testing.T) {
	cases := []struct {
		name string
		flip float64
		want game.EncounterKind
	}{
		{"marauder", 0.2, game.EncounterMarauder},
		{"merchant", 0.8, game.EncounterMerchant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := &gametest.Script{Floats: []float64{tc.flip}, Ints: []int{39, 0, 5, 10}}
			enc := newTestGenerator(rng).Generate(nil, "me")
			if enc.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, enc.Kind)
			}
			if enc.Stats != (game.Stats{Str: 59, Int: 10, Dex: 15, Wis: 20}) {
				t.Fatalf("unexpected stats %+v", enc.Stats)
			}
			if len(enc.Loot) != 2 || enc.Loot[0].Name != LootSack || enc.Loot[1].Price != 800 {
				t.Fatalf("unexpected loot %+v", enc.Loot)
			}
			if enc.Loot[0].ID == enc.Loot[1].ID {
				t.Fatalf("loot IDs must be unique")
			}
		})
	}
}

func TestGenerate_RivalRollMissFallsThrough(t *testing.T) {
	rng := &gametest.Script{Floats: []float64{0.9, 0.1}}
	enc := newTestGenerator(rng).Generate([]market.Presence{{ID: "p2"}}, "me")
	if enc.Kind != game.EncounterMarauder {
		t.Fatalf("expected marauder after missed rival roll, got %s", enc.Kind)
	}
}

func TestFromNarrative_BuildsMonster(t *testing.T) {
	g := newTestGenerator(&gametest.Script{})
	enc := g.FromNarrative(combat.EncounterData{Name: "Shadow Stalker", Level: 2, Stats: game.Stats{Str: 16}})
	if enc.Kind != game.EncounterMonster || enc.Name != "Shadow Stalker" || enc.Stats.Str != 16 {
		t.Fatalf("unexpected monster %+v", enc)
	}
	if enc.Loot[0].Price != 500 {
		t.Fatalf("expected level-scaled loot 500, got %d", enc.Loot[0].Price)
	}
}
