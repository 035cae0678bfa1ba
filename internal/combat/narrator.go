package combat

import (
	"context"
	"math"
	"sync"

	"github.com/everforgeworks/caravan-roads/internal/game"
)

//go:generate go tool mockgen -destination=./mocks/narrator_mock.go -package=mocks . Narrator

// Narrator produces encounter content and resolves turns. The local formula
// resolver and a remote text service are interchangeable behind it.
type Narrator interface {
	DescribeLocation(ctx context.Context, level int, theme string) (string, error)
	GenerateEncounter(ctx context.Context, playerLevel int) (EncounterData, error)
	ResolveTurn(ctx context.Context, req TurnRequest) (TurnResult, error)
}

// EncounterData is the payload returned by GenerateEncounter.
type EncounterData struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Level        int        `json:"level"`
	Stats        game.Stats `json:"stats"`
	VisualPrompt string     `json:"visual_prompt"`
}

type monsterTemplate struct {
	name  string
	desc  string
	stats game.Stats
}

var monsters = []monsterTemplate{
	{"Shadow Stalker", "Faintly glowing eyes watch you from the dark.", game.Stats{Str: 12, Int: 5, Dex: 15, Wis: 5}},
	{"Forest Berserker", "A savage fighter hefting an enormous axe.", game.Stats{Str: 18, Int: 2, Dex: 8, Wis: 3}},
	{"Fallen Mage", "Violet light seeps from the staff in its hands.", game.Stats{Str: 5, Int: 15, Dex: 10, Wis: 12}},
	{"Goblin Raider", "Sly eyes fixed firmly on your coin purse.", game.Stats{Str: 8, Int: 8, Dex: 14, Wis: 8}},
}

var roadDescriptions = []string{
	"Fog hangs thick over the road. Somewhere a crow calls.",
	"Old trees crowd the forest path and every footstep echoes.",
	"Wind tears across a barren plain. A beast howls in the distance.",
	"The marsh is damp and dark, and each step sinks into the mud.",
	"Only moonlight lights the quiet road. The air is tense.",
}

// LocalNarrator answers every call in-process.
type LocalNarrator struct {
	resolver *Resolver

	mu  sync.Mutex
	rng game.Roller
}

// NewLocalNarrator uses rng for template picks and its own Resolver for turns.
func NewLocalNarrator(rng game.Roller, resolver *Resolver) *LocalNarrator {
	return &LocalNarrator{resolver: resolver, rng: rng}
}

func (n *LocalNarrator) pick(k int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rng.Intn(k)
}

func (n *LocalNarrator) DescribeLocation(_ context.Context, _ int, _ string) (string, error) {
	return roadDescriptions[n.pick(len(roadDescriptions))], nil
}

// GenerateEncounter scales a monster template by 1 + 0.2*level.
func (n *LocalNarrator) GenerateEncounter(_ context.Context, playerLevel int) (EncounterData, error) {
	t := monsters[n.pick(len(monsters))]
	scale := 1 + float64(playerLevel)*0.2
	scaled := func(v int) int { return int(math.Floor(float64(v) * scale)) }
	return EncounterData{
		Name:        t.name,
		Description: t.desc,
		Level:       playerLevel,
		Stats: game.Stats{
			Str: scaled(t.stats.Str),
			Int: scaled(t.stats.Int),
			Dex: scaled(t.stats.Dex),
			Wis: scaled(t.stats.Wis),
		},
		VisualPrompt: "Fantasy monster",
	}, nil
}

func (n *LocalNarrator) ResolveTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	return n.resolver.Resolve(req)
}
