/*
Package game
File: mechanics.go
Description:
    Contains the lookup and helper functions used by the rules engine:
    finding cities and archetypes, map distance, character creation and
    inventory manipulation.
*/

package game

import (
	"fmt"
	"math"
	"slices"
)

// Roller is the random source used across the rules. *rand.Rand satisfies it;
// tests inject scripted rollers.
type Roller interface {
	Float64() float64
	Intn(n int) int
}

// City is a helper to retrieve a City pointer by its ID.
// Returns nil if not found.
func (w *World) City(id string) *City {
	for i := range w.Cities {
		if w.Cities[i].ID == id {
			return &w.Cities[i]
		}
	}
	return nil
}

// Archetype is a helper to retrieve a job definition.
func (w *World) Archetype(job Job) *JobArchetype {
	for i := range w.Jobs {
		if w.Jobs[i].Job == job {
			return &w.Jobs[i]
		}
	}
	return nil
}

// Good finds a city's trade good by name.
func (c *City) Good(name string) *TradeGood {
	for i := range c.Goods {
		if c.Goods[i].Name == name {
			return &c.Goods[i]
		}
	}
	return nil
}

// Restricts reports whether the city denies entry to a job.
func (c *City) Restricts(job Job) bool {
	return slices.Contains(c.Restricted, job)
}

// AdjustStock applies a signed delta and clamps into [0, MaxStock].
func (g *TradeGood) AdjustStock(delta int) {
	g.Stock = clampStock(g.Stock+delta, g.MaxStock)
}

// SetStock overwrites the stock, clamped into [0, MaxStock].
func (g *TradeGood) SetStock(stock int) {
	g.Stock = clampStock(stock, g.MaxStock)
}

func clampStock(stock, maxStock int) int {
	if stock < 0 {
		return 0
	}
	if maxStock > 0 && stock > maxStock {
		return maxStock
	}
	return stock
}

// CalculateDistance computes the Euclidean distance between two cities.
// It rounds to the nearest integer for game simplicity.
func CalculateDistance(a, b Coordinates) int64 {
	dist := math.Sqrt(math.Pow(float64(b.X-a.X), 2) + math.Pow(float64(b.Y-a.Y), 2))
	return int64(math.Round(dist))
}

// RandomStats rolls creation stats between 40% of the job cap and the cap.
func RandomStats(rng Roller, caps Stats) Stats {
	roll := func(maxV int) int {
		minV := maxV * 4 / 10
		return rng.Intn(maxV-minV+1) + minV
	}
	return Stats{
		Str: roll(caps.Str),
		Int: roll(caps.Int),
		Dex: roll(caps.Dex),
		Wis: roll(caps.Wis),
	}
}

// NewCharacter runs the creation step: job-capped random stats, starting gold
// and the starting city.
func NewCharacter(w *World, ids IDProvider, rng Roller, name string, job Job) (*Character, error) {
	arch := w.Archetype(job)
	if arch == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	stats := RandomStats(rng, arch.MaxStats)
	return &Character{
		ID:           ids.NewID(),
		Name:         name,
		Job:          job,
		BaseStats:    stats,
		CurrentStats: stats,
		Gold:         w.Balance.StartingGold,
		Inventory:    []Item{},
		CityID:       w.Balance.StartCity,
		State:        Idle{},
	}, nil
}

// Clone returns a deep copy safe to hand outside the session loop.
func (c *Character) Clone() Character {
	cp := *c
	cp.Inventory = append([]Item(nil), c.Inventory...)
	return cp
}

// ItemIndex finds an inventory item by ID, -1 if absent.
func (c *Character) ItemIndex(id string) int {
	return slices.IndexFunc(c.Inventory, func(it Item) bool { return it.ID == id })
}

// RemoveItem moves an item out of the bag and returns it.
func (c *Character) RemoveItem(id string) (Item, error) {
	idx := c.ItemIndex(id)
	if idx < 0 {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	it := c.Inventory[idx]
	c.Inventory = slices.Delete(c.Inventory, idx, idx+1)
	return it, nil
}

// MostValuableItem returns the index of the highest-priced item; ties keep
// the earliest. -1 for an empty bag.
func (c *Character) MostValuableItem() int {
	best := -1
	for i, it := range c.Inventory {
		if best < 0 || it.Price > c.Inventory[best].Price {
			best = i
		}
	}
	return best
}

// NewItem instantiates one unit of a trade good.
func NewItem(ids IDProvider, good TradeGood, price int, origin string) Item {
	return Item{
		ID:         ids.NewID(),
		Name:       good.Name,
		Weight:     good.Weight,
		Type:       good.Type,
		BasePrice:  good.BasePrice,
		Price:      price,
		OriginCity: origin,
	}
}
