/*
Package game
File: state.go
Description:
    Loads the world definition from YAML and prepares it for a session.
    There are no package-level globals: every session receives its own
    copy of the world via Clone so local stock views never alias.
*/

package game

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed world.yaml
var defaultWorldYAML []byte

// LoadWorld reads a world file from disk.
func LoadWorld(path string) (*World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	w, err := ParseWorld(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// DefaultWorld returns the embedded world definition.
func DefaultWorld() *World {
	w, err := ParseWorld(defaultWorldYAML)
	if err != nil {
		// The embedded file is part of the build; failing here is a build defect.
		panic(fmt.Sprintf("embedded world.yaml: %v", err))
	}
	return w
}

// ParseWorld unmarshals and validates a world definition.
func ParseWorld(raw []byte) (*World, error) {
	var w World
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("world.yaml: %w", err)
	}
	if err := w.normalize(); err != nil {
		return nil, err
	}
	return &w, nil
}

// normalize fills defaults and checks references.
func (w *World) normalize() error {
	// 1. Balance fallbacks if YAML is missing these fields
	if w.Balance.WeightLimitMultiplier == 0 {
		w.Balance.WeightLimitMultiplier = 5
	}
	if w.Balance.CombatHP == 0 {
		w.Balance.CombatHP = 100
	}
	if w.Balance.MaxLootPickup == 0 {
		w.Balance.MaxLootPickup = 2
	}
	if w.Balance.TravelDurationMs == 0 {
		w.Balance.TravelDurationMs = 3000
	}
	if w.Balance.TravelTickMs == 0 {
		w.Balance.TravelTickMs = 50
	}

	if len(w.Cities) == 0 {
		return fmt.Errorf("world.yaml: no cities defined")
	}

	// 2. Cities without their own goods list get a copy of the defaults
	for i := range w.Cities {
		c := &w.Cities[i]
		if len(c.Goods) == 0 {
			c.Goods = append([]TradeGood(nil), w.DefaultGoods...)
		}
		for j := range c.Goods {
			g := &c.Goods[j]
			if g.MaxStock <= 0 {
				return fmt.Errorf("world.yaml: city %s good %s has no max_stock", c.ID, g.Name)
			}
			g.SetStock(g.Stock)
		}
	}

	// 3. References must resolve
	if w.City(w.Balance.StartCity) == nil {
		return fmt.Errorf("world.yaml: start_city %q is not a city", w.Balance.StartCity)
	}
	for _, eff := range w.ArrivalEffects {
		if w.City(eff.CityID) == nil {
			return fmt.Errorf("world.yaml: arrival effect references unknown city %q", eff.CityID)
		}
	}
	return nil
}

// Clone deep-copies the world so a session can mutate its local stock view.
func (w *World) Clone() *World {
	cp := *w
	cp.Jobs = append([]JobArchetype(nil), w.Jobs...)
	cp.DefaultGoods = append([]TradeGood(nil), w.DefaultGoods...)
	cp.ArrivalEffects = append([]ArrivalEffect(nil), w.ArrivalEffects...)
	cp.Trade.PriceOverrides = append([]PriceOverride(nil), w.Trade.PriceOverrides...)
	cp.Cities = make([]City, len(w.Cities))
	for i, c := range w.Cities {
		c.Affinity = append([]Job(nil), c.Affinity...)
		c.Restricted = append([]Job(nil), c.Restricted...)
		c.Goods = append([]TradeGood(nil), c.Goods...)
		cp.Cities[i] = c
	}
	return &cp
}

// ArrivalEffect looks up the (job, city) effect, if any.
func (w *World) ArrivalEffect(job Job, cityID string) *ArrivalEffect {
	for i := range w.ArrivalEffects {
		e := &w.ArrivalEffects[i]
		if e.Job == job && e.CityID == cityID {
			return e
		}
	}
	return nil
}
