/*
Package game
File: economy.go
Description:
    Handles the economic rules of the world.
    This includes:
    1. Scarcity pricing (price rises as a city's stock drains).
    2. Job-based price modifiers (city affinity, per-good overrides).
    3. Trade legality by item type and job.
    4. Carry weight and the weight limit.

    Nothing here mutates state. Callers validate with these functions and then
    commit the trade themselves.
*/

package game

import (
	"fmt"
	"math"
	"slices"
)

// Verdict is the outcome of a legality check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Err converts a refused verdict into a wrapped ErrTradeForbidden.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTradeForbidden, v.Reason)
}

// Economy applies the trade rules loaded from world.yaml.
type Economy struct {
	Rules                 TradeRules
	WeightLimitMultiplier float64
}

// NewEconomy builds the engine for a loaded world.
func NewEconomy(w *World) *Economy {
	return &Economy{
		Rules:                 w.Trade,
		WeightLimitMultiplier: w.Balance.WeightLimitMultiplier,
	}
}

// Price scales the base price by the scarcity ratio 1 + (max-stock)/max.
// At full stock it equals the base price exactly.
func Price(good TradeGood) int {
	if good.MaxStock <= 0 {
		return good.BasePrice
	}
	missing := good.MaxStock - good.Stock
	// base * (max + missing) / max, kept in integers so the floor is exact.
	return good.BasePrice * (good.MaxStock + missing) / good.MaxStock
}

// EffectivePrice applies the affinity modifier first and the job/good
// override second. Each step floors.
func (e *Economy) EffectivePrice(job Job, city *City, good TradeGood, buying bool) int {
	price := Price(good)

	if city != nil && slices.Contains(city.Affinity, job) {
		if buying {
			price = percentOf(price, e.Rules.AffinityBuyPercent)
		} else {
			price = percentOf(price, e.Rules.AffinitySellPercent)
		}
	}

	for _, o := range e.Rules.PriceOverrides {
		if o.Job != job || o.Good != good.Name {
			continue
		}
		if buying {
			price = percentOf(price, o.BuyPercent)
		} else {
			price = percentOf(price, o.SellPercent)
		}
	}
	return price
}

// Weight returns the carried weight of an item for a job. The heavy handler
// pays double for anything at or above the heavy-item threshold.
func (e *Economy) Weight(job Job, weight float64) float64 {
	if job == e.Rules.HeavyHandler && weight >= e.Rules.HeavyItemThreshold {
		return weight * 2
	}
	return weight
}

// CanTrade enforces the three hard legality rules.
func (e *Economy) CanTrade(job Job, itemType ItemType, buying bool) Verdict {
	if job == e.Rules.MagicForbidden && itemType == ItemMagic {
		return Verdict{Reason: "lacking the intellect to handle magic goods"}
	}
	if job == e.Rules.ContrabandRefuser && itemType == ItemContraband {
		return Verdict{Reason: "your beliefs forbid any dealing in contraband"}
	}
	if job != e.Rules.ContrabandBuyer && itemType == ItemContraband && buying {
		return Verdict{Reason: "only thieves know where to buy contraband"}
	}
	return Verdict{Allowed: true}
}

// TotalWeight sums the job-adjusted weight of a bag, rounded to two decimals.
func (e *Economy) TotalWeight(items []Item, job Job) float64 {
	sum := 0.0
	for _, it := range items {
		sum += e.Weight(job, it.Weight)
	}
	return math.Round(sum*100) / 100
}

// WeightLimit is Str * WeightLimitMultiplier.
func (e *Economy) WeightLimit(stats Stats) float64 {
	return float64(stats.Str) * e.WeightLimitMultiplier
}

// CheckCapacity returns ErrOverweight when adding `added` kg would exceed the limit.
func (e *Economy) CheckCapacity(c *Character, added float64) error {
	current := e.TotalWeight(c.Inventory, c.Job)
	limit := e.WeightLimit(c.CurrentStats)
	if current+added > limit {
		return fmt.Errorf("%w: %.2f + %.2f > %.2f", ErrOverweight, current, added, limit)
	}
	return nil
}

// InventoryValue sums acquisition prices; it is what presence records advertise.
func InventoryValue(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Price
	}
	return total
}

func percentOf(price, percent int) int {
	return price * percent / 100
}
