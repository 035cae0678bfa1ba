/*
Package session
File: trade.go
Description:
    Market and inventory intents: buy, sell, discard and use.

    Every intent validates first and mutates second, so a rejection leaves the
    character and the local market untouched. Stock changes are applied
    locally at once and propagated to the shared store in the background.
*/

package session

import (
	"context"
	"fmt"

	"github.com/everforgeworks/caravan-roads/internal/encounter"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/ledger"
)

// LootOrigin marks items that came from combat or a loot sack.
const LootOrigin = "loot"

// Receipt summarizes a completed trade or item use.
type Receipt struct {
	Items     []game.Item `json:"items,omitempty"`
	UnitPrice int         `json:"unit_price,omitempty"`
	Total     int         `json:"total"` // Gold moved; negative when spent
	Gold      int         `json:"gold"`  // Balance afterwards
}

// Buy purchases qty units of a good in the current city at one fixed unit price.
func (s *Session) Buy(ctx context.Context, goodName string, qty int) (Receipt, error) {
	return now(ctx, s, func() (Receipt, error) { return s.buy(goodName, qty) })
}

func (s *Session) buy(goodName string, qty int) (Receipt, error) {
	c := s.char
	if qty <= 0 {
		return Receipt{}, game.ErrInvalidQuantity
	}
	city, err := s.tradingCity()
	if err != nil {
		return Receipt{}, err
	}
	good := city.Good(goodName)
	if good == nil {
		return Receipt{}, fmt.Errorf("%w: %s", game.ErrUnknownGood, goodName)
	}

	// 1. Legality
	if err := s.econ.CanTrade(c.Job, good.Type, true).Err(); err != nil {
		return Receipt{}, err
	}
	// 2. Gold
	unit := s.econ.EffectivePrice(c.Job, city, *good, true)
	total := unit * qty
	if c.Gold < total {
		return Receipt{}, fmt.Errorf("%w: need %d, have %d", game.ErrInsufficientGold, total, c.Gold)
	}
	// 3. Stock
	if good.Stock < qty {
		return Receipt{}, fmt.Errorf("%w: %d %s left", game.ErrInsufficientStock, good.Stock, good.Name)
	}
	// 4. Weight
	if err := s.econ.CheckCapacity(c, s.econ.Weight(c.Job, good.Weight)*float64(qty)); err != nil {
		return Receipt{}, err
	}

	bought := make([]game.Item, 0, qty)
	for range qty {
		bought = append(bought, game.NewItem(s.ids, *good, unit, city.ID))
	}
	c.Gold -= total
	c.Inventory = append(c.Inventory, bought...)
	s.sync.ApplyStock(city.ID, good, -qty)

	s.addLog(fmt.Sprintf("Bought %d x %s for %d gold.", qty, good.Name, total), LogTrade)
	s.record(ledger.KindTrade, "buy", map[string]any{"good": good.Name, "qty": qty, "unit_price": unit})
	s.publishPresence()
	return Receipt{Items: bought, UnitPrice: unit, Total: -total, Gold: c.Gold}, nil
}

// Sell sells one inventory item to the current city's market.
func (s *Session) Sell(ctx context.Context, itemID string) (Receipt, error) {
	return now(ctx, s, func() (Receipt, error) { return s.sell(itemID) })
}

func (s *Session) sell(itemID string) (Receipt, error) {
	c := s.char
	city, err := s.tradingCity()
	if err != nil {
		return Receipt{}, err
	}
	idx := c.ItemIndex(itemID)
	if idx < 0 {
		return Receipt{}, fmt.Errorf("%w: %s", game.ErrUnknownItem, itemID)
	}
	item := c.Inventory[idx]
	good := city.Good(item.Name)
	if good == nil {
		return Receipt{}, fmt.Errorf("%w: %s does not buy %s", game.ErrUnknownGood, city.Name, item.Name)
	}
	if err := s.econ.CanTrade(c.Job, item.Type, false).Err(); err != nil {
		return Receipt{}, err
	}

	price := s.econ.EffectivePrice(c.Job, city, *good, false)
	if _, err := c.RemoveItem(itemID); err != nil {
		return Receipt{}, err
	}
	c.Gold += price
	s.sync.ApplyStock(city.ID, good, 1)

	s.addLog(fmt.Sprintf("Sold %s for %d gold.", item.Name, price), LogTrade)
	s.record(ledger.KindTrade, "sell", map[string]any{"good": item.Name, "price": price, "origin": item.OriginCity})
	s.publishPresence()
	return Receipt{Items: []game.Item{item}, UnitPrice: price, Total: price, Gold: c.Gold}, nil
}

// Discard drops an item on the road. Nothing is paid and no stock moves.
func (s *Session) Discard(ctx context.Context, itemID string) (Receipt, error) {
	return now(ctx, s, func() (Receipt, error) {
		item, err := s.char.RemoveItem(itemID)
		if err != nil {
			return Receipt{}, err
		}
		s.addLog("Discarded "+item.Name+".", LogInfo)
		s.record(ledger.KindItem, "discard", map[string]any{"item": item.Name})
		s.publishPresence()
		return Receipt{Items: []game.Item{item}, Gold: s.char.Gold}, nil
	})
}

// Use opens a loot sack or empties a gold pouch. Other items are not usable.
func (s *Session) Use(ctx context.Context, itemID string) (Receipt, error) {
	return now(ctx, s, func() (Receipt, error) {
		c := s.char
		idx := c.ItemIndex(itemID)
		if idx < 0 {
			return Receipt{}, fmt.Errorf("%w: %s", game.ErrUnknownItem, itemID)
		}
		switch c.Inventory[idx].Name {
		case encounter.GoldPouch:
			return s.openPouch(itemID)
		case encounter.LootSack:
			return s.openSack(itemID)
		}
		return Receipt{}, fmt.Errorf("%w: %s", game.ErrNotUsable, c.Inventory[idx].Name)
	})
}

func (s *Session) openPouch(itemID string) (Receipt, error) {
	pouch, err := s.char.RemoveItem(itemID)
	if err != nil {
		return Receipt{}, err
	}
	s.char.Gold += pouch.Price
	s.addLog(fmt.Sprintf("The pouch held %d gold.", pouch.Price), LogTrade)
	s.record(ledger.KindItem, "use", map[string]any{"item": pouch.Name, "gold": pouch.Price})
	s.publishPresence()
	return Receipt{Total: pouch.Price, Gold: s.char.Gold}, nil
}

// openSack swaps the sack for random normal goods. The swap is rejected as a
// whole if the contents would not fit.
func (s *Session) openSack(itemID string) (Receipt, error) {
	c := s.char
	sack := c.Inventory[c.ItemIndex(itemID)]

	pool := make([]game.TradeGood, 0, len(s.world.DefaultGoods))
	for _, g := range s.world.DefaultGoods {
		if g.Type == game.ItemNormal {
			pool = append(pool, g)
		}
	}
	contents := make([]game.Item, 0, s.world.Balance.LootSackRolls)
	added := -s.econ.Weight(c.Job, sack.Weight)
	for range s.world.Balance.LootSackRolls {
		if len(pool) == 0 {
			break
		}
		g := pool[s.rng.Intn(len(pool))]
		contents = append(contents, game.NewItem(s.ids, g, g.BasePrice, LootOrigin))
		added += s.econ.Weight(c.Job, g.Weight)
	}
	if err := s.econ.CheckCapacity(c, added); err != nil {
		return Receipt{}, err
	}

	if _, err := c.RemoveItem(itemID); err != nil {
		return Receipt{}, err
	}
	c.Inventory = append(c.Inventory, contents...)
	for _, it := range contents {
		s.addLog("Found "+it.Name+" in the sack.", LogTrade)
	}
	s.record(ledger.KindItem, "use", map[string]any{"item": sack.Name, "found": len(contents)})
	s.publishPresence()
	return Receipt{Items: contents, Gold: c.Gold}, nil
}

// tradingCity is the current city, provided nothing blocks the market.
func (s *Session) tradingCity() (*game.City, error) {
	if s.encounter != nil || s.ambushing {
		return nil, game.ErrInCombat
	}
	if s.char.Traveling {
		return nil, game.ErrAlreadyTraveling
	}
	city := s.world.City(s.char.CityID)
	if city == nil {
		return nil, fmt.Errorf("%w: %s", game.ErrUnknownCity, s.char.CityID)
	}
	return city, nil
}
