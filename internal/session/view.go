package session

import (
	"context"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
	"github.com/everforgeworks/caravan-roads/internal/travel"
)

// LogKind colors an entry in the client's event feed.
type LogKind string

const (
	LogInfo    LogKind = "info"
	LogCombat  LogKind = "combat"
	LogTrade   LogKind = "trade"
	LogError   LogKind = "error"
	LogNetwork LogKind = "network"
	LogDanger  LogKind = "danger"
)

// LogEntry is one line of the session feed. Newest entries come first.
type LogEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Kind    LogKind   `json:"kind"`
	Message string    `json:"message"`
}

func (s *Session) addLog(msg string, kind LogKind) {
	entry := LogEntry{ID: ulid.Make().String(), Time: time.Now(), Kind: kind, Message: msg}
	s.logs = append([]LogEntry{entry}, s.logs...)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[:maxLogEntries]
	}
}

// TravelView describes a trip in progress.
type TravelView struct {
	Destination string  `json:"destination"`
	Progress    float64 `json:"progress"` // 0..1
}

// View is a consistent copy of everything a client renders.
type View struct {
	Character   game.Character    `json:"character"`
	Combat      *game.InCombat    `json:"combat,omitempty"` // Set while fighting
	City        game.City         `json:"city"`
	Encounter   *game.Encounter   `json:"encounter,omitempty"`
	Travel      *TravelView       `json:"travel,omitempty"`
	Weight      float64           `json:"weight"`
	WeightLimit float64           `json:"weight_limit"`
	Online      bool              `json:"online"`
	Players     []market.Presence `json:"players"`
	Logs        []LogEntry        `json:"logs"`
}

// Quote is a priced market line for this character.
type Quote struct {
	Good      game.TradeGood `json:"good"`
	BuyPrice  int            `json:"buy_price"`
	SellPrice int            `json:"sell_price"`
	Weight    float64        `json:"weight"` // Effective weight for this job
	CanBuy    game.Verdict   `json:"can_buy"`
	CanSell   game.Verdict   `json:"can_sell"`
}

// CityView is a city as this character sees it from the current location.
type CityView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Coordinates game.Coordinates `json:"coordinates"`
	Distance    int64            `json:"distance"`
	Restricted  bool             `json:"restricted"`
	Current     bool             `json:"current"`
	Market      []Quote          `json:"market"`
}

// TravelQuote answers "can I go there, and how far is it".
type TravelQuote struct {
	Destination string `json:"destination"`
	Distance    int64  `json:"distance"`
	DurationMs  int    `json:"duration_ms"`
	Restricted  bool   `json:"restricted"`
}

// View returns a snapshot of the session.
func (s *Session) View(ctx context.Context) (View, error) {
	return now(ctx, s, func() (View, error) { return s.view(), nil })
}

func (s *Session) view() View {
	v := View{
		Character:   s.char.Clone(),
		Encounter:   s.encounterCopy(),
		Weight:      s.econ.TotalWeight(s.char.Inventory, s.char.Job),
		WeightLimit: s.econ.WeightLimit(s.char.CurrentStats),
		Online:      s.online,
		Players:     slices.Clone(s.players),
		Logs:        slices.Clone(s.logs),
	}
	if c := s.world.City(s.char.CityID); c != nil {
		v.City = *c
		v.City.Goods = slices.Clone(c.Goods)
	}
	if st, ok := s.char.State.(game.InCombat); ok {
		v.Combat = &st
	}
	if s.machine.Phase() == travel.Traveling {
		v.Travel = &TravelView{Destination: s.machine.Destination(), Progress: s.machine.Progress()}
	}
	return v
}

func (s *Session) encounterCopy() *game.Encounter {
	if s.encounter == nil {
		return nil
	}
	cp := *s.encounter
	cp.Loot = slices.Clone(s.encounter.Loot)
	return &cp
}

// Logs returns the feed, newest first.
func (s *Session) Logs(ctx context.Context) ([]LogEntry, error) {
	return now(ctx, s, func() ([]LogEntry, error) { return slices.Clone(s.logs), nil })
}

// Players returns the latest presence list, this character included.
func (s *Session) Players(ctx context.Context) ([]market.Presence, error) {
	return now(ctx, s, func() ([]market.Presence, error) { return slices.Clone(s.players), nil })
}

// Cities lists every city with prices computed for this character.
func (s *Session) Cities(ctx context.Context) ([]CityView, error) {
	return now(ctx, s, func() ([]CityView, error) {
		here := s.world.City(s.char.CityID)
		out := make([]CityView, 0, len(s.world.Cities))
		for i := range s.world.Cities {
			c := &s.world.Cities[i]
			cv := CityView{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Coordinates: c.Coordinates,
				Restricted:  c.Restricts(s.char.Job),
				Current:     c.ID == s.char.CityID,
				Market:      s.quotes(c),
			}
			if here != nil {
				cv.Distance = game.CalculateDistance(here.Coordinates, c.Coordinates)
			}
			out = append(out, cv)
		}
		return out, nil
	})
}

func (s *Session) quotes(c *game.City) []Quote {
	job := s.char.Job
	out := make([]Quote, 0, len(c.Goods))
	for _, g := range c.Goods {
		out = append(out, Quote{
			Good:      g,
			BuyPrice:  s.econ.EffectivePrice(job, c, g, true),
			SellPrice: s.econ.EffectivePrice(job, c, g, false),
			Weight:    s.econ.Weight(job, g.Weight),
			CanBuy:    s.econ.CanTrade(job, g.Type, true),
			CanSell:   s.econ.CanTrade(job, g.Type, false),
		})
	}
	return out
}

// QuoteTravel reports distance and legality for a trip without starting it.
func (s *Session) QuoteTravel(ctx context.Context, destID string) (TravelQuote, error) {
	return now(ctx, s, func() (TravelQuote, error) {
		dest := s.world.City(destID)
		if dest == nil {
			return TravelQuote{}, game.ErrUnknownCity
		}
		q := TravelQuote{
			Destination: dest.ID,
			DurationMs:  s.world.Balance.TravelDurationMs,
			Restricted:  dest.Restricts(s.char.Job),
		}
		if here := s.world.City(s.char.CityID); here != nil {
			q.Distance = game.CalculateDistance(here.Coordinates, dest.Coordinates)
		}
		return q, nil
	})
}
