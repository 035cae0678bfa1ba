/*
Package game
File: models.go
Description:
    Defines all data structures (Structs) used throughout the Caravan Roads world.
    This file serves as the "schema" for the application, mapping directly to
    the world.yaml configuration file and JSON API responses.

    No logic is performed here; this file is strictly for type definitions.
*/

package game

// Job identifies a character archetype.
type Job string

const (
	JobWarrior Job = "warrior"
	JobWizard  Job = "wizard"
	JobThief   Job = "thief"
	JobPriest  Job = "priest"
)

// ItemType tags goods for the legality rules in economy.go.
type ItemType string

const (
	ItemNormal     ItemType = "normal"
	ItemMagic      ItemType = "magic"
	ItemContraband ItemType = "contraband"
)

// Stats are the four base attributes shared by characters and encounters.
type Stats struct {
	Str int `yaml:"str" json:"str"` // Strength (carry limit, melee power)
	Int int `yaml:"int" json:"int"` // Intellect (spell power)
	Dex int `yaml:"dex" json:"dex"` // Dexterity (hit chance, defense, fleeing)
	Wis int `yaml:"wis" json:"wis"` // Wisdom (spell power and magic resistance)
}

// JobArchetype caps attributes at character creation time.
type JobArchetype struct {
	Job         Job    `yaml:"job" json:"job"`
	MaxStats    Stats  `yaml:"max_stats" json:"max_stats"`
	Description string `yaml:"description" json:"description"`
}

// Item is one unit sitting in a bag (character inventory or encounter loot).
type Item struct {
	ID         string   `json:"id"`                    // Unique runtime ID from the IDProvider
	Name       string   `json:"name"`                  // Display name, also the market key
	Weight     float64  `json:"weight"`                // Intrinsic weight in kg
	Type       ItemType `json:"type"`                  // normal, magic or contraband
	BasePrice  int      `json:"base_price"`            // Catalog price
	Price      int      `json:"price"`                 // Effective price paid at acquisition
	OriginCity string   `json:"origin_city,omitempty"` // Where it was bought ("loot" for spoils)
}

// TradeGood is the market-side counterpart of Item.
type TradeGood struct {
	Name      string   `yaml:"name" json:"name"`
	Weight    float64  `yaml:"weight" json:"weight"`
	Type      ItemType `yaml:"type" json:"type"`
	BasePrice int      `yaml:"base_price" json:"base_price"`
	Stock     int      `yaml:"stock" json:"stock"`         // Units currently available
	MaxStock  int      `yaml:"max_stock" json:"max_stock"` // Scarcity ceiling
}

// Coordinates place a city on the 2D map.
type Coordinates struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// City represents a static location (Node) in the world. Only its stock mutates.
type City struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Affinity    []Job       `yaml:"affinity" json:"affinity"`     // Jobs receiving better prices
	Restricted  []Job       `yaml:"restricted" json:"restricted"` // Jobs denied entry
	Coordinates Coordinates `yaml:"coordinates" json:"coordinates"`
	Goods       []TradeGood `yaml:"goods" json:"goods"` // Empty in YAML means "default goods"
}

// CharacterState is either Idle or InCombat.
type CharacterState interface {
	isCharacterState()
}

// Idle is the state between encounters.
type Idle struct{}

// InCombat carries the derived pools that only exist while fighting.
type InCombat struct {
	HP    int `json:"hp"`
	MaxHP int `json:"max_hp"`
	MP    int `json:"mp"`
	MaxMP int `json:"max_mp"`
}

func (Idle) isCharacterState()     {}
func (InCombat) isCharacterState() {}

// Character is the player-controlled trader.
type Character struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Job          Job            `json:"job"`
	BaseStats    Stats          `json:"base_stats"`    // Snapshot taken at creation
	CurrentStats Stats          `json:"current_stats"` // Mutable stats
	Gold         int            `json:"gold"`
	Inventory    []Item         `json:"inventory"`
	CityID       string         `json:"city_id"`
	Traveling    bool           `json:"traveling"`
	TargetCityID string         `json:"target_city_id,omitempty"`
	State        CharacterState `json:"-"`
}

// EncounterKind tags what blocked the road.
type EncounterKind string

const (
	EncounterRival    EncounterKind = "rival"
	EncounterMarauder EncounterKind = "marauder"
	EncounterMerchant EncounterKind = "merchant"
	EncounterMonster  EncounterKind = "monster"
)

// Encounter lives from the travel roll until combat resolves.
type Encounter struct {
	Kind           EncounterKind `json:"kind"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Stats          Stats         `json:"stats"`
	Loot           []Item        `json:"loot"`
	PlayerID       string        `json:"player_id,omitempty"`       // Rival only
	InventoryValue int           `json:"inventory_value,omitempty"` // Rival only
	PlayerHP       int           `json:"player_hp"`                 // Abstract 0-100 pool
	EnemyHP        int           `json:"enemy_hp"`                  // Abstract 0-100 pool
	MaxHP          int           `json:"max_hp"`
}

// Balance stores global tuning variables loaded from 'world.yaml'.
type Balance struct {
	StartingGold          int     `yaml:"starting_gold" json:"starting_gold"`
	StartCity             string  `yaml:"start_city" json:"start_city"`
	WeightLimitMultiplier float64 `yaml:"weight_limit_multiplier" json:"weight_limit_multiplier"`
	BribeCost             int     `yaml:"bribe_cost" json:"bribe_cost"`
	TravelDurationMs      int     `yaml:"travel_duration_ms" json:"travel_duration_ms"`
	TravelTickMs          int     `yaml:"travel_tick_ms" json:"travel_tick_ms"`
	EncounterChance       float64 `yaml:"encounter_chance" json:"encounter_chance"`
	RivalChance           float64 `yaml:"rival_chance" json:"rival_chance"`
	MonsterChance         float64 `yaml:"monster_chance" json:"monster_chance"` // 0 disables narrated monsters
	CombatHP              int     `yaml:"combat_hp" json:"combat_hp"`
	MaxLootPickup         int     `yaml:"max_loot_pickup" json:"max_loot_pickup"`
	LootSackRolls         int     `yaml:"loot_sack_rolls" json:"loot_sack_rolls"`
}

// TradeRules parameterizes the EconomyEngine.
type TradeRules struct {
	AffinityBuyPercent  int             `yaml:"affinity_buy_percent" json:"affinity_buy_percent"`
	AffinitySellPercent int             `yaml:"affinity_sell_percent" json:"affinity_sell_percent"`
	HeavyItemThreshold  float64         `yaml:"heavy_item_threshold" json:"heavy_item_threshold"`
	HeavyHandler        Job             `yaml:"heavy_handler" json:"heavy_handler"`           // Pays double weight on heavy goods
	MagicForbidden      Job             `yaml:"magic_forbidden" json:"magic_forbidden"`       // Cannot handle magic goods
	ContrabandRefuser   Job             `yaml:"contraband_refuser" json:"contraband_refuser"` // Never trades contraband
	ContrabandBuyer     Job             `yaml:"contraband_buyer" json:"contraband_buyer"`     // Only job allowed to buy contraband
	PriceOverrides      []PriceOverride `yaml:"price_overrides" json:"price_overrides"`
}

// PriceOverride is a job-specific modifier for one named good.
type PriceOverride struct {
	Job         Job    `yaml:"job" json:"job"`
	Good        string `yaml:"good" json:"good"`
	BuyPercent  int    `yaml:"buy_percent" json:"buy_percent"`
	SellPercent int    `yaml:"sell_percent" json:"sell_percent"`
}

// ArrivalEffect is a flat gold penalty for a (job, city) pair, applied once on arrival.
type ArrivalEffect struct {
	Job         Job    `yaml:"job" json:"job"`
	CityID      string `yaml:"city" json:"city"`
	GoldPenalty int    `yaml:"gold_penalty" json:"gold_penalty"`
	Message     string `yaml:"message" json:"message"`
}

// World is the root configuration struct, mapping to the entire 'world.yaml' file.
type World struct {
	Balance        Balance         `yaml:"balance"`
	Trade          TradeRules      `yaml:"trade"`
	Jobs           []JobArchetype  `yaml:"jobs"`
	DefaultGoods   []TradeGood     `yaml:"default_goods"`
	Cities         []City          `yaml:"cities"`
	ArrivalEffects []ArrivalEffect `yaml:"arrival_effects"`
}
