/*
Package api
File: protocol.go
Description:
    The JSON envelope spoken on /ws, the message types, and the JSON Schema
    every inbound frame must satisfy before the hub acts on it.

    Client -> Hub: seed, add_stock, put_presence, remove_presence
    Hub -> Client: market_snapshot, presence_snapshot, market_pulse, error
*/

package api

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

const (
	TypeSeed             = "seed"
	TypeAddStock         = "add_stock"
	TypePutPresence      = "put_presence"
	TypeRemovePresence   = "remove_presence"
	TypeMarketSnapshot   = "market_snapshot"
	TypePresenceSnapshot = "presence_snapshot"
	TypeMarketPulse      = "market_pulse"
	TypeError            = "error"
)

// Message defines the standard JSON envelope for all real-time communication.
// Every message sent over the socket follows this structure.
type Message struct {
	Type    string          `json:"type"`             // Event type (e.g. "market_pulse", "add_stock")
	Payload json.RawMessage `json:"payload"`          // Type-specific body
	Sender  string          `json:"sender,omitempty"` // ID of the origin (system or player)
}

type SeedPayload struct {
	Cities []game.City `json:"cities"`
}

type AddStockPayload struct {
	CityID string `json:"city_id"`
	Good   string `json:"good"`
	Delta  int    `json:"delta"`
}

type RemovePresencePayload struct {
	ID string `json:"id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps a payload into an envelope.
func Encode(msgType, sender string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw, Sender: sender})
}

// EncodeEvent maps a store event onto its wire message. Connectivity events
// are local to each process and are not relayed.
func EncodeEvent(ev market.Event) ([]byte, bool, error) {
	switch e := ev.(type) {
	case market.MarketSnapshot:
		b, err := Encode(TypeMarketSnapshot, "system", e)
		return b, true, err
	case market.PresenceSnapshot:
		b, err := Encode(TypePresenceSnapshot, "system", e)
		return b, true, err
	}
	return nil, false, nil
}

const inboundSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "payload"],
  "properties": {
    "type": {"enum": ["seed", "add_stock", "put_presence", "remove_presence"]},
    "sender": {"type": "string"},
    "payload": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "add_stock"}}},
      "then": {"properties": {"payload": {
        "type": "object",
        "required": ["city_id", "good", "delta"],
        "properties": {
          "city_id": {"type": "string", "minLength": 1},
          "good": {"type": "string", "minLength": 1},
          "delta": {"type": "integer"}
        }
      }}}
    },
    {
      "if": {"properties": {"type": {"const": "put_presence"}}},
      "then": {"properties": {"payload": {
        "type": "object",
        "required": ["id", "name", "job", "city_id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "job": {"enum": ["warrior", "wizard", "thief", "priest"]},
          "city_id": {"type": "string"},
          "gold": {"type": "integer", "minimum": 0},
          "inventory_value": {"type": "integer", "minimum": 0},
          "traveling": {"type": "boolean"}
        }
      }}}
    },
    {
      "if": {"properties": {"type": {"const": "remove_presence"}}},
      "then": {"properties": {"payload": {
        "type": "object",
        "required": ["id"],
        "properties": {"id": {"type": "string", "minLength": 1}}
      }}}
    },
    {
      "if": {"properties": {"type": {"const": "seed"}}},
      "then": {"properties": {"payload": {
        "type": "object",
        "required": ["cities"],
        "properties": {"cities": {"type": "array"}}
      }}}
    }
  ]
}`

var inbound = jsonschema.MustCompileString("inbound.schema.json", inboundSchema)

// DecodeInbound validates raw against the inbound schema and decodes it.
func DecodeInbound(raw []byte) (Message, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Message{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := inbound.Validate(doc); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
