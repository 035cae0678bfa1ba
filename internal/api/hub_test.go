package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
)

func startHub(t *testing.T) (*market.MemoryStore, *Hub, string) {
	t.Helper()
	store := market.NewMemoryStore()
	w := fullWorld()
	if err := store.Seed(context.Background(), w.Cities); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hub := NewHub(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return store, hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the given type satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, match func(Message) bool) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		if msg.Type == msgType && (match == nil || match(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := Encode(msgType, "test", payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func stockIn(msg Message, city, good string) int {
	var snap market.MarketSnapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		return -1
	}
	return snap.Stock[city][good]
}

func TestHub_ReplaysAndRelaysMarket(t *testing.T) {
	store, hub, url := startHub(t)
	conn := dialHub(t, url)

	first := readUntil(t, conn, TypeMarketSnapshot, nil)
	if got := stockIn(first, "goldhaven", "Iron Ore"); got != 100 {
		t.Fatalf("initial stock %d, want 100", got)
	}

	send(t, conn, TypeAddStock, AddStockPayload{CityID: "goldhaven", Good: "Iron Ore", Delta: -3})
	readUntil(t, conn, TypeMarketSnapshot, func(m Message) bool {
		return stockIn(m, "goldhaven", "Iron Ore") == 97
	})
	if got := store.Snapshot().Stock["goldhaven"]["Iron Ore"]; got != 97 {
		t.Fatalf("store stock %d, want 97", got)
	}

	hub.Pulse()
	pulse := readUntil(t, conn, TypeMarketPulse, nil)
	if got := stockIn(pulse, "goldhaven", "Iron Ore"); got != 97 {
		t.Fatalf("pulse stock %d, want 97", got)
	}
}

func TestHub_RejectsInvalidFrames(t *testing.T) {
	_, _, url := startHub(t)
	conn := dialHub(t, url)

	send(t, conn, TypeAddStock, map[string]any{"city_id": "goldhaven"})
	msg := readUntil(t, conn, TypeError, nil)
	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || !strings.Contains(p.Message, "invalid message") {
		t.Fatalf("unexpected error payload: %+v %v", p, err)
	}

	send(t, conn, TypeAddStock, AddStockPayload{CityID: "atlantis", Good: "Food", Delta: 1})
	msg = readUntil(t, conn, TypeError, nil)
	if err := json.Unmarshal(msg.Payload, &p); err != nil || !strings.Contains(p.Message, "atlantis") {
		t.Fatalf("unexpected error payload: %+v %v", p, err)
	}
}

func TestHub_RemovesPresenceOnDisconnect(t *testing.T) {
	store, _, url := startHub(t)
	conn := dialHub(t, url)

	send(t, conn, TypePutPresence, market.Presence{ID: "p1", Name: "Rook", Job: game.JobThief, CityID: "shadowfen", Gold: 10})
	readUntil(t, conn, TypePresenceSnapshot, func(m Message) bool {
		var snap market.PresenceSnapshot
		_ = json.Unmarshal(m.Payload, &snap)
		return len(snap.Players) == 1
	})

	conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for len(store.Players().Players) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("presence not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDecodeInbound(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"add stock", `{"type":"add_stock","payload":{"city_id":"a","good":"Food","delta":-1}}`, true},
		{"fractional delta", `{"type":"add_stock","payload":{"city_id":"a","good":"Food","delta":1.5}}`, false},
		{"outbound type", `{"type":"market_pulse","payload":{}}`, false},
		{"bad job", `{"type":"put_presence","payload":{"id":"x","name":"n","job":"bard","city_id":"a"}}`, false},
		{"negative gold", `{"type":"put_presence","payload":{"id":"x","name":"n","job":"thief","city_id":"a","gold":-5}}`, false},
		{"remove", `{"type":"remove_presence","payload":{"id":"x"}}`, true},
		{"not json", `{`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tc.raw))
			if (err == nil) != tc.ok {
				t.Fatalf("ok=%v, err=%v", tc.ok, err)
			}
		})
	}
}

func TestEncodeEvent_SkipsConnectivity(t *testing.T) {
	if _, relay, err := EncodeEvent(market.Connectivity{Online: true}); relay || err != nil {
		t.Fatalf("connectivity should not be relayed")
	}
	data, relay, err := EncodeEvent(market.PresenceSnapshot{})
	if !relay || err != nil || !strings.Contains(string(data), TypePresenceSnapshot) {
		t.Fatalf("presence snapshot not encoded: %s %v", data, err)
	}
}

func TestHub_StaleSocketKeepsRepublishedPresence(t *testing.T) {
	store, hub, url := startHub(t)
	old := dialHub(t, url)
	fresh := dialHub(t, url)

	hasGold := func(gold int) func(Message) bool {
		return func(m Message) bool {
			var snap market.PresenceSnapshot
			_ = json.Unmarshal(m.Payload, &snap)
			return len(snap.Players) == 1 && snap.Players[0].Gold == gold
		}
	}
	send(t, old, TypePutPresence, market.Presence{ID: "p1", Name: "Rook", Job: game.JobThief, CityID: "shadowfen", Gold: 10})
	readUntil(t, fresh, TypePresenceSnapshot, hasGold(10))
	send(t, fresh, TypePutPresence, market.Presence{ID: "p1", Name: "Rook", Job: game.JobThief, CityID: "shadowfen", Gold: 20})
	readUntil(t, fresh, TypePresenceSnapshot, hasGold(20))

	old.Close()
	deadline := time.Now().Add(3 * time.Second)
	for hub.Online() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("old socket never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	players := store.Players().Players
	if len(players) != 1 || players[0].Gold != 20 {
		t.Fatalf("old socket removed a record it no longer owns: %+v", players)
	}
}
