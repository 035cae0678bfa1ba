package combat_test

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/combat/mocks"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/game/gametest"
)

func turn(action combat.Action, attacker, defender game.Stats) combat.TurnRequest {
	return combat.TurnRequest{
		AttackerName:  "Aria",
		Job:           game.JobWarrior,
		AttackerStats: attacker,
		DefenderName:  "Bandit",
		DefenderStats: defender,
		Action:        action,
	}
}

func TestResolve_AttackOnZeroStatDefenderIsNonNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attacker := game.Stats{
			Str: rapid.IntRange(0, 100).Draw(t, "str"),
			Int: rapid.IntRange(0, 100).Draw(t, "int"),
			Dex: rapid.IntRange(0, 100).Draw(t, "dex"),
			Wis: rapid.IntRange(0, 100).Draw(t, "wis"),
		}
		seed := rapid.Int64().Draw(t, "seed")
		r := combat.NewResolver(rand.New(rand.NewSource(seed)))

		res, err := r.Resolve(turn(combat.ActionAttack, attacker, game.Stats{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.EnemyDamageTaken < 0 || res.PlayerDamageTaken < 0 {
			t.Fatalf("negative damage: %+v", res)
		}
		if res.Narrative == "" {
			t.Fatalf("narrative must not be empty")
		}
	})
}

func TestResolve_DefendTakesLessThanAttackOnSameSeed(t *testing.T) {
	attacker := game.Stats{Str: 20, Int: 10, Dex: 20, Wis: 10}
	defender := game.Stats{Str: 60, Int: 10, Dex: 30, Wis: 10}

	for seed := int64(1); seed <= 50; seed++ {
		atk, err := combat.NewResolver(rand.New(rand.NewSource(seed))).Resolve(turn(combat.ActionAttack, attacker, defender))
		if err != nil {
			t.Fatalf("attack: %v", err)
		}
		def, err := combat.NewResolver(rand.New(rand.NewSource(seed))).Resolve(turn(combat.ActionDefend, attacker, defender))
		if err != nil {
			t.Fatalf("defend: %v", err)
		}
		if def.PlayerDamageTaken >= atk.PlayerDamageTaken {
			t.Fatalf("seed %d: defend took %d, attack took %d", seed, def.PlayerDamageTaken, atk.PlayerDamageTaken)
		}
		if def.EnemyDamageTaken != 0 {
			t.Fatalf("defend must not deal damage, got %d", def.EnemyDamageTaken)
		}
	}
}

func TestResolve_AttackCriticalMultipliesDamage(t *testing.T) {
	attacker := game.Stats{Str: 10, Dex: 10}
	// crit roll 0.1, hit Intn(20)=9 -> 10, spell 0, counter 0
	rng := &gametest.Script{Floats: []float64{0.1, 0.9}, Ints: []int{9, 0, 0}}
	res, err := combat.NewResolver(rng).Resolve(turn(combat.ActionAttack, attacker, game.Stats{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// base = 10*0.6 + 10*0.4 + 10 = 20, crit -> 30
	if !res.IsCritical || res.EnemyDamageTaken != 30 {
		t.Fatalf("expected critical 30, got %+v", res)
	}
}

func TestResolve_MagicIgnoresPhysicalDefense(t *testing.T) {
	attacker := game.Stats{Int: 40, Wis: 10}
	defender := game.Stats{Str: 0, Dex: 90, Wis: 10}
	rng := &gametest.Script{Floats: []float64{0.9, 0.9}, Ints: []int{0, 5, 0}}
	res, err := combat.NewResolver(rng).Resolve(turn(combat.ActionMagic, attacker, defender))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 40 + 3 - 3 + 5
	if res.EnemyDamageTaken != 45 || res.IsCritical {
		t.Fatalf("expected 45 non-critical, got %+v", res)
	}
}

func TestResolve_Flee(t *testing.T) {
	attacker := game.Stats{Dex: 50}
	defender := game.Stats{Str: 41, Dex: 50}

	ok := &gametest.Script{Floats: []float64{0.9, 0.49}}
	res, err := combat.NewResolver(ok).Resolve(turn(combat.ActionFlee, attacker, defender))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fled || res.PlayerDamageTaken != 0 || res.EnemyDamageTaken != 0 {
		t.Fatalf("expected a clean escape, got %+v", res)
	}

	caught := &gametest.Script{Floats: []float64{0.9, 0.5}}
	res, err = combat.NewResolver(caught).Resolve(turn(combat.ActionFlee, attacker, defender))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fled || res.PlayerDamageTaken != 20 {
		t.Fatalf("expected failed flee with 20 damage, got %+v", res)
	}
}

func TestResolve_FleeChanceIsUnclamped(t *testing.T) {
	// chance = 0.5 + 0.01*(200-0) = 2.5; even the highest roll escapes.
	rng := &gametest.Script{Floats: []float64{0.9, 0.999}}
	res, err := combat.NewResolver(rng).Resolve(turn(combat.ActionFlee, game.Stats{Dex: 200}, game.Stats{Str: 10}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fled {
		t.Fatalf("expected escape, got %+v", res)
	}
}

func TestParseAction_RejectsUnknown(t *testing.T) {
	if _, err := combat.ParseAction("DANCE"); !errors.Is(err, combat.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if a, err := combat.ParseAction("MAGIC"); err != nil || a != combat.ActionMagic {
		t.Fatalf("expected MAGIC, got %q %v", a, err)
	}
}

func TestLocalNarrator_ScalesMonsterByLevel(t *testing.T) {
	rng := &gametest.Script{Ints: []int{1}} // Forest Berserker: str 18
	n := combat.NewLocalNarrator(rng, combat.NewResolver(rng))
	data, err := n.GenerateEncounter(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 18 * (1 + 0.2*5) = 36
	if data.Stats.Str != 36 || data.Level != 5 || data.Name == "" {
		t.Fatalf("unexpected encounter: %+v", data)
	}
}

func TestFallback_UsesLocalWhenPrimaryFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	primary := mocks.NewMockNarrator(ctrl)
	local := mocks.NewMockNarrator(ctrl)
	req := turn(combat.ActionAttack, game.Stats{Str: 10}, game.Stats{})
	want := combat.TurnResult{Narrative: "local", EnemyDamageTaken: 3}

	primary.EXPECT().ResolveTurn(gomock.Any(), req).Return(combat.TurnResult{}, errors.New("timeout"))
	local.EXPECT().ResolveTurn(gomock.Any(), req).Return(want, nil)

	f := &combat.Fallback{Primary: primary, Local: local}
	got, err := f.ResolveTurn(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFallback_PrefersPrimary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	primary := mocks.NewMockNarrator(ctrl)
	local := mocks.NewMockNarrator(ctrl)
	primary.EXPECT().DescribeLocation(gomock.Any(), 1, "road").Return("remote text", nil)

	f := &combat.Fallback{Primary: primary, Local: local}
	got, err := f.DescribeLocation(context.Background(), 1, "road")
	if err != nil || got != "remote text" {
		t.Fatalf("expected remote text, got %q %v", got, err)
	}
}

func TestHTTPNarrator_ResolveTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/turn" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"narrative":"a clash","player_damage_taken":4,"enemy_damage_taken":9,"is_critical":true}`))
	}))
	defer srv.Close()

	n := combat.NewHTTPNarrator(srv.URL)
	res, err := n.ResolveTurn(context.Background(), turn(combat.ActionAttack, game.Stats{}, game.Stats{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PlayerDamageTaken != 4 || res.EnemyDamageTaken != 9 || !res.IsCritical {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPNarrator_RejectsBrokenShape(t *testing.T) {
	cases := map[string]string{
		"missing field":   `{"narrative":"x","player_damage_taken":1}`,
		"negative damage": `{"narrative":"x","player_damage_taken":-1,"enemy_damage_taken":0}`,
		"not json":        `lorem ipsum`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := combat.NewHTTPNarrator(srv.URL).ResolveTurn(context.Background(), turn(combat.ActionAttack, game.Stats{}, game.Stats{}))
			if !errors.Is(err, combat.ErrMalformedResult) {
				t.Fatalf("expected ErrMalformedResult, got %v", err)
			}
		})
	}
}

func TestHTTPNarrator_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := combat.NewHTTPNarrator(srv.URL).DescribeLocation(context.Background(), 1, "road")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}
