/*
Package combat
File: remote.go
Description:
    Narrator backed by an external text service speaking JSON over HTTP, and
    a Fallback wrapper that drops to the local narrator whenever the remote
    one fails or returns a malformed result.
*/

package combat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrMalformedResult marks a remote payload that breaks the result contract.
var ErrMalformedResult = errors.New("malformed narrator result")

// Validate checks the turn-result contract: damage is never negative.
func (r TurnResult) Validate() error {
	if r.PlayerDamageTaken < 0 || r.EnemyDamageTaken < 0 {
		return fmt.Errorf("%w: negative damage (%d, %d)", ErrMalformedResult, r.PlayerDamageTaken, r.EnemyDamageTaken)
	}
	if r.Narrative == "" {
		return fmt.Errorf("%w: empty narrative", ErrMalformedResult)
	}
	return nil
}

// HTTPNarrator implements Narrator against a remote service exposing
// POST /location, /encounter and /turn.
type HTTPNarrator struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPNarrator creates a client for baseURL.
func NewHTTPNarrator(baseURL string) *HTTPNarrator {
	return &HTTPNarrator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type locationRequest struct {
	Level int    `json:"level"`
	Theme string `json:"theme"`
}

type locationResponse struct {
	Description string `json:"description"`
}

type encounterRequest struct {
	PlayerLevel int `json:"player_level"`
}

func (h *HTTPNarrator) DescribeLocation(ctx context.Context, level int, theme string) (string, error) {
	var out locationResponse
	if err := h.post(ctx, "/location", locationRequest{Level: level, Theme: theme}, &out); err != nil {
		return "", err
	}
	if out.Description == "" {
		return "", fmt.Errorf("%w: empty description", ErrMalformedResult)
	}
	return out.Description, nil
}

func (h *HTTPNarrator) GenerateEncounter(ctx context.Context, playerLevel int) (EncounterData, error) {
	var out EncounterData
	if err := h.post(ctx, "/encounter", encounterRequest{PlayerLevel: playerLevel}, &out); err != nil {
		return EncounterData{}, err
	}
	if out.Name == "" {
		return EncounterData{}, fmt.Errorf("%w: encounter without a name", ErrMalformedResult)
	}
	return out, nil
}

func (h *HTTPNarrator) ResolveTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	// Decode into pointers so a missing damage field is caught.
	var out struct {
		Narrative         string `json:"narrative"`
		PlayerDamageTaken *int   `json:"player_damage_taken"`
		EnemyDamageTaken  *int   `json:"enemy_damage_taken"`
		IsCritical        bool   `json:"is_critical"`
		Fled              bool   `json:"fled"`
	}
	if err := h.post(ctx, "/turn", req, &out); err != nil {
		return TurnResult{}, err
	}
	if out.PlayerDamageTaken == nil || out.EnemyDamageTaken == nil {
		return TurnResult{}, fmt.Errorf("%w: missing damage field", ErrMalformedResult)
	}
	res := TurnResult{
		Narrative:         out.Narrative,
		PlayerDamageTaken: *out.PlayerDamageTaken,
		EnemyDamageTaken:  *out.EnemyDamageTaken,
		IsCritical:        out.IsCritical,
		Fled:              out.Fled,
	}
	if err := res.Validate(); err != nil {
		return TurnResult{}, err
	}
	return res, nil
}

func (h *HTTPNarrator) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("narrator request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("narrator %s: status %s, body: %s", path, resp.Status, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	return nil
}

// Fallback tries Primary and answers from Local when it fails.
type Fallback struct {
	Primary Narrator
	Local   Narrator
	Logger  *slog.Logger
}

func (f *Fallback) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

func (f *Fallback) DescribeLocation(ctx context.Context, level int, theme string) (string, error) {
	s, err := f.Primary.DescribeLocation(ctx, level, theme)
	if err == nil {
		return s, nil
	}
	f.logger().Warn("narrator fallback", "call", "describe_location", "err", err)
	return f.Local.DescribeLocation(ctx, level, theme)
}

func (f *Fallback) GenerateEncounter(ctx context.Context, playerLevel int) (EncounterData, error) {
	e, err := f.Primary.GenerateEncounter(ctx, playerLevel)
	if err == nil {
		return e, nil
	}
	f.logger().Warn("narrator fallback", "call", "generate_encounter", "err", err)
	return f.Local.GenerateEncounter(ctx, playerLevel)
}

func (f *Fallback) ResolveTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	res, err := f.Primary.ResolveTurn(ctx, req)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, ErrUnknownAction) || ctx.Err() != nil {
		return TurnResult{}, err
	}
	f.logger().Warn("narrator fallback", "call", "resolve_turn", "err", err)
	return f.Local.ResolveTurn(ctx, req)
}
