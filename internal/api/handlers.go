/*
Package api
File: handlers.go
Description:
    Contains the HTTP handlers for the REST API.
    These functions decode JSON requests, hand them to the character's
    session and return JSON responses.

    Key Responsibilities:
    - Input Validation (Is the JSON valid? Does the character exist?)
    - Dispatch (Every mutation goes through the session's own loop)
    - Error Mapping (Rule rejections become 4xx with a readable message)
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/everforgeworks/caravan-roads/internal/combat"
	"github.com/everforgeworks/caravan-roads/internal/game"
	"github.com/everforgeworks/caravan-roads/internal/market"
	"github.com/everforgeworks/caravan-roads/internal/session"
)

// Request DTOs (Data Transfer Objects)
// These structs define exactly what we expect the client to send us.

type CreateCharacterRequest struct {
	Name string   `json:"name"`
	Job  game.Job `json:"job"`
}

type TravelRequest struct {
	Destination string `json:"destination"`
}

type BuyRequest struct {
	Good     string `json:"good"`
	Quantity int    `json:"quantity"`
}

type ItemRequest struct {
	ItemID string `json:"item_id"`
}

type CombatRequest struct {
	Action string `json:"action"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Sockets  int    `json:"sockets"`
}

type DescribeResponse struct {
	CityID      string `json:"city_id"`
	Description string `json:"description"`
}

// Handlers binds the REST API to the live sessions.
type Handlers struct {
	Sessions *session.Manager
	Hub      *Hub
	Narrator combat.Narrator
	Logger   *slog.Logger
}

// Routes registers every endpoint on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	// Information Endpoints
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /api/jobs", h.HandleGetJobs)
	mux.HandleFunc("GET /api/cities", h.HandleGetWorldCities)
	mux.HandleFunc("GET /api/cities/{city}/describe", h.HandleDescribeCity)

	// Character Endpoints
	mux.HandleFunc("POST /api/characters", h.HandleCreateCharacter)
	mux.HandleFunc("GET /api/characters/{id}", h.HandleGetCharacter)
	mux.HandleFunc("DELETE /api/characters/{id}", h.HandleLeave)
	mux.HandleFunc("GET /api/characters/{id}/cities", h.HandleGetCities)
	mux.HandleFunc("GET /api/characters/{id}/encounter", h.HandleGetEncounter)
	mux.HandleFunc("GET /api/characters/{id}/logs", h.HandleGetLogs)
	mux.HandleFunc("GET /api/characters/{id}/players", h.HandleGetPlayers)

	// Action Endpoints
	mux.HandleFunc("POST /api/characters/{id}/travel", h.HandleTravel)
	mux.HandleFunc("POST /api/characters/{id}/travel/quote", h.HandleTravelQuote)
	mux.HandleFunc("POST /api/characters/{id}/buy", h.HandleBuy)
	mux.HandleFunc("POST /api/characters/{id}/sell", h.HandleSell)
	mux.HandleFunc("POST /api/characters/{id}/discard", h.HandleDiscard)
	mux.HandleFunc("POST /api/characters/{id}/use", h.HandleUse)
	mux.HandleFunc("POST /api/characters/{id}/combat", h.HandleCombat)
	mux.HandleFunc("POST /api/characters/{id}/bribe", h.HandleBribe)

	// Real-Time WebSocket Endpoint
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.ServeWs)
	}
}

// HandleHealth reports liveness and load.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Sessions: h.Sessions.Len()}
	if h.Hub != nil {
		resp.Sockets = h.Hub.Online()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetJobs returns the playable archetypes and their stat caps.
func (h *Handlers) HandleGetJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sessions.World().Jobs)
}

// HandleGetWorldCities returns the static map without prices.
func (h *Handlers) HandleGetWorldCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sessions.World().Cities)
}

// HandleDescribeCity asks the narrator for flavor text. ?level= defaults to 1.
func (h *Handlers) HandleDescribeCity(w http.ResponseWriter, r *http.Request) {
	city := h.Sessions.World().City(r.PathValue("city"))
	if city == nil {
		h.fail(w, game.ErrUnknownCity)
		return
	}
	level := 1
	if raw := r.URL.Query().Get("level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "level must be a positive integer", http.StatusBadRequest)
			return
		}
		level = n
	}
	text, err := h.Narrator.DescribeLocation(r.Context(), level, city.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DescribeResponse{CityID: city.ID, Description: text})
}

// HandleCreateCharacter rolls a new character and starts its session.
func (h *Handlers) HandleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req CreateCharacterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s, err := h.Sessions.Create(req.Name, req.Job)
	if err != nil {
		h.fail(w, err)
		return
	}
	v, err := s.View(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleGetCharacter returns the full session view.
func (h *Handlers) HandleGetCharacter(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.View, error) {
		return s.View(ctx)
	})
}

// HandleLeave ends the session and removes the character from the market.
func (h *Handlers) HandleLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Leave(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetCities lists every city with prices for this character.
func (h *Handlers) HandleGetCities(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) ([]session.CityView, error) {
		return s.Cities(ctx)
	})
}

// HandleGetEncounter returns the active encounter, 404 when the road is clear.
func (h *Handlers) HandleGetEncounter(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (*game.Encounter, error) {
		v, err := s.View(ctx)
		if err != nil {
			return nil, err
		}
		if v.Encounter == nil {
			return nil, game.ErrNoEncounter
		}
		return v.Encounter, nil
	})
}

func (h *Handlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) ([]session.LogEntry, error) {
		return s.Logs(ctx)
	})
}

func (h *Handlers) HandleGetPlayers(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) ([]market.Presence, error) {
		return s.Players(ctx)
	})
}

// HandleTravel sets out for another city. Progress is polled via GET /api/characters/{id}.
func (h *Handlers) HandleTravel(w http.ResponseWriter, r *http.Request) {
	var req TravelRequest
	if !decode(w, r, &req) {
		return
	}
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.TravelQuote, error) {
		return s.Travel(ctx, req.Destination)
	})
}

// HandleTravelQuote provides a "pre-departure check" without moving.
func (h *Handlers) HandleTravelQuote(w http.ResponseWriter, r *http.Request) {
	var req TravelRequest
	if !decode(w, r, &req) {
		return
	}
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.TravelQuote, error) {
		return s.QuoteTravel(ctx, req.Destination)
	})
}

func (h *Handlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if !decode(w, r, &req) {
		return
	}
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.Receipt, error) {
		return s.Buy(ctx, req.Good, req.Quantity)
	})
}

func (h *Handlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, (*session.Session).Sell)
}

func (h *Handlers) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, (*session.Session).Discard)
}

func (h *Handlers) HandleUse(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, (*session.Session).Use)
}

func (h *Handlers) itemAction(w http.ResponseWriter, r *http.Request, act func(*session.Session, context.Context, string) (session.Receipt, error)) {
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.Receipt, error) {
		return act(s, ctx, req.ItemID)
	})
}

// HandleCombat resolves one turn. The response is sent after the turn is applied.
func (h *Handlers) HandleCombat(w http.ResponseWriter, r *http.Request) {
	var req CombatRequest
	if !decode(w, r, &req) {
		return
	}
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.TurnOutcome, error) {
		return s.Combat(ctx, req.Action)
	})
}

func (h *Handlers) HandleBribe(w http.ResponseWriter, r *http.Request) {
	withSession(h, w, r, func(ctx context.Context, s *session.Session) (session.Receipt, error) {
		return s.Bribe(ctx)
	})
}

// withSession resolves {id}, runs fn and writes its result as JSON.
func withSession[T any](h *Handlers, w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) (T, error)) {
	s, err := h.Sessions.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := fn(r.Context(), s)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fail maps an error to a status code. Rule rejections carry their own
// message; anything else is logged and reported generically.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", "err", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoCharacter),
		errors.Is(err, game.ErrUnknownCity),
		errors.Is(err, game.ErrUnknownGood),
		errors.Is(err, game.ErrUnknownItem),
		errors.Is(err, game.ErrNoEncounter):
		return http.StatusNotFound
	case errors.Is(err, game.ErrUnknownJob),
		errors.Is(err, game.ErrInvalidQuantity),
		errors.Is(err, combat.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrInsufficientGold):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrTradeForbidden),
		errors.Is(err, game.ErrRestrictedCity):
		return http.StatusForbidden
	case game.IsRejection(err):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, combat.ErrMalformedResult):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
