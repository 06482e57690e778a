package handler

import (
	"errors"
	"net/http"

	"github.com/crowngambit/api/internal/service"
	"github.com/crowngambit/api/pkg/gambit"
)

// MatchHandler handles match lifecycle and play endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// statusFor maps service and engine errors to HTTP statuses. Engine
// rejections are well-formed requests the rules refuse, so they map to
// 422; engine faults are server-side failures.
func statusFor(err error) int {
	var alloc *gambit.AllocationError
	var reject *gambit.RejectError
	var fault *gambit.FaultError
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMatchFull), errors.Is(err, service.ErrAlreadyJoined):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotInMatch), errors.Is(err, service.ErrMatchNotActive):
		return http.StatusBadRequest
	case errors.As(err, &alloc), errors.As(err, &reject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gambit.ErrNotBothCommitted), errors.Is(err, gambit.ErrDuplicateCommit),
		errors.Is(err, gambit.ErrCommitmentMismatch), errors.Is(err, gambit.ErrDuelInProgress):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fault):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Create handles POST /api/v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "name and player_id are required")
		return
	}

	match, err := h.matchSvc.CreateMatch(r.Context(), req.Name, req.PlayerID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

// ListOpen handles GET /api/v1/matches
func (h *MatchHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matchSvc.ListOpen(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// Get handles GET /api/v1/matches/{id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	match, err := h.matchSvc.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// State handles GET /api/v1/matches/{id}/state?viewer={playerID}
//
// The snapshot is filtered for the viewer's role; an unknown or absent
// viewer gets the spectator view.
func (h *MatchHandler) State(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	role, err := h.matchSvc.RoleOf(r.Context(), matchID, r.URL.Query().Get("viewer"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	fs, err := h.matchSvc.StateFor(r.Context(), matchID, role)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// Turns handles GET /api/v1/matches/{id}/turns?viewer={playerID}
//
// Like State, the history is filtered for the viewer's role: while the
// match is live, regeneration and advantage details appear only on the
// viewer's own turns.
func (h *MatchHandler) Turns(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	role, err := h.matchSvc.RoleOf(r.Context(), matchID, r.URL.Query().Get("viewer"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	turns, err := h.matchSvc.ListTurns(r.Context(), matchID, role)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// Join handles POST /api/v1/matches/{id}/join
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	match, err := h.matchSvc.JoinMatch(r.Context(), r.PathValue("id"), req.PlayerID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// Move handles POST /api/v1/matches/{id}/move
func (h *MatchHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		From     string `json:"from"`
		To       string `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id, from and to are required")
		return
	}

	if err := h.matchSvc.SubmitMove(r.Context(), r.PathValue("id"), req.PlayerID, req.From, req.To); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// DuelCommit handles POST /api/v1/matches/{id}/duel/commit
func (h *MatchHandler) DuelCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID   string `json:"player_id"`
		Commitment string `json:"commitment"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" || req.Commitment == "" {
		writeError(w, http.StatusBadRequest, "player_id and commitment are required")
		return
	}

	if err := h.matchSvc.SubmitDuelCommit(r.Context(), r.PathValue("id"), req.PlayerID, req.Commitment); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

// DuelReveal handles POST /api/v1/matches/{id}/duel/reveal
func (h *MatchHandler) DuelReveal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Amount   int    `json:"amount"`
		Nonce    string `json:"nonce"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id, amount and nonce are required")
		return
	}

	if err := h.matchSvc.SubmitDuelReveal(r.Context(), r.PathValue("id"), req.PlayerID, req.Amount, req.Nonce); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revealed"})
}

// Retreat handles POST /api/v1/matches/{id}/retreat
func (h *MatchHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		To       string `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "player_id and to are required")
		return
	}

	if err := h.matchSvc.SelectRetreat(r.Context(), r.PathValue("id"), req.PlayerID, req.To); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// Resign handles POST /api/v1/matches/{id}/resign
func (h *MatchHandler) Resign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	if err := h.matchSvc.Resign(r.Context(), r.PathValue("id"), req.PlayerID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resigned"})
}
