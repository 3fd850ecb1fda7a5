package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/middleware"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

const operatorTokenTTL = 24 * time.Hour

// StandingsSource reads the current table through the aggregator worker.
type StandingsSource interface {
	Standings(ctx context.Context) ([]models.StandingsEntry, error)
}

// MatchSource exposes reported match history.
type MatchSource interface {
	Matches() []*models.Match
	Match(id string) (*models.Match, bool)
}

type OperatorHandler struct {
	jwtSecret    []byte
	passwordHash string
	standings    StandingsSource
	matches      MatchSource
	logger       *slog.Logger
}

func NewOperatorHandler(jwtSecret []byte, passwordHash string, standings StandingsSource, matches MatchSource, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{
		jwtSecret:    jwtSecret,
		passwordHash: passwordHash,
		standings:    standings,
		matches:      matches,
		logger:       logger,
	}
}

type operatorLoginRequest struct {
	Password string `json:"password"`
}

func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req operatorLoginRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if !middleware.CheckOperatorPassword(h.passwordHash, req.Password) {
		errorResponse(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := middleware.IssueOperatorToken(h.jwtSecret, operatorTokenTTL)
	if err != nil {
		h.logger.Error("issue operator token", slog.Any("error", err))
		errorResponse(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"token": token})
}

func (h *OperatorHandler) Standings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.standings.Standings(r.Context())
	if err != nil {
		h.logger.Error("read standings", slog.Any("error", err))
		errorResponse(w, http.StatusInternalServerError, "standings unavailable")
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"standings": entries})
}

func (h *OperatorHandler) Matches(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, jsonResponse{"matches": h.matches.Matches()})
}

func (h *OperatorHandler) MatchByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	match, ok := h.matches.Match(id)
	if !ok {
		errorResponse(w, http.StatusNotFound, "match not found")
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": match})
}
