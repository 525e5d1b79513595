package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ShenPrime/Levelington/internal/application/query"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD API
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntryDTO is one ranked member in API responses.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	XP          int64  `json:"xp"`
}

// LeaderboardDTO is the leaderboard API response.
type LeaderboardDTO struct {
	CommunityID string                `json:"community_id"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := shared.NewCommunityID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_community", "community id must be a numeric snowflake")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
	}

	res, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{CommunityID: id, Limit: limit})
	switch {
	case shared.IsNotProvisioned(err):
		writeJSONError(w, http.StatusNotFound, "not_provisioned", "community has not been set up")
		return
	case err != nil:
		s.logger.Error("leaderboard query failed", logger.Guild(id.String()), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to read leaderboard")
		return
	}

	dto := LeaderboardDTO{CommunityID: id.String(), Entries: make([]LeaderboardEntryDTO, 0, len(res.Rows))}
	for _, row := range res.Rows {
		dto.Entries = append(dto.Entries, LeaderboardEntryDTO{
			Rank:        int(row.Rank),
			MemberID:    row.MemberID.String(),
			DisplayName: row.DisplayName,
			Level:       row.Level,
			XP:          row.XP,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
