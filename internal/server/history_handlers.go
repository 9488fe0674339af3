package server

import (
	"errors"
	"net/http"
	"strconv"

	"mathrace/internal/history"

	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func historyLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	return min(n, maxHistoryLimit)
}

func (s *Server) queries(w http.ResponseWriter) *history.Queries {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "history requires a database connection")
		return nil
	}
	return history.NewQueries(s.DB)
}

func (s *Server) handleRecentRounds(w http.ResponseWriter, r *http.Request) {
	q := s.queries(w)
	if q == nil {
		return
	}
	rounds, err := q.RecentRounds(historyLimit(r))
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("recent rounds")
		writeError(w, http.StatusInternalServerError, "error loading rounds")
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	q := s.queries(w)
	if q == nil {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	round, err := q.GetRound(id)
	if errors.Is(err, history.ErrRoundNotFound) {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("component", "server").Int64("round_id", id).Msg("round recap")
		writeError(w, http.StatusInternalServerError, "error loading round")
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, err := history.ParseCategory(r.URL.Query().Get("cat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := s.queries(w)
	if q == nil {
		return
	}
	entries, err := q.Leaderboard(category, historyLimit(r))
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "error loading leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
