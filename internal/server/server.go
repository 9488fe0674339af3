package server

import (
	"context"
	"encoding/json"
	"net/http"

	"mathrace/internal/config"
	"mathrace/internal/db"
	"mathrace/internal/metrics"
	"mathrace/internal/rooms"
	"mathrace/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	Rooms  *rooms.Store
	Hub    *session.Hub
	DB     *db.DB // nil if no database configured
	Config config.Config

	validate *validator.Validate
	// rounds is the server lifetime. Round controllers are bound to it, never
	// to the request that started them.
	rounds context.Context
}

func New(ctx context.Context, cfg config.Config, store *rooms.Store) *Server {
	return &Server{
		Rooms:    store,
		Hub:      session.NewHub(),
		Config:   cfg,
		validate: newValidator(cfg.MaxRoundDuration),
		rounds:   ctx,
	}
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create_room", s.handleCreateRoom)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /rooms/{id}", s.handleRoomSummary)
	mux.HandleFunc("GET /rooms/{id}/qr", s.handleRoomQR)
	mux.HandleFunc("GET /history/rounds", s.handleRecentRounds)
	mux.HandleFunc("GET /history/rounds/{id}", s.handleRound)
	mux.HandleFunc("GET /history/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(s.Config.StaticDir)))

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Str("component", "server").Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
