package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"mathrace/internal/quiz"
	"mathrace/internal/rooms"
	"mathrace/internal/session"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	maxRequestBytes = 1 << 10
	maxMessageBytes = 512
	qrSize          = 320
)

type createRoomResponse struct {
	RoomID         string `json:"room_id"`
	InvitationLink string `json:"invitation_link"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, resolveValidationError(err, createRoomMessages(s.Config.MaxRoundDuration), ""))
		return
	}

	room, err := s.Rooms.Create(req.Duration)
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("creating room")
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{
		RoomID:         room.Code,
		InvitationLink: room.InviteURL,
	})
}

// handleWebSocket attaches a connection to a room. Unknown rooms are refused
// before the upgrade, so the client never sees a protocol message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	req := joinRequest{
		RoomID: rooms.NormalizeCode(r.URL.Query().Get("room_id")),
		Name:   strings.TrimSpace(r.URL.Query().Get("name")),
	}
	if _, err := s.Rooms.Lookup(req.RoomID); err != nil || req.RoomID == "" {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, resolveValidationError(err, joinMessages, ""), http.StatusBadRequest)
		return
	}

	// The room may have been reaped since the lookup above.
	playerID := uuid.New().String()
	room, joined, err := s.Rooms.Attach(req.RoomID, playerID, req.Name)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Debug().Err(err).Str("component", "server").Msg("websocket accept failed")
		room.Game.Leave(playerID, joined.Sub)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	sess := session.New(conn, room.Code, room.Game, joined, s.rounds)
	s.Hub.Register(sess)
	defer s.Hub.Unregister(sess)

	sess.Serve(r.Context())
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) lookupRoom(w http.ResponseWriter, r *http.Request) *rooms.Room {
	room, err := s.Rooms.Lookup(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return nil
	}
	return room
}

type roomSummaryResponse struct {
	quiz.Summary
	Connections     int   `json:"connections"`
	DroppedMessages int64 `json:"dropped_messages"`
}

func (s *Server) handleRoomSummary(w http.ResponseWriter, r *http.Request) {
	room := s.lookupRoom(w, r)
	if room == nil {
		return
	}
	writeJSON(w, http.StatusOK, roomSummaryResponse{
		Summary:         room.Game.Summary(),
		Connections:     s.Hub.RoomCount(room.Code),
		DroppedMessages: room.Game.Broadcaster.Dropped(),
	})
}

// handleRoomQR renders the invitation link as a PNG for phones to scan.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	room := s.lookupRoom(w, r)
	if room == nil {
		return
	}

	png, err := qrcode.Encode(room.InviteURL, qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("component", "server").Str("room_id", room.Code).Msg("qr generation failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Rooms       int                `json:"rooms"`
	Connections int                `json:"connections"`
	Phases      map[quiz.Phase]int `json:"phases"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	list := s.Rooms.List()
	phases := make(map[quiz.Phase]int)
	for _, room := range list {
		phases[room.Game.Phase()]++
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Rooms:       len(list),
		Connections: s.Hub.Count(),
		Phases:      phases,
	})
}
