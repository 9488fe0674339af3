package session

import (
	"context"
	"errors"
	"time"

	"mathrace/internal/quiz"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

const DefaultWriteTimeout = 10 * time.Second

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Session bridges one player's connection to a room.
type Session struct {
	PlayerID     string
	RoomCode     string
	Name         string
	Conn         Conn
	Game         *quiz.Game
	WriteTimeout time.Duration

	// rounds outlives the connection; round controllers started from this
	// session are bound to it.
	rounds context.Context
	joined quiz.Joined
}

// New wraps a player that has already joined game.
func New(conn Conn, roomCode string, game *quiz.Game, joined quiz.Joined, rounds context.Context) *Session {
	return &Session{
		PlayerID:     joined.Player.ID,
		RoomCode:     roomCode,
		Name:         joined.Player.Name,
		Conn:         conn,
		Game:         game,
		WriteTimeout: DefaultWriteTimeout,
		rounds:       rounds,
		joined:       joined,
	}
}

// Serve runs the outbound and inbound loops until either one stops. The
// player leaves the room when Serve returns.
func (s *Session) Serve(ctx context.Context) {
	joined := s.joined
	defer s.Game.Leave(s.PlayerID, joined.Sub)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writePump(ctx, joined.Snapshot, joined.Sub)
	}()

	log.Info().
		Str("component", "session").
		Str("room_id", s.RoomCode).
		Str("player_id", s.PlayerID).
		Str("name", s.Name).
		Msg("player joined")

	s.readPump(ctx)
	cancel()
	<-writerDone

	log.Info().
		Str("component", "session").
		Str("room_id", s.RoomCode).
		Str("player_id", s.PlayerID).
		Msg("player left")
}

// writePump sends the join snapshot and then every broadcast in order.
func (s *Session) writePump(ctx context.Context, snapshot []string, sub <-chan string) {
	for _, msg := range snapshot {
		if err := s.write(ctx, msg); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			if err := s.write(ctx, msg); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(ctx context.Context, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, s.WriteTimeout)
	defer cancel()
	if err := s.Conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		log.Debug().Err(err).Str("component", "session").Str("player_id", s.PlayerID).Msg("write failed")
		return err
	}
	return nil
}

func (s *Session) readPump(ctx context.Context) {
	for {
		typ, data, err := s.Conn.Read(ctx)
		if err != nil {
			if !expectedClose(err) && ctx.Err() == nil {
				log.Debug().Err(err).Str("component", "session").Str("player_id", s.PlayerID).Msg("read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.handle(quiz.ParseCommand(string(data)))
	}
}

func (s *Session) handle(cmd quiz.Command) {
	switch cmd.Kind {
	case quiz.CommandStart:
		if s.Game.StartRound(s.rounds) {
			log.Info().Str("component", "session").Str("room_id", s.RoomCode).Str("player_id", s.PlayerID).Msg("round started by player")
		}
	case quiz.CommandAnswer:
		s.Game.SubmitAnswer(s.PlayerID, cmd.Value)
	}
}

func expectedClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
