package rooms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"mathrace/internal/events"
	"mathrace/internal/metrics"
	"mathrace/internal/quiz"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrRoomNotFound = errors.New("room not found")

type Options struct {
	Game      quiz.Config // defaults for new rooms
	PublicURL string
	Events    *events.Bus
	Clock     clockwork.Clock
}

// Store is the process-wide registry of rooms by code.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
	opts  Options
	clock clockwork.Clock
}

func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Store{
		rooms: make(map[string]*Room),
		opts:  opts,
		clock: opts.Clock,
	}
}

// Create registers a new waiting room. roundDuration <= 0 uses the default.
func (s *Store) Create(roundDuration int) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.opts.Game
	if roundDuration > 0 {
		cfg.RoundDuration = roundDuration
	}

	// Try up to 10 times to generate a unique code
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}

		room := &Room{
			Code:      code,
			Game:      quiz.NewGame(code, cfg, s.opts.Events, s.clock),
			InviteURL: InviteURL(s.opts.PublicURL, code),
			CreatedAt: s.clock.Now(),
		}
		s.rooms[code] = room
		metrics.RoomsCreated.Inc()
		metrics.RoomsActive.Set(float64(len(s.rooms)))
		log.Info().Str("component", "rooms").Str("room_id", code).Int("duration", cfg.RoundDuration).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
}

func (s *Store) Lookup(code string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[NormalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Attach looks up a room and joins the player under the registry lock, so
// a concurrent Sweep either reaps the room first (ErrRoomNotFound) or sees
// the new player and keeps it.
func (s *Store) Attach(code, playerID, name string) (*Room, quiz.Joined, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[NormalizeCode(code)]
	if !ok {
		return nil, quiz.Joined{}, ErrRoomNotFound
	}
	joined, err := room.Game.Join(playerID, name)
	if errors.Is(err, quiz.ErrClosed) {
		return nil, quiz.Joined{}, ErrRoomNotFound
	}
	if err != nil {
		return nil, quiz.Joined{}, fmt.Errorf("joining room %s: %w", room.Code, err)
	}
	return room, joined, nil
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Sweep removes rooms that are empty, not mid-round, and idle past ttl.
// Reaped games are closed, so a handle obtained from Lookup earlier can no
// longer be joined.
func (s *Store) Sweep(ttl time.Duration) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for code, room := range s.rooms {
		if room.Game.Reap(now, ttl) {
			delete(s.rooms, code)
			removed++
			log.Info().Str("component", "rooms").Str("room_id", code).Msg("idle room reaped")
		}
	}
	if removed > 0 {
		metrics.RoomsReaped.Add(float64(removed))
		metrics.RoomsActive.Set(float64(len(s.rooms)))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx ends. ttl <= 0 disables
// reaping entirely.
func (s *Store) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ttl)
		}
	}
}

// InviteURL builds the shareable join link for a room.
func InviteURL(publicURL, code string) string {
	base := strings.TrimRight(publicURL, "/")
	return base + "/?room_id=" + url.QueryEscape(code)
}
