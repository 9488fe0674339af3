package events

import (
	"time"

	"mathrace/internal/players"

	"github.com/rs/zerolog/log"
)

type RoundFinishedEvent struct {
	RoomID     string             `json:"room_id"`
	Duration   int                `json:"duration_seconds"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Standings  []players.Standing `json:"standings"`
}

type Bus struct {
	RoundsFinished chan RoundFinishedEvent
}

func NewBus() *Bus {
	return &Bus{
		RoundsFinished: make(chan RoundFinishedEvent, 64),
	}
}

// EmitRoundFinished never blocks; with no consumer keeping up the event is dropped.
func (b *Bus) EmitRoundFinished(ev RoundFinishedEvent) bool {
	if b == nil {
		return false
	}
	select {
	case b.RoundsFinished <- ev:
		return true
	default:
		log.Warn().Str("component", "events").Str("room_id", ev.RoomID).Msg("event bus full, dropping round result")
		return false
	}
}
