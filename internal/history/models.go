package history

import "time"

type RoundScore struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// RoundRecap is one finished round with standings in roster order.
type RoundRecap struct {
	ID         int64        `json:"id"`
	RoomCode   string       `json:"room_id"`
	Duration   int          `json:"duration_seconds"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Players    []RoundScore `json:"players"`
}

// LeaderboardEntry aggregates by display name; player ids only live as long
// as a connection.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Rank  int    `json:"rank"`
}
