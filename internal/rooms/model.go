package rooms

import (
	"time"

	"mathrace/internal/quiz"
)

type Room struct {
	Code      string
	Game      *quiz.Game
	InviteURL string
	CreatedAt time.Time
}
