package players

type Player struct {
	ID    string
	Name  string
	Score int
}

// Standing is a point-in-time copy of a player's score.
type Standing struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}
