package history

import (
	"database/sql"
	"errors"
	"fmt"

	"mathrace/internal/db"
)

var ErrRoundNotFound = errors.New("round not found")

type Category string

const (
	CategoryScore  Category = "score"  // total correct answers
	CategoryBest   Category = "best"   // best single round
	CategoryWins   Category = "wins"   // rounds finished at rank 1
	CategoryRounds Category = "rounds" // rounds played
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case "":
		return CategoryScore, nil
	case CategoryScore, CategoryBest, CategoryWins, CategoryRounds:
		return c, nil
	}
	return "", fmt.Errorf("unknown leaderboard category: %s", s)
}

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// RecentRounds returns the latest finished rounds, newest first.
func (q *Queries) RecentRounds(limit int) ([]RoundRecap, error) {
	rows, err := q.DB.Query(`
		SELECT id, room_code, duration_secs, started_at, finished_at
		FROM rounds
		ORDER BY finished_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting recent rounds: %w", err)
	}
	defer rows.Close()

	recaps := []RoundRecap{}
	for rows.Next() {
		var r RoundRecap
		if err := rows.Scan(&r.ID, &r.RoomCode, &r.Duration, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		recaps = append(recaps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recaps {
		scores, err := q.roundScores(recaps[i].ID)
		if err != nil {
			return nil, err
		}
		recaps[i].Players = scores
	}
	return recaps, nil
}

func (q *Queries) GetRound(id int64) (*RoundRecap, error) {
	r := &RoundRecap{ID: id}
	err := q.DB.QueryRow(`
		SELECT room_code, duration_secs, started_at, finished_at FROM rounds WHERE id = $1
	`, id).Scan(&r.RoomCode, &r.Duration, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting round: %w", err)
	}

	r.Players, err = q.roundScores(id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (q *Queries) roundScores(roundID int64) ([]RoundScore, error) {
	rows, err := q.DB.Query(`
		SELECT player_id, name, score, rank
		FROM round_scores
		WHERE round_id = $1
		ORDER BY position
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("getting round scores: %w", err)
	}
	defer rows.Close()

	scores := []RoundScore{}
	for rows.Next() {
		var s RoundScore
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Score, &s.Rank); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (q *Queries) Leaderboard(category Category, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case CategoryScore:
		query = `
			SELECT name, SUM(score) AS value
			FROM round_scores
			GROUP BY name
			ORDER BY value DESC, name
			LIMIT $1`
	case CategoryBest:
		query = `
			SELECT name, MAX(score) AS value
			FROM round_scores
			GROUP BY name
			ORDER BY value DESC, name
			LIMIT $1`
	case CategoryWins:
		query = `
			SELECT name, COUNT(*) FILTER (WHERE rank = 1 AND score > 0) AS value
			FROM round_scores
			GROUP BY name
			ORDER BY value DESC, name
			LIMIT $1`
	case CategoryRounds:
		query = `
			SELECT name, COUNT(*) AS value
			FROM round_scores
			GROUP BY name
			ORDER BY value DESC, name
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard category: %s", category)
	}

	rows, err := q.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
