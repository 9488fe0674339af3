package db

import (
	"fmt"

	"mathrace/internal/events"
	"mathrace/internal/players"
)

// RecordRound stores a finished round and its final standings in one
// transaction and returns the new round id.
func (d *DB) RecordRound(ev events.RoundFinishedEvent) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var roundID int64
	err = tx.QueryRow(`
		INSERT INTO rounds (room_code, duration_secs, started_at, finished_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ev.RoomID, ev.Duration, ev.StartedAt, ev.FinishedAt).Scan(&roundID)
	if err != nil {
		return 0, fmt.Errorf("inserting round: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO round_scores (round_id, player_id, name, score, rank, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing score insert: %w", err)
	}
	defer stmt.Close()

	ranks := Ranks(ev.Standings)
	for i, s := range ev.Standings {
		if _, err := stmt.Exec(roundID, s.PlayerID, s.Name, s.Score, ranks[i], i); err != nil {
			return 0, fmt.Errorf("inserting score for %s: %w", s.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing round: %w", err)
	}
	return roundID, nil
}

// Ranks assigns competition ranks (1, 2, 2, 4) by descending score.
// The result is indexed like standings.
func Ranks(standings []players.Standing) []int {
	ranks := make([]int, len(standings))
	for i, s := range standings {
		rank := 1
		for _, other := range standings {
			if other.Score > s.Score {
				rank++
			}
		}
		ranks[i] = rank
	}
	return ranks
}
