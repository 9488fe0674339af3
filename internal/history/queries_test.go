package history

import (
	"os"
	"testing"
	"time"

	"mathrace/internal/db"
	"mathrace/internal/events"
	"mathrace/internal/players"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", CategoryScore, false},
		{"score", CategoryScore, false},
		{"best", CategoryBest, false},
		{"wins", CategoryWins, false},
		{"rounds", CategoryRounds, false},
		{"cps", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func getTestQueries(t *testing.T) *Queries {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	database, err := db.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	clean := func() {
		database.Exec("DELETE FROM round_scores")
		database.Exec("DELETE FROM rounds")
	}
	clean()
	t.Cleanup(func() {
		clean()
		database.Close()
	})
	return NewQueries(database)
}

func record(t *testing.T, q *Queries, room string, finished time.Time, standings ...players.Standing) int64 {
	t.Helper()
	id, err := q.DB.RecordRound(events.RoundFinishedEvent{
		RoomID:     room,
		Duration:   30,
		StartedAt:  finished.Add(-30 * time.Second),
		FinishedAt: finished,
		Standings:  standings,
	})
	require.NoError(t, err)
	return id
}

func TestRecentRounds(t *testing.T) {
	q := getTestQueries(t)
	now := time.Now().UTC()

	record(t, q, "OLDER2", now.Add(-time.Hour),
		players.Standing{PlayerID: "a", Name: "Alice", Score: 2})
	record(t, q, "NEWER2", now,
		players.Standing{PlayerID: "b", Name: "Bob", Score: 1},
		players.Standing{PlayerID: "c", Name: "Carol", Score: 4})

	rounds, err := q.RecentRounds(10)
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	assert.Equal(t, "NEWER2", rounds[0].RoomCode)
	require.Len(t, rounds[0].Players, 2)
	assert.Equal(t, "Bob", rounds[0].Players[0].Name)
	assert.Equal(t, 2, rounds[0].Players[0].Rank)
	assert.Equal(t, 1, rounds[0].Players[1].Rank)
	assert.Equal(t, "OLDER2", rounds[1].RoomCode)

	limited, err := q.RecentRounds(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetRound(t *testing.T) {
	q := getTestQueries(t)
	id := record(t, q, "ROUND2", time.Now().UTC(),
		players.Standing{PlayerID: "a", Name: "Alice", Score: 2})

	r, err := q.GetRound(id)
	require.NoError(t, err)
	assert.Equal(t, "ROUND2", r.RoomCode)
	assert.Equal(t, 30, r.Duration)
	require.Len(t, r.Players, 1)

	_, err = q.GetRound(id + 1000)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

func TestLeaderboard(t *testing.T) {
	q := getTestQueries(t)
	now := time.Now().UTC()

	record(t, q, "LBOARD", now.Add(-time.Minute),
		players.Standing{PlayerID: "a1", Name: "Alice", Score: 5},
		players.Standing{PlayerID: "b1", Name: "Bob", Score: 3})
	record(t, q, "LBOARD", now,
		players.Standing{PlayerID: "a2", Name: "Alice", Score: 1},
		players.Standing{PlayerID: "b2", Name: "Bob", Score: 4})

	total, err := q.Leaderboard(CategoryScore, 10)
	require.NoError(t, err)
	assert.Equal(t, []LeaderboardEntry{
		{Name: "Bob", Value: 7, Rank: 1},
		{Name: "Alice", Value: 6, Rank: 2},
	}, total)

	best, err := q.Leaderboard(CategoryBest, 10)
	require.NoError(t, err)
	assert.Equal(t, "Alice", best[0].Name)
	assert.Equal(t, 5, best[0].Value)

	wins, err := q.Leaderboard(CategoryWins, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, wins[0].Value)
	assert.Equal(t, 1, wins[1].Value)

	played, err := q.Leaderboard(CategoryRounds, 1)
	require.NoError(t, err)
	require.Len(t, played, 1)
	assert.Equal(t, 2, played[0].Value)

	_, err = q.Leaderboard("bogus", 10)
	assert.Error(t, err)
}
