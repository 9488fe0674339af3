package quiz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// advance releases the controller n times, one second per sleep.
func advance(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1), "controller never slept (step %d)", i)
		clock.Advance(time.Second)
	}
}

func waitFinished(t *testing.T, g *Game) {
	t.Helper()
	select {
	case <-g.Finished():
	case <-time.After(2 * time.Second):
		t.Fatal("round did not finish")
	}
}

func TestStartRound_FullSequence(t *testing.T) {
	g, clock := newTestGame(t, 3)
	alice := join(t, g, "p1", "Alice")
	join(t, g, "p2", "Bob")
	drain(alice.Sub)

	require.True(t, g.StartRound(context.Background()))
	require.False(t, g.StartRound(context.Background()), "second START must be a no-op")

	advance(t, clock, 3+3)
	waitFinished(t, g)

	assert.Equal(t, []string{
		"COUNTDOWN: 3",
		"COUNTDOWN: 2",
		"COUNTDOWN: 1",
		"START: GO",
		"PROBLEM: 2 + 2",
		"PROGRESS: Alice: 0, Bob: 0",
		"TIMER: 3",
		"TIMER: 2",
		"TIMER: 1",
		"TIMER: 0",
		"FINISH: Time's up!",
	}, drain(alice.Sub))
	assert.Equal(t, PhaseFinished, g.Phase())
}

func TestStartRound_TimerMonotonicAndEndsAtZero(t *testing.T) {
	g, clock := newTestGame(t, 5)
	sub := g.Broadcaster.Subscribe()

	require.True(t, g.StartRound(context.Background()))
	advance(t, clock, 3+5)
	waitFinished(t, g)

	var timers []string
	finishSeen := false
	for _, msg := range drain(sub) {
		if msg == MsgTimeUp {
			finishSeen = true
			continue
		}
		if strings.HasPrefix(msg, "TIMER: ") {
			require.False(t, finishSeen, "TIMER published after FINISH")
			timers = append(timers, strings.TrimPrefix(msg, "TIMER: "))
		}
	}
	assert.True(t, finishSeen)
	assert.Equal(t, []string{"5", "4", "3", "2", "1", "0"}, timers)
}

func TestStartRound_AnswersDuringPlayThenCutoff(t *testing.T) {
	g, clock := newTestGame(t, 2)
	alice := join(t, g, "p1", "Alice")

	require.True(t, g.StartRound(context.Background()))
	advance(t, clock, 3)
	require.Eventually(t, func() bool { return g.Phase() == PhasePlaying }, time.Second, 5*time.Millisecond)

	assert.True(t, g.SubmitAnswer("p1", 4))

	advance(t, clock, 2)
	waitFinished(t, g)

	assert.False(t, g.SubmitAnswer("p1", 3), "answers after finish are ignored")
	assert.False(t, g.Start())
	assert.Equal(t, 1, g.Players.Get("p1").Score)

	msgs := drain(alice.Sub)
	assert.Equal(t, MsgTimeUp, msgs[len(msgs)-1])
}

func TestStartRound_RunsWithNoPlayers(t *testing.T) {
	g, clock := newTestGame(t, 2)
	joined := join(t, g, "p1", "Alice")
	require.True(t, g.StartRound(context.Background()))
	g.Leave("p1", joined.Sub)

	observer := g.Broadcaster.Subscribe()
	advance(t, clock, 3+2)
	waitFinished(t, g)

	msgs := drain(observer)
	require.NotEmpty(t, msgs)
	assert.Equal(t, MsgTimeUp, msgs[len(msgs)-1])
}

func TestStartRound_EmitsRoundFinishedEvent(t *testing.T) {
	g, clock := newTestGame(t, 1)
	join(t, g, "p1", "Alice")

	require.True(t, g.StartRound(context.Background()))
	advance(t, clock, 3)
	require.Eventually(t, func() bool { return g.Phase() == PhasePlaying }, time.Second, 5*time.Millisecond)
	require.True(t, g.SubmitAnswer("p1", 4))
	advance(t, clock, 1)
	waitFinished(t, g)

	select {
	case ev := <-g.Events.RoundsFinished:
		assert.Equal(t, "ROOM42", ev.RoomID)
		assert.Equal(t, 1, ev.Duration)
		assert.Equal(t, time.Second, ev.FinishedAt.Sub(ev.StartedAt))
		require.Len(t, ev.Standings, 1)
		assert.Equal(t, 1, ev.Standings[0].Score)
	case <-time.After(time.Second):
		t.Fatal("no round finished event")
	}
}

func TestStartRound_ZeroCountdown(t *testing.T) {
	g, clock := newTestGame(t, 1)
	g.Config.CountdownSecs = 0
	sub := g.Broadcaster.Subscribe()

	require.True(t, g.StartRound(context.Background()))
	advance(t, clock, 1)
	waitFinished(t, g)

	msgs := drain(sub)
	require.NotEmpty(t, msgs)
	assert.Equal(t, MsgStartGo, msgs[0])
}

func TestStartRound_StopsOnShutdown(t *testing.T) {
	g, clock := newTestGame(t, 5)
	sub := g.Broadcaster.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, g.StartRound(ctx))
	bctx, bcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer bcancel()
	require.NoError(t, clock.BlockUntilContext(bctx, 1))
	cancel()

	// Give the controller a moment to observe the cancellation, then make
	// sure moving time forward produces nothing further.
	time.Sleep(50 * time.Millisecond)
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"COUNTDOWN: 3"}, drain(sub))
	assert.Equal(t, PhaseStarting, g.Phase())
}
