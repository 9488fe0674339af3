package quiz

import (
	"errors"
	"math"
	"sync"
	"time"

	"mathrace/internal/broadcast"
	"mathrace/internal/events"
	"mathrace/internal/metrics"
	"mathrace/internal/players"
	"mathrace/internal/problems"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Join once the room has been reaped.
var ErrClosed = errors.New("room closed")

type Config struct {
	RoundDuration    int // seconds
	CountdownSecs    int
	SubscriberBuffer int
}

func DefaultConfig() Config {
	return Config{
		RoundDuration:    60,
		CountdownSecs:    3,
		SubscriberBuffer: broadcast.DefaultBuffer,
	}
}

// Game is the shared state of one room. Every field below mu is read and
// written with mu held, and publishes happen inside the same critical
// section so subscribers see them in commit order.
type Game struct {
	mu           sync.Mutex
	id           string
	phase        Phase
	countdown    int
	startedAt    time.Time
	deadline     time.Time
	problem      problems.Problem
	lastActivity time.Time
	finished     chan struct{}
	closed       bool

	Players     *players.Store
	Broadcaster *broadcast.Broadcaster
	Events      *events.Bus
	Config      Config

	clock       clockwork.Clock
	nextProblem func(prev problems.Problem) problems.Problem
}

func NewGame(id string, cfg Config, bus *events.Bus, clock clockwork.Clock) *Game {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Game{
		id:           id,
		phase:        PhaseWaiting,
		problem:      problems.Generate(),
		lastActivity: clock.Now(),
		finished:     make(chan struct{}),
		Players:      players.NewStore(),
		Broadcaster:  broadcast.NewBroadcaster(cfg.SubscriberBuffer),
		Events:       bus,
		Config:       cfg,
		clock:        clock,
		nextProblem:  problems.Next,
	}
}

// Joined is what a new member needs: its own broadcast queue and the
// messages describing the room at the moment it subscribed.
type Joined struct {
	Player   *players.Player
	Sub      chan string
	Snapshot []string
}

// Join adds a player with a zero score and subscribes it. While a round is
// playing, existing members get the updated scoreboard first.
func (g *Game) Join(playerID, name string) (Joined, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return Joined{}, ErrClosed
	}
	player := g.Players.Add(playerID, name)
	g.lastActivity = g.clock.Now()
	if g.phase == PhasePlaying {
		g.Broadcaster.Publish(ProgressMessage(g.Players.Standings()))
	}
	sub := g.Broadcaster.Subscribe()

	var snapshot []string
	switch g.phase {
	case PhaseWaiting:
		snapshot = []string{MsgWaitingForHost}
	case PhaseStarting:
		snapshot = []string{CountdownMessage(g.countdown)}
	case PhasePlaying:
		snapshot = []string{ProblemMessage(g.problem), ProgressMessage(g.Players.Standings())}
	case PhaseFinished:
		snapshot = []string{ProblemMessage(g.problem), ProgressMessage(g.Players.Standings()), MsgTimeUp}
	}
	return Joined{Player: player, Sub: sub, Snapshot: snapshot}, nil
}

// Leave unsubscribes the queue and drops the player from the scoreboard.
func (g *Game) Leave(playerID string, sub chan string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sub != nil {
		g.Broadcaster.Unsubscribe(sub)
	}
	g.lastActivity = g.clock.Now()
	if g.Players.Remove(playerID) && g.phase == PhasePlaying {
		g.Broadcaster.Publish(ProgressMessage(g.Players.Standings()))
	}
}

// Start moves a waiting room into the countdown. Only the first call wins.
func (g *Game) Start() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseWaiting {
		return false
	}
	g.phase = PhaseStarting
	g.countdown = g.Config.CountdownSecs
	g.lastActivity = g.clock.Now()
	return true
}

// SubmitAnswer scores a correct answer and replaces the problem. Wrong
// answers, unknown players and answers outside play change nothing.
func (g *Game) SubmitAnswer(playerID string, value int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying || g.Players.Get(playerID) == nil {
		metrics.Answers.WithLabelValues("ignored").Inc()
		return false
	}
	if value != g.problem.Answer {
		metrics.Answers.WithLabelValues("incorrect").Inc()
		return false
	}

	g.Players.IncrementScore(playerID)
	g.problem = g.nextProblem(g.problem)
	g.lastActivity = g.clock.Now()
	metrics.Answers.WithLabelValues("correct").Inc()
	g.Broadcaster.Publish(ProblemMessage(g.problem), ProgressMessage(g.Players.Standings()))
	return true
}

// TickTimer reports the whole seconds left in the round at now and whether
// time is up. It does not change the phase; the round controller acts on
// the result.
func (g *Game) TickTimer(now time.Time) (remaining int, timeUp bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(now)
}

func (g *Game) remainingLocked(now time.Time) (int, bool) {
	switch g.phase {
	case PhaseWaiting, PhaseStarting:
		return g.Config.RoundDuration, false
	case PhaseFinished:
		return 0, true
	}
	left := g.deadline.Sub(now)
	if left <= 0 {
		return 0, true
	}
	return int(math.Ceil(left.Seconds())), false
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// CurrentProblem returns the problem on screen.
func (g *Game) CurrentProblem() problems.Problem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.problem
}

// Finished is closed once the round reaches PhaseFinished.
func (g *Game) Finished() <-chan struct{} {
	return g.finished
}

type Summary struct {
	RoomID    string             `json:"room_id"`
	Phase     Phase              `json:"phase"`
	Duration  int                `json:"duration"`
	Remaining int                `json:"remaining"`
	Players   []players.Standing `json:"players"`
}

func (g *Game) Summary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining, _ := g.remainingLocked(g.clock.Now())
	return Summary{
		RoomID:    g.id,
		Phase:     g.phase,
		Duration:  g.Config.RoundDuration,
		Remaining: remaining,
		Players:   g.Players.Standings(),
	}
}

// Reap closes the room if it is empty, not running a round, and has had no
// activity for longer than ttl. A reaped room refuses every later Join.
func (g *Game) Reap(now time.Time, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return true
	}
	if g.phase.Active() || g.Players.Len() > 0 || now.Sub(g.lastActivity) <= ttl {
		return false
	}
	g.closed = true
	g.Broadcaster.Close()
	return true
}

func (g *Game) setCountdown(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.countdown = n
	g.Broadcaster.Publish(CountdownMessage(n))
}

func (g *Game) begin(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhasePlaying
	g.countdown = 0
	g.startedAt = now
	g.deadline = now.Add(time.Duration(g.Config.RoundDuration) * time.Second)
	g.lastActivity = now
	g.Broadcaster.Publish(MsgStartGo, ProblemMessage(g.problem), ProgressMessage(g.Players.Standings()))
	log.Info().Str("component", "round").Str("room_id", g.id).Int("players", g.Players.Len()).Msg("round started")
}

// step is one controller wake-up at now. It publishes the timer, or finishes
// the round once TickTimer reports time is up, and returns true when the
// round is over.
func (g *Game) step(now time.Time) bool {
	remaining, timeUp := g.TickTimer(now)
	if timeUp {
		g.finish(now)
		return true
	}
	return !g.publishTimer(remaining)
}

func (g *Game) publishTimer(remaining int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhasePlaying {
		return false
	}
	g.Broadcaster.Publish(TimerMessage(remaining))
	return true
}

// finish publishes the final TIMER and FINISH in one critical section, so
// answers count until this commits.
func (g *Game) finish(now time.Time) {
	g.mu.Lock()
	if g.phase != PhasePlaying {
		g.mu.Unlock()
		return
	}
	g.phase = PhaseFinished
	g.lastActivity = now
	g.Broadcaster.Publish(TimerMessage(0), MsgTimeUp)
	close(g.finished)
	ev := events.RoundFinishedEvent{
		RoomID:     g.id,
		Duration:   g.Config.RoundDuration,
		StartedAt:  g.startedAt,
		FinishedAt: now,
		Standings:  g.Players.Standings(),
	}
	g.mu.Unlock()

	metrics.RoundsFinished.Inc()
	g.Events.EmitRoundFinished(ev)
	log.Info().Str("component", "round").Str("room_id", g.id).Int("players", len(ev.Standings)).Msg("round finished")
}
