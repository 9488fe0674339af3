package session

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"mathrace/internal/quiz"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	typ  websocket.MessageType
	data string
}

type fakeConn struct {
	in        chan frame
	out       chan string
	failWrite bool

	mu     sync.Mutex
	closed bool
	code   websocket.StatusCode
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:  make(chan frame, 16),
		out: make(chan string, 64),
	}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return f.typ, []byte(f.data), nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	if c.failWrite {
		return errors.New("broken pipe")
	}
	select {
	case c.out <- string(p):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.code = code
		close(c.in)
	}
	return nil
}

func (c *fakeConn) send(text string) {
	c.in <- frame{typ: websocket.MessageText, data: text}
}

func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.out:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func newGame(countdown int) (*quiz.Game, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	cfg := quiz.Config{RoundDuration: 5, CountdownSecs: countdown, SubscriberBuffer: 32}
	return quiz.NewGame("ROOM42", cfg, nil, clock), clock
}

// newSession joins name to g under a fresh player id.
func newSession(t *testing.T, conn Conn, roomCode string, g *quiz.Game, name string) *Session {
	t.Helper()
	joined, err := g.Join(uuid.NewString(), name)
	require.NoError(t, err)
	return New(conn, roomCode, g, joined, context.Background())
}

func serve(s *Session) chan struct{} {
	done := make(chan struct{})
	go func() {
		s.Serve(context.Background())
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestNew(t *testing.T) {
	g, _ := newGame(3)
	s := newSession(t, newFakeConn(), "ROOM42", g, "Alice")

	assert.NotEmpty(t, s.PlayerID)
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, "ROOM42", s.RoomCode)
	assert.NotNil(t, g.Players.Get(s.PlayerID))
	assert.Equal(t, DefaultWriteTimeout, s.WriteTimeout)

	other := newSession(t, newFakeConn(), "ROOM42", g, "Alice")
	assert.NotEqual(t, s.PlayerID, other.PlayerID)
}

func TestServe_WaitingSnapshotThenCountdown(t *testing.T) {
	g, _ := newGame(3)
	conn := newFakeConn()
	done := serve(newSession(t, conn, "ROOM42", g, "Alice"))

	conn.expect(t, quiz.MsgWaitingForHost)

	conn.send("START")
	conn.expect(t, "COUNTDOWN: 3")
	assert.Equal(t, quiz.PhaseStarting, g.Phase())

	conn.Close(websocket.StatusNormalClosure, "")
	waitDone(t, done)
}

func TestServe_AnswerScores(t *testing.T) {
	g, _ := newGame(0)
	conn := newFakeConn()
	s := newSession(t, conn, "ROOM42", g, "Alice")
	done := serve(s)

	conn.expect(t, quiz.MsgWaitingForHost)
	conn.send("START")
	conn.expect(t, quiz.MsgStartGo)
	conn.expect(t, quiz.ProblemMessage(g.CurrentProblem()))
	conn.expect(t, "PROGRESS: Alice: 0")
	conn.expect(t, "TIMER: 5")

	answer := g.CurrentProblem().Answer
	conn.send(" " + strconv.Itoa(answer) + " ")

	require.Eventually(t, func() bool {
		p := g.Players.Get(s.PlayerID)
		return p != nil && p.Score == 1
	}, 2*time.Second, 5*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")
	waitDone(t, done)
}

func TestServe_IgnoresUnknownTextAndBinaryFrames(t *testing.T) {
	g, _ := newGame(3)
	conn := newFakeConn()
	done := serve(newSession(t, conn, "ROOM42", g, "Alice"))
	conn.expect(t, quiz.MsgWaitingForHost)

	conn.send("hello")
	conn.in <- frame{typ: websocket.MessageBinary, data: "START"}
	conn.send("start")

	// A recognized command afterwards proves the reader is still alive.
	conn.send("START")
	conn.expect(t, "COUNTDOWN: 3")

	conn.Close(websocket.StatusNormalClosure, "")
	waitDone(t, done)
}

func TestServe_DisconnectRemovesPlayer(t *testing.T) {
	g, _ := newGame(3)
	conn := newFakeConn()
	done := serve(newSession(t, conn, "ROOM42", g, "Alice"))
	conn.expect(t, quiz.MsgWaitingForHost)
	require.Equal(t, 1, g.Players.Len())

	conn.Close(websocket.StatusNormalClosure, "")
	waitDone(t, done)

	assert.Equal(t, 0, g.Players.Len())
	assert.Equal(t, 0, g.Broadcaster.Subscribers())
}

func TestServe_WriteFailureEndsSession(t *testing.T) {
	g, _ := newGame(3)
	conn := newFakeConn()
	conn.failWrite = true
	done := serve(newSession(t, conn, "ROOM42", g, "Alice"))

	waitDone(t, done)
	assert.Equal(t, 0, g.Players.Len())
}

func TestServe_RoundSurvivesStarterDisconnect(t *testing.T) {
	g, clock := newGame(1)
	starter := newFakeConn()
	watcher := newFakeConn()
	starterDone := serve(newSession(t, starter, "ROOM42", g, "Alice"))
	watcherDone := serve(newSession(t, watcher, "ROOM42", g, "Bob"))
	starter.expect(t, quiz.MsgWaitingForHost)
	watcher.expect(t, quiz.MsgWaitingForHost)

	starter.send("START")
	watcher.expect(t, "COUNTDOWN: 1")
	starter.Close(websocket.StatusNormalClosure, "")
	waitDone(t, starterDone)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	watcher.expect(t, quiz.MsgStartGo)
	assert.Equal(t, quiz.PhasePlaying, g.Phase())

	watcher.Close(websocket.StatusNormalClosure, "")
	waitDone(t, watcherDone)
}

func TestServe_TwoSessionsShareBroadcasts(t *testing.T) {
	g, _ := newGame(3)
	a := newFakeConn()
	b := newFakeConn()
	doneA := serve(newSession(t, a, "ROOM42", g, "Alice"))
	doneB := serve(newSession(t, b, "ROOM42", g, "Bob"))
	a.expect(t, quiz.MsgWaitingForHost)
	b.expect(t, quiz.MsgWaitingForHost)

	b.send("START")
	a.send("START")
	a.expect(t, "COUNTDOWN: 3")
	b.expect(t, "COUNTDOWN: 3")

	a.Close(websocket.StatusNormalClosure, "")
	b.Close(websocket.StatusNormalClosure, "")
	waitDone(t, doneA)
	waitDone(t, doneB)

	select {
	case msg := <-a.out:
		t.Fatalf("second START produced %q", msg)
	default:
	}
}
