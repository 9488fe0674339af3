package quiz

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartRound performs the Waiting to Starting transition and, if this call
// won it, launches the round controller. The controller holds only the
// game, so it keeps running after every connection is gone. ctx should be
// the server's lifetime, not a connection's.
func (g *Game) StartRound(ctx context.Context) bool {
	if !g.Start() {
		return false
	}
	log.Info().Str("component", "round").Str("room_id", g.id).Msg("countdown started")
	go g.runRound(ctx)
	return true
}

func (g *Game) runRound(ctx context.Context) {
	for n := g.Config.CountdownSecs; n > 0; n-- {
		g.setCountdown(n)
		if !g.sleepUntil(ctx, g.clock.Now().Add(time.Second)) {
			g.abandon()
			return
		}
	}

	start := g.clock.Now()
	g.begin(start)

	// Ticks are anchored to the start so they do not drift.
	for k := 1; ; k++ {
		if g.step(g.clock.Now()) {
			return
		}
		if !g.sleepUntil(ctx, start.Add(time.Duration(k)*time.Second)) {
			g.abandon()
			return
		}
	}
}

func (g *Game) sleepUntil(ctx context.Context, t time.Time) bool {
	d := t.Sub(g.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-g.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (g *Game) abandon() {
	log.Info().Str("component", "round").Str("room_id", g.id).Str("phase", string(g.Phase())).Msg("round controller stopped by shutdown")
}
