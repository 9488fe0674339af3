package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mathrace/internal/config"
	"mathrace/internal/db"
	"mathrace/internal/events"
	"mathrace/internal/rooms"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Run serves until ctx is cancelled. Cancelling ctx also stops every round
// controller and closes every open connection.
func Run(ctx context.Context, cfg config.Config) error {
	bus := events.NewBus()
	roomStore := rooms.NewStore(rooms.Options{
		Game:      cfg.Game(),
		PublicURL: cfg.PublicURL,
		Events:    bus,
	})
	srv := New(ctx, cfg, roomStore)

	// Optional database connection
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Str("component", "db").Msg("failed to connect, running without database")
		} else {
			if err := database.Migrate(); err != nil {
				log.Error().Err(err).Str("component", "db").Msg("migration failed")
			}
			srv.DB = database
			defer database.Close()
		}
	} else {
		log.Info().Str("component", "db").Msg("DATABASE_URL not set, running without database")
	}

	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		p, err := events.NewPublisher(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			log.Warn().Err(err).Str("component", "events").Msg("failed to connect to NATS, running without forwarding")
		} else {
			publisher = p
			defer publisher.Close()
		}
	}

	var sink resultSink
	if srv.DB != nil {
		sink.record = srv.DB.RecordRound
	}
	if publisher != nil {
		sink.publish = publisher.Publish
	}
	go sink.run(ctx, bus)
	go roomStore.RunSweeper(ctx, cfg.SweepEvery(), cfg.IdleTTL())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Str("addr", httpServer.Addr).Str("public_url", cfg.PublicURL).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Str("component", "server").Msg("shutting down")
	srv.Hub.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// resultSink hands each finished round to the configured stores. Either
// target may be nil.
type resultSink struct {
	record  func(events.RoundFinishedEvent) (int64, error)
	publish func(events.RoundFinishedEvent) error
}

func (rs resultSink) run(ctx context.Context, bus *events.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.RoundsFinished:
			rs.handle(ev)
		}
	}
}

func (rs resultSink) handle(ev events.RoundFinishedEvent) {
	if rs.record != nil {
		id, err := rs.record(ev)
		if err != nil {
			log.Error().Err(err).Str("component", "db").Str("room_id", ev.RoomID).Msg("recording round")
		} else {
			log.Info().Str("component", "db").Str("room_id", ev.RoomID).Int64("round_id", id).Msg("round recorded")
		}
	}
	if rs.publish != nil {
		if err := rs.publish(ev); err != nil {
			log.Error().Err(err).Str("component", "events").Str("room_id", ev.RoomID).Msg("publishing round")
		}
	}
}
