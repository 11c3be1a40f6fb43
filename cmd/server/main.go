// Command server runs the slow-play deduction game service: it opens
// the database and pub/sub connections, recovers any in-flight
// sessions, then waits for phase timers to drive the games forward.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"slowcoup/internal/cache"
	"slowcoup/internal/config"
	"slowcoup/internal/database"
	"slowcoup/internal/game"
	"slowcoup/internal/scheduler"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store database.Store
	if cfg.DatabaseURL != "" {
		pg, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect database")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("apply schema")
		}
		store = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		store = database.NewMemory()
	}

	var cast cache.Broadcaster = cache.Nop{}
	if cfg.RedisAddr != "" {
		rd, err := cache.NewRedis(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer rd.Close()
		cast = rd
	} else {
		log.Warn("REDIS_ADDR not set, session events will not be published")
	}

	sched := scheduler.New(log)
	defer sched.Stop()

	svc := game.New(store, sched, cast, log, game.Options{
		Durations:      cfg.Durations(),
		DigestInterval: cfg.DigestInterval,
		TurnLimit:      cfg.TurnLimit,
	})
	if err := svc.RecoverSessions(ctx); err != nil {
		log.WithError(err).Fatal("recover sessions")
	}

	log.Info("server running")
	<-ctx.Done()
	log.Info("shutting down")
}
