// Command migrate applies the embedded schema migrations and loads seed data.
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down 1
//	go run ./cmd/migrate version
//	go run ./cmd/migrate seed internals/seeds/data
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"beasiswaku_backend/internals/configs"
	database "beasiswaku_backend/internals/databases"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	"beasiswaku_backend/internals/features/scholarship/events"
	"beasiswaku_backend/internals/scheduler"
	"beasiswaku_backend/internals/seeds"
)

func main() {
	cfg, err := configs.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := configs.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		log.Fatal("usage: migrate up | down [n] | version | seed [dir]")
	}

	switch os.Args[1] {
	case "up", "down", "version":
		m, err := database.NewMigrator(cfg.DSN())
		if err != nil {
			log.WithError(err).Fatal("migrator")
		}
		defer m.Close()
		runMigration(m, log)

	case "seed":
		dir := "internals/seeds/data"
		if len(os.Args) > 2 {
			dir = os.Args[2]
		}
		db, err := database.Connect(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("database")
		}
		ledger := budgetService.NewLedger(db, events.LogAuditTrail{Log: log}, nil, log)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := seeds.RunAllSeeds(ctx, ledger, dir, scheduler.SystemActor, log); err != nil {
			log.WithError(err).Fatal("seed")
		}

	default:
		log.Fatalf("unknown command %q", os.Args[1])
	}
}

func runMigration(m *database.Migrator, log *logrus.Logger) {
	switch os.Args[1] {
	case "up":
		if err := m.Up(); err != nil {
			log.WithError(err).Fatal("up")
		}
	case "down":
		n := 1
		if len(os.Args) > 2 {
			v, err := strconv.Atoi(os.Args[2])
			if err != nil || v <= 0 {
				log.Fatalf("down expects a positive step count, got %q", os.Args[2])
			}
			n = v
		}
		if err := m.Down(n); err != nil {
			log.WithError(err).Fatal("down")
		}
	}
	v, dirty, err := m.Version()
	if err != nil {
		log.WithError(err).Fatal("version")
	}
	log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
}
