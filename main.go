package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/sirupsen/logrus"

	"beasiswaku_backend/internals/configs"
	database "beasiswaku_backend/internals/databases"
	appService "beasiswaku_backend/internals/features/scholarship/applications/service"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	disbService "beasiswaku_backend/internals/features/scholarship/disbursements/service"
	"beasiswaku_backend/internals/features/scholarship/events"
	scholarService "beasiswaku_backend/internals/features/scholarship/scholars/service"
	sscService "beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
	"beasiswaku_backend/internals/helpers/apperror"
	"beasiswaku_backend/internals/helpers/cache"
	"beasiswaku_backend/internals/middlewares"
	routes "beasiswaku_backend/internals/route"
	"beasiswaku_backend/internals/scheduler"
)

func main() {
	cfg, err := configs.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := configs.InitLogger(cfg.LogLevel, cfg.LogFormat)

	fiberCfg := fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          apperror.ErrorHandler,
		DisableStartupMessage: true,
	}
	middlewares.TrustProxies(&fiberCfg, cfg.TrustedProxies)
	app := fiber.New(fiberCfg)
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	middlewares.SetupMiddlewares(app, middlewares.Options{
		AllowOrigins:   cfg.AllowOrigins(),
		RatePerMinute:  cfg.RateLimitPerMinute,
		RequestTimeout: time.Duration(cfg.DBStatementMS+2000) * time.Millisecond,
		AccessLog:      os.Stdout,
		Log:            log,
	})

	// koneksi DB + pool
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("database")
	}

	// cache + notifikasi pakai satu redis kalau dikonfigurasi
	var (
		store    cache.Store = cache.Nop{}
		notifier events.NotificationGateway = events.LogNotifier{Log: log}
	)
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(cfg.RedisURL, "beasiswaku:")
		if err != nil {
			log.WithError(err).Fatal("redis")
		}
		store = rs
		notifier = events.RedisNotifier{Client: rs.Client, Channel: cfg.NotifyChannel}
	} else {
		log.Warn("REDIS_URL is empty, running without cache and publishing notifications to the log")
	}
	loader := cache.NewLoader(store, cfg.CacheTTL, log)
	audit := events.LogAuditTrail{Log: log.WithField("stream", "audit")}

	var gateway disbService.PayoutGateway
	if cfg.MidtransIrisAPIKey != "" {
		gateway = disbService.NewMidtransIrisGateway(cfg.MidtransIrisAPIKey, cfg.MidtransUseProd)
	}

	ledger := budgetService.NewLedger(db, audit, loader, log)
	disbursements := disbService.New(db, gateway, log)
	apps := appService.New(db, ledger, audit, notifier, loader, log)
	apps.Payouts = disbursements
	apps.Interview = appService.InterviewPolicy{LeadDays: cfg.InterviewLeadDays, Hour: cfg.InterviewHour}
	engine := sscService.NewEngine(db, apps, nil, scholarService.NewGormRegistry(db), log)

	routes.SetupRoutes(app, routes.Deps{
		Config:        cfg,
		DB:            db,
		Log:           log,
		Applications:  apps,
		Engine:        engine,
		Ledger:        ledger,
		Disbursements: disbursements,
	})

	// scheduler jalan setelah DB siap
	jobs, err := scheduler.New(scheduler.Config{
		BudgetExpiryCron:  cfg.BudgetExpiryCron,
		StalledStageCron:  cfg.StalledStageCron,
		StalledStageAfter: cfg.StalledStageAfter,
	}, ledger, engine, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	jobs.Start()

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown: HTTP dulu, lalu cron, lalu pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	jobs.Stop(ctx)

	if rs, ok := store.(*cache.RedisStore); ok {
		_ = rs.Client.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("stopped")
}
