package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/nordgate/tipbot/internal/bot"
	"github.com/nordgate/tipbot/internal/database"
	"github.com/nordgate/tipbot/internal/health"
	"github.com/nordgate/tipbot/internal/jobs"
	jobhandlers "github.com/nordgate/tipbot/internal/jobs/handlers"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/lifecycle"
	"github.com/nordgate/tipbot/internal/middleware"
	"github.com/nordgate/tipbot/internal/oracle"
	"github.com/nordgate/tipbot/internal/ratelimit"
	"github.com/nordgate/tipbot/internal/reconcile"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/internal/usercache"
	"github.com/nordgate/tipbot/internal/wallet"
	"github.com/nordgate/tipbot/pkg/config"
	"github.com/nordgate/tipbot/pkg/graceful"
	"github.com/nordgate/tipbot/pkg/logger"
	appredis "github.com/nordgate/tipbot/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(*cfg)
	log.Info("starting tip bot",
		slog.String("env", cfg.AppEnv),
		slog.String("ops_port", cfg.Server.Port))

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Error("failed to initialize sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	config.WatchLogLevel(v, logger.SetLevel)

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})
	shutdown.Register("redis", func(context.Context) error {
		return rdb.Close()
	})

	accounts := store.NewPostgresStore(db, log, cfg.Ledger.StartingBalance)
	engine := ledger.NewEngine(accounts, log)
	cache := usercache.NewCache(rdb)

	var wallets wallet.Provider = wallet.None{}
	if cfg.Oracle.Endpoint != "" {
		wallets = wallet.UUIDProvider{}
	}

	var rateLimitMw *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisLimiter(rdb, log)
		rateLimitMw = middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit.PerUser, cfg.RateLimit.Window, log)
	}

	var (
		queue        jobs.Manager
		oracleClient *oracle.Client
	)
	if cfg.Reconcile.Enabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		oracleClient = oracle.NewClient(cfg.Oracle.Endpoint, cfg.Oracle.Timeout)
		worker := reconcile.NewWorker(engine, oracleClient, cfg.Oracle.Decimals, cache, log)
		taskHandler := jobhandlers.NewReconcileHandler(worker, log)

		jobsWorker := jobs.NewWorker(redisOpt, map[string]int{
			jobs.QueueDefault: 6,
			jobs.QueueLow:     2,
		}, log)
		jobsWorker.RegisterHandler(jobs.TaskTypeReconcileUser, taskHandler)
		jobsWorker.RegisterHandler(jobs.TaskTypeReconcileSweep, taskHandler)

		go func() {
			if err := jobsWorker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()

		scheduler := jobs.NewScheduler(redisOpt, log)
		if err := scheduler.RegisterTasks(cfg.Reconcile.SweepCron); err != nil {
			log.Error("failed to register scheduled tasks", slog.Any("error", err))
			os.Exit(1)
		}
		go scheduler.Run()

		queue = jobs.NewManager(redisOpt, log)

		shutdown.Register("jobs_worker", func(context.Context) error {
			jobsWorker.Shutdown()
			return nil
		})
		shutdown.Register("scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
		shutdown.Register("jobs_queue", func(context.Context) error {
			return queue.Close()
		})
	}

	b, err := bot.New(*cfg, log, engine, cache, wallets, queue, rateLimitMw)
	if err != nil {
		log.Error("failed to initialize bot", slog.Any("error", err))
		os.Exit(1)
	}
	go b.Start()

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	if oracleClient != nil {
		checker.AddCheck("oracle", health.NewOracleChecker(oracleClient))
	}

	opsServer := graceful.NewOpsServer(log, cfg.Server.Port, checker, cfg.Server.ShutdownTimeout)
	go func() {
		if err := opsServer.ListenAndServe(ctx); err != nil {
			log.Error("ops server stopped", slog.Any("error", err))
		}
	}()

	shutdown.Register("bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown completed with errors", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("tip bot stopped")
}
