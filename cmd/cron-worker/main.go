package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mdelarosa/tallypos-backend/internal/cron"
	"github.com/mdelarosa/tallypos-backend/internal/enforcement"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/internal/subscriptions"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/metrics"
	"github.com/mdelarosa/tallypos-backend/pkg/migrate"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/redis"
)

const lockKeyFormat = "tp:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	planService, err := plans.NewService(plans.ServiceParams{
		Repo:   plans.NewRepository(dbClient.DB()),
		Cache:  plans.NewRedisCache(redisClient, cfg.Plans.CacheTTL),
		Config: cfg.Plans,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	enforcer, err := enforcement.NewService(enforcement.ServiceParams{
		Repo:   enforcement.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enforcement service", err)
		os.Exit(1)
	}

	sessionSweep, err := cron.NewSessionSweepJob(cron.SessionSweepJobParams{
		Logger:   logg,
		Sessions: sessions.NewRepository(dbClient.DB()),
		MaxAge:   cfg.Sessions.DeviceRecordTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session sweep job", err)
		os.Exit(1)
	}

	downgradeReconcile, err := cron.NewDowngradeReconcileJob(cron.DowngradeReconcileJobParams{
		Logger:        logg,
		Subscriptions: subscriptions.NewRepository(dbClient.DB()),
		Plans:         planService,
		Enforcer:      enforcer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create downgrade reconcile job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outbox.NewRepository(dbClient.DB()),
		Retention: cfg.Outbox.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(sessionSweep, downgradeReconcile, outboxRetention)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
