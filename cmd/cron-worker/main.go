package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiketahq/tiketa-backend/internal/cron"
	"github.com/tiketahq/tiketa-backend/internal/discounts"
	"github.com/tiketahq/tiketa-backend/internal/events"
	"github.com/tiketahq/tiketa-backend/internal/inventory"
	"github.com/tiketahq/tiketa-backend/internal/notifications"
	"github.com/tiketahq/tiketa-backend/internal/points"
	"github.com/tiketahq/tiketa-backend/internal/transactions"
	"github.com/tiketahq/tiketa-backend/pkg/config"
	"github.com/tiketahq/tiketa-backend/pkg/db"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/metrics"
	"github.com/tiketahq/tiketa-backend/pkg/migrate"
	"github.com/tiketahq/tiketa-backend/pkg/redis"
)

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

	transactionsRepo, err := transactions.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions repository", err)
		os.Exit(1)
	}
	eventsRepo, err := events.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create events repository", err)
		os.Exit(1)
	}
	pointsLedger, err := points.NewLedger(dbClient.DB(), cfg.Checkout.PointsRefundMonths)
	if err != nil {
		logg.Error(context.Background(), "failed to create points ledger", err)
		os.Exit(1)
	}
	discountResolver, err := discounts.NewResolver(pointsLedger)
	if err != nil {
		logg.Error(context.Background(), "failed to create discount resolver", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())

	transactionsService, err := transactions.NewService(transactions.ServiceParams{
		Tx:        dbClient,
		Repo:      transactionsRepo,
		Events:    eventsRepo,
		Inventory: inventory.NewEngine(),
		Discounts: discountResolver,
		Points:    pointsLedger,
		Logger:    logg,
		Checkout:  cfg.Checkout,
		BatchSize: cfg.Scheduler.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions service", err)
		os.Exit(1)
	}

	expireJob, err := cron.NewExpirePaymentJob(cron.ExpirePaymentJobParams{
		Logger:   logg,
		Sweeper:  transactionsService,
		Interval: cfg.Scheduler.ExpireInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expire payment job", err)
		os.Exit(1)
	}
	staleJob, err := cron.NewStaleConfirmationJob(cron.StaleConfirmationJobParams{
		Logger:   logg,
		Sweeper:  transactionsService,
		Interval: cfg.Scheduler.StaleInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale confirmation job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lockFactory := func(jobName string) (cron.Lock, error) {
		return cron.NewRedisLock(redisClient, redisClient.LockKey(jobName), cfg.Scheduler.LockTTL)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expireJob, staleJob, cleanupJob),
		Locks:    lockFactory,
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
