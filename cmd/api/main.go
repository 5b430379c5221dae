package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tiketahq/tiketa-backend/api/controllers"
	"github.com/tiketahq/tiketa-backend/api/routes"
	"github.com/tiketahq/tiketa-backend/internal/discounts"
	"github.com/tiketahq/tiketa-backend/internal/events"
	"github.com/tiketahq/tiketa-backend/internal/inventory"
	"github.com/tiketahq/tiketa-backend/internal/notifications"
	"github.com/tiketahq/tiketa-backend/internal/points"
	"github.com/tiketahq/tiketa-backend/internal/transactions"
	"github.com/tiketahq/tiketa-backend/pkg/config"
	"github.com/tiketahq/tiketa-backend/pkg/db"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/migrate"
	"github.com/tiketahq/tiketa-backend/pkg/redis"
	"github.com/tiketahq/tiketa-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

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
	couponCatalog, err := discounts.NewCatalog(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon catalog", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	publisher, err := notifications.NewPublisher(notificationsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications publisher", err)
		os.Exit(1)
	}

	transactionsService, err := transactions.NewService(transactions.ServiceParams{
		Tx:        dbClient,
		Repo:      transactionsRepo,
		Events:    eventsRepo,
		Inventory: inventory.NewEngine(),
		Discounts: discountResolver,
		Points:    pointsLedger,
		Proofs:    gcsClient,
		Notifier:  publisher,
		Logger:    logg,
		Checkout:  cfg.Checkout,
		BatchSize: cfg.Scheduler.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	instance := os.Getenv("HOSTNAME")
	if instance == "" {
		instance = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			ReadyChecks: map[string]controllers.Pinger{
				"db":    dbClient,
				"redis": redisClient,
				"gcs":   gcsClient,
			},
			Transactions:  transactionsService,
			Points:        pointsLedger,
			Coupons:       couponCatalog,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
