package main

import (
	"context"
	"net/http"
	"os"

	"github.com/dgarciab/entregalo-backend/api/routes"
	"github.com/dgarciab/entregalo-backend/internal/dispatch"
	"github.com/dgarciab/entregalo-backend/internal/events"
	"github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/internal/rejections"
	"github.com/dgarciab/entregalo-backend/pkg/config"
	"github.com/dgarciab/entregalo-backend/pkg/db"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
	"github.com/dgarciab/entregalo-backend/pkg/metrics"
	"github.com/dgarciab/entregalo-backend/pkg/migrate"
	"github.com/dgarciab/entregalo-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
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

	hub := events.NewHub(cfg.Stream.SubscriberBuffer)
	defer hub.Close()

	registry := prometheus.NewRegistry()
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	rejectionsRepo := rejections.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, dbClient, nil, cfg.Dispatch.DeliveryFeeCents)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatch.NewService(ordersRepo, rejectionsRepo, dbClient, hub, dispatchMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DBPinger:        dbClient,
			RedisClient:     redisClient,
			Bus:             hub,
			Metrics:         dispatchMetrics,
			Registry:        registry,
			OrdersRepo:      ordersRepo,
			RejectionsRepo:  rejectionsRepo,
			OrdersService:   ordersService,
			DispatchService: dispatchService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
