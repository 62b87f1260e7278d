package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/technoshop/technoshop-backend/internal/catalog"
	"github.com/technoshop/technoshop-backend/internal/cron"
	"github.com/technoshop/technoshop-backend/internal/discounts"
	"github.com/technoshop/technoshop-backend/internal/offers"
	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/metrics"
	"github.com/technoshop/technoshop-backend/pkg/migrate"
	"github.com/technoshop/technoshop-backend/pkg/redis"
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

	logg = logger.ForService("cron-worker", cfg.App)

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

	promRegistry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCronJobMetrics(promRegistry)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: ":" + cfg.Cron.MetricsPort, Handler: mux}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := service.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	productRepo := product.NewRepository(conn)

	products, err := product.NewService(product.ServiceParams{
		Repo:    productRepo,
		DB:      dbClient,
		Catalog: catalogRepo,
		Cache:   redis.NewJSONCache[product.ProductDTO](redisClient, "product", cfg.Catalog.ProductCacheTTL, cfg.Catalog.ProductCacheJitter),
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	offerService, err := offers.NewService(offers.ServiceParams{
		Repo:        offers.NewRepository(conn),
		Products:    productRepo,
		DB:          dbClient,
		Categories:  catalogRepo,
		Invalidator: products,
	})
	if err != nil {
		return nil, err
	}

	offerJob, err := cron.NewOfferExpiryJob(cron.OfferExpiryJobParams{
		Logger:    logg,
		Offers:    offerService,
		Retention: cfg.Cron.OfferRetention,
	})
	if err != nil {
		return nil, err
	}
	discountJob, err := cron.NewDiscountCleanupJob(cron.DiscountCleanupJobParams{
		Logger:     logg,
		Repository: discounts.NewRepository(conn),
		Retention:  cfg.Cron.DiscountRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(offerJob, discountJob)
}
