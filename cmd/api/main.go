package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/technoshop/technoshop-backend/api/routes"
	"github.com/technoshop/technoshop-backend/internal/address"
	"github.com/technoshop/technoshop-backend/internal/auth"
	"github.com/technoshop/technoshop-backend/internal/cart"
	"github.com/technoshop/technoshop-backend/internal/catalog"
	"github.com/technoshop/technoshop-backend/internal/discounts"
	"github.com/technoshop/technoshop-backend/internal/offers"
	"github.com/technoshop/technoshop-backend/internal/orders"
	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/internal/users"
	"github.com/technoshop/technoshop-backend/pkg/auth/session"
	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/metrics"
	"github.com/technoshop/technoshop-backend/pkg/migrate"
	"github.com/technoshop/technoshop-backend/pkg/redis"
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

	logg = logger.ForService("api", cfg.App)

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:       dbClient,
			Redis:    redisClient,
			Sessions: sessionManager,
			Metrics:  metrics.NewHTTPMetrics(registry),
			Gatherer: registry,
		}, services),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	registry prometheus.Registerer,
) (routes.Services, error) {
	var svc routes.Services
	conn := dbClient.DB()
	rules := checkout.RulesFromConfig(cfg.Checkout)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	catalogRepo := catalog.NewRepository(conn)
	productRepo := product.NewRepository(conn)
	discountRepo := discounts.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)

	var err error
	if svc.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	}); err != nil {
		return svc, err
	}
	if svc.Register, err = auth.NewRegisterService(auth.RegisterServiceParams{
		DB:               dbClient,
		SessionManager:   sessionManager,
		JWTConfig:        cfg.JWT,
		PasswordConfig:   cfg.Password,
		FirstUserIsAdmin: cfg.FeatureFlags.AdminSelfRegister,
	}); err != nil {
		return svc, err
	}
	if svc.Catalog, err = catalog.NewService(catalogRepo); err != nil {
		return svc, err
	}
	if svc.Addresses, err = address.NewService(address.NewRepository(conn)); err != nil {
		return svc, err
	}
	if svc.Products, err = product.NewService(product.ServiceParams{
		Repo:    productRepo,
		DB:      dbClient,
		Catalog: catalogRepo,
		Cache:   redis.NewJSONCache[product.ProductDTO](redisClient, "product", cfg.Catalog.ProductCacheTTL, cfg.Catalog.ProductCacheJitter),
		Logger:  logg,
	}); err != nil {
		return svc, err
	}
	if svc.Offers, err = offers.NewService(offers.ServiceParams{
		Repo:        offers.NewRepository(conn),
		Products:    productRepo,
		DB:          dbClient,
		Categories:  catalogRepo,
		Invalidator: svc.Products,
	}); err != nil {
		return svc, err
	}
	if svc.Discounts, err = discounts.NewService(discounts.ServiceParams{
		Repo:       discountRepo,
		DB:         dbClient,
		Categories: catalogRepo,
		Rules:      rules,
		Metrics:    checkoutMetrics,
	}); err != nil {
		return svc, err
	}
	if svc.Cart, err = cart.NewService(cartRepo, dbClient, productRepo, svc.Discounts, rules); err != nil {
		return svc, err
	}
	if svc.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Tx:          dbClient,
		Carts:       cartRepo,
		Products:    productRepo,
		Discounts:   discountRepo,
		Addresses:   svc.Addresses,
		Rules:       rules,
		Metrics:     checkoutMetrics,
		Logger:      logg,
		Invalidator: svc.Products,
	}); err != nil {
		return svc, err
	}
	return svc, nil
}
