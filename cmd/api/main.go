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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/shopfront-backend/api/routes"
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/wishlist"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/migrate"
	"github.com/angelmondragon/shopfront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	deps := routes.Dependencies{DB: dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		deps.Redis = redisClient
		deps.Idempotency = redisClient

		if cfg.JWT.RequireSession {
			sessions, err := session.NewManager(redisClient, cfg.JWT)
			if err != nil {
				return err
			}
			deps.Sessions = sessions
		}
	}

	var reg *prometheus.Registry
	if cfg.FeatureFlags.EnableMetrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	// a nil registerer yields no-op recorders
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	cartMetrics := metrics.NewCartMetrics(registerer)
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registerer)

	unit := cfg.App.CurrencyUnit()
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, unit)
	if err != nil {
		return err
	}
	deps.Catalog = catalogService

	locker, err := buildLocker(cfg, redisClient, logg)
	if err != nil {
		return err
	}
	deps.Cart, err = cart.NewService(cart.NewRepository(dbClient.DB()), dbClient, catalogService, locker, cart.Options{
		LockWait: cfg.Cart.LockWait,
		Currency: unit,
		Metrics:  cartMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	deps.Wishlist, err = wishlist.NewService(wishlist.ServiceParams{
		Repo:     wishlist.NewRepository(dbClient.DB()),
		Products: catalogService,
		Currency: unit,
		Metrics:  cartMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"lock_backend": cfg.Cart.LockBackend,
		"db_driver":    cfg.DB.Driver,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildLocker(cfg *config.Config, redisClient *redis.Client, logg *logger.Logger) (cart.Locker, error) {
	if cfg.Cart.LockBackend == config.LockBackendRedis {
		return cart.NewRedisLocker(redisClient, cfg.Cart.LockTTL, cfg.Cart.LockRetry, logg)
	}
	return cart.NewMemoryLocker(), nil
}
