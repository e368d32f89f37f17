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

	"github.com/zazmarga/online-cinema/api/controllers"
	"github.com/zazmarga/online-cinema/api/routes"
	"github.com/zazmarga/online-cinema/internal/cart"
	"github.com/zazmarga/online-cinema/internal/catalog"
	checkoutsvc "github.com/zazmarga/online-cinema/internal/checkout"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/internal/payments"
	stripewebhook "github.com/zazmarga/online-cinema/internal/webhooks/stripe"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/metrics"
	"github.com/zazmarga/online-cinema/pkg/migrate"
	"github.com/zazmarga/online-cinema/pkg/outbox"
	"github.com/zazmarga/online-cinema/pkg/redis"
	"github.com/zazmarga/online-cinema/pkg/stripe"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	deps := routes.Deps{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
	}

	var guard stripewebhook.EventGuard
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisGuard, err := stripewebhook.NewRedisEventGuard(redisClient, cfg.Webhook.EventTTL)
		if err != nil {
			return err
		}
		guard = redisGuard
		deps.Redis = controllers.Pinger(redisClient)
		deps.IdempotencyStore = redisClient
		deps.RateLimiter = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotency keys, rate limits and webhook event guard disabled")
	}

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cartRepo, dbClient, catalogRepo, ledgerService)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    ordersRepo,
		Carts:   cartRepo,
		Catalog: catalogRepo,
		Ledger:  ledgerService,
		Tx:      dbClient,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Orders:   ordersRepo,
		Catalog:  catalogRepo,
		Sessions: stripeClient,
		Tx:       dbClient,
		App:      cfg.App,
		Checkout: cfg.Checkout,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	paymentsService, err := payments.NewService(paymentsRepo)
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		SigningSecret: stripeClient.SigningSecret(),
		Payments:      paymentsRepo,
		OrdersRepo:    ordersRepo,
		Orders:        ordersService,
		Catalog:       catalogRepo,
		Ledger:        ledgerService,
		Outbox:        outbox.NewService(outbox.NewRepository(gormDB), logg),
		Tx:            dbClient,
		Guard:         guard,
		Metrics:       metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	deps.Cart = cartService
	deps.Orders = ordersService
	deps.Checkout = checkoutService
	deps.Payments = paymentsService
	deps.Ledger = ledgerService
	deps.StripeWebhook = webhookService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
