package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"mobile-payment-backend/internal/catalog"
	"mobile-payment-backend/internal/config"
	"mobile-payment-backend/internal/event"
	"mobile-payment-backend/internal/gateway"
	"mobile-payment-backend/internal/handler"
	"mobile-payment-backend/internal/metrics"
	"mobile-payment-backend/internal/middleware"
	"mobile-payment-backend/internal/repository"
	"mobile-payment-backend/internal/router"
	"mobile-payment-backend/internal/service"
)

const natsConnectTimeout = 5 * time.Second

type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	server       *http.Server
	auth         *service.AuthService
	forwarder    *event.NATSForwarder
	cleanupFuncs []func()
}

// New constructs every store and service once. Callers must Close the App
// if Run is never called.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	users, err := repository.NewUserRepository(cfg.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	payments, err := repository.NewPaymentRepository(cfg.PaymentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open payment ledger: %w", err)
	}

	tokens, closeTokens, err := OpenTokenRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.cleanupFuncs = append(a.cleanupFuncs, closeTokens)

	products, err := catalog.Load(cfg.ProductsFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}

	m := metrics.New()
	bus := event.NewBus(logger)

	gw, err := gateway.New(cfg.Gateway(), payments,
		gateway.WithLogger(logger.With("component", "gateway")),
		gateway.WithMetrics(m),
		gateway.WithBus(bus),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	a.auth = service.NewAuthService(users, tokens, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		service.WithAuthLogger(logger.With("component", "auth")),
		service.WithAuthMetrics(m),
	)

	created, err := a.auth.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPass)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	if created {
		logger.Warn("bootstrap admin created; change its password", "username", cfg.BootstrapAdminUser)
	}

	if cfg.NATSURL != "" {
		nc, err := event.Connect(cfg.NATSURL, natsConnectTimeout, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.forwarder = event.NewNATSForwarder(bus, nc, cfg.NATSSubjectPrefix, logger)
		a.cleanupFuncs = append(a.cleanupFuncs, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain failed", "error", err)
			}
		})
	}

	paymentService := service.NewPaymentService(gw, payments, logger.With("component", "payments"))

	var exported *metrics.Metrics
	if cfg.MetricsEnabled {
		exported = m
	}

	appRouter := router.New(cfg, logger, exported, middleware.NewAuthMiddleware(a.auth), router.Handlers{
		Auth:    handler.NewAuthHandler(a.auth),
		User:    handler.NewUserHandler(a.auth),
		Payment: handler.NewPaymentHandler(paymentService),
		Product: handler.NewProductHandler(products),
		Pages:   handler.NewPagesHandler(),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	logger.Info("application ready",
		"payment_mode", gw.Mode(),
		"token_registry", cfg.TokenRegistry,
		"products", products.Len(),
		"nats", cfg.NATSURL != "",
	)
	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	})

	g.Go(func() error {
		a.purgeLoop(gctx)
		return nil
	})

	if a.forwarder != nil {
		g.Go(func() error {
			a.forwarder.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := a.auth.PurgeExpiredRefreshTokens(ctx)
			if err != nil {
				a.logger.Warn("refresh token purge failed", "error", err)
				continue
			}
			if purged > 0 {
				a.logger.Info("expired refresh tokens purged", "count", purged)
			}
		}
	}
}

// Close releases external connections. It is safe to call more than once.
func (a *App) Close() {
	funcs := a.cleanupFuncs
	a.cleanupFuncs = nil
	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}

// OpenTokenRegistry opens the configured refresh-token registry. The returned
// func closes any connection it holds.
func OpenTokenRegistry(ctx context.Context, cfg *config.Config) (repository.TokenRegistry, func(), error) {
	switch cfg.TokenRegistry {
	case config.RegistryRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return repository.NewRedisTokenRegistry(client), func() { _ = client.Close() }, nil
	default:
		registry, err := repository.NewFileTokenRegistry(cfg.TokensFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open refresh token registry: %w", err)
		}
		return registry, func() {}, nil
	}
}
