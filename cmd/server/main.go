package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Lixing-Zhang/service-marketplace/internal/cache"
	"github.com/Lixing-Zhang/service-marketplace/internal/config"
	"github.com/Lixing-Zhang/service-marketplace/internal/handlers"
	"github.com/Lixing-Zhang/service-marketplace/internal/middleware"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository/memory"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository/mongostore"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository/pgstore"
	"github.com/Lixing-Zhang/service-marketplace/internal/service"
	"github.com/Lixing-Zhang/service-marketplace/internal/voucher"
	"github.com/Lixing-Zhang/service-marketplace/pkg/db"
	"github.com/Lixing-Zhang/service-marketplace/pkg/logger"
	"github.com/Lixing-Zhang/service-marketplace/pkg/telemetry"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped gracefully")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	log.Info("starting service marketplace api",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"store", cfg.Store.Driver,
		"log_level", cfg.LogLevel,
	)

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	idempotencyCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return err
	}

	// Initialize services
	var ledgerOpts []voucher.Option
	if cfg.Vouchers.CodeFilter {
		ledgerOpts = append(ledgerOpts, voucher.WithCodeIndex(voucher.NewCodeIndex(10000, 0.001)))
	}
	ledger := voucher.NewLedger(store.Vouchers(), ledgerOpts...)
	if n, err := ledger.WarmIndex(ctx); err != nil {
		log.Warn("failed to warm voucher code index", "error", err)
	} else if cfg.Vouchers.CodeFilter {
		log.Info("voucher code index loaded", "codes", n)
	}

	orderService := service.NewOrderService(store.Orders(), ledger, log,
		service.WithStrictTransitions(cfg.Orders.StrictTransitions))
	ledger.SetReferenceChecker(orderService)
	paymentService := service.NewPaymentService(store.Payments(), orderService, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(store, log)
	api := &handlers.API{
		Orders:   handlers.NewOrderHandler(orderService, log),
		Payments: handlers.NewPaymentHandler(paymentService, log),
		Vouchers: handlers.NewVoucherHandler(ledger, log),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "api_key",
			middleware.HeaderActorID, middleware.HeaderActorRole, middleware.HeaderIdempotencyKey,
		},
		ExposedHeaders:   []string{"Link", middleware.HeaderReplayed},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.ServeHTTP)
	r.Mount("/api/v1", api.Routes(cfg.Auth,
		middleware.Idempotency(idempotencyCache, cfg.Cache.IdempotencyTTL, log)))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Info("shutting down server...")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if err := closeCache(); err != nil {
		log.Warn("failed to close cache", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warn("failed to close store", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("failed to flush traces", "error", err)
	}

	return runErr
}

func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := db.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, client, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		return store, nil

	case config.DriverPostgres:
		conn, err := db.NewPostgresConnection(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		store, err := pgstore.New(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, nil

	default:
		return memory.NewStore(), nil
	}
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func() error, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.Telemetry.ServiceName), func() error { return nil }, nil
	}

	client, err := db.NewRedisClient(ctx, cfg.Cache.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisCache(client, cfg.Telemetry.ServiceName), client.Close, nil
}
