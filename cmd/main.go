package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suiflow/suiflow_service/internal/api/handlers"
	"github.com/suiflow/suiflow_service/internal/api/middleware"
	"github.com/suiflow/suiflow_service/internal/api/routes"
	"github.com/suiflow/suiflow_service/internal/domain/services/payment"
	"github.com/suiflow/suiflow_service/internal/domain/services/reconciliation"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
	"github.com/suiflow/suiflow_service/internal/infrastructure/cache"
	"github.com/suiflow/suiflow_service/internal/infrastructure/config"
	"github.com/suiflow/suiflow_service/internal/infrastructure/database"
	"github.com/suiflow/suiflow_service/internal/infrastructure/repositories"
	"github.com/suiflow/suiflow_service/pkg/graceful"
	"github.com/suiflow/suiflow_service/pkg/idempotency"
	"github.com/suiflow/suiflow_service/pkg/logger"
	"github.com/suiflow/suiflow_service/pkg/retry"
	"github.com/suiflow/suiflow_service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     !cfg.IsProduction(),
	}
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	ledger := sui.NewClient(sui.Config{
		RPCURL:            cfg.Ledger.RPCURL,
		Network:           cfg.Ledger.Network,
		Timeout:           cfg.Ledger.Timeout(),
		RequestsPerSecond: cfg.Ledger.RequestsPerSecond,
	}, log.Zap())
	log.Info("Ledger client configured", "network", cfg.Ledger.Network, "rpc_url", ledger.URL())

	// The admin identity is optional; without it fee withdrawal is refused.
	var admin signing.Identity
	if cfg.AdminEnabled() {
		keypair, err := signing.NewKeypairIdentityFromBase64(cfg.Ledger.PrivateKey)
		if err != nil {
			log.Fatal("Failed to load admin key", "error", err)
		}
		admin = keypair
		log.Info("Admin identity loaded", "address", keypair.Address())
	} else {
		log.Warn("PRIVATE_KEY not set, admin operations are disabled")
	}

	orchestrator, err := payment.NewOrchestrator(ledger, payment.Config{
		PackageID:         cfg.Ledger.PackageID,
		ProcessorObjectID: cfg.Ledger.ProcessorObjectID,
		CoinType:          cfg.Payment.CoinType,
		ProductPrice:      cfg.Payment.ProductPrice,
		AdminFee:          cfg.Payment.AdminFee,
		GasBudget:         cfg.Payment.GasBudget,
	}, admin, log)
	if err != nil {
		log.Fatal("Failed to create payment orchestrator", "error", err)
	}

	checks := map[string]handlers.Pinger{}
	deps := reconciliation.Dependencies{Ledger: orchestrator}
	var statsCache handlers.StatsCache
	var idempotencyStore idempotency.Store
	var closers []namedCloser

	// Event store
	if cfg.StoreEnabled() {
		db, err := database.NewConnection(context.Background(), cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		closers = append(closers, namedCloser{"database", func(context.Context) error { return db.Close() }})

		if err := database.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}

		deps.Events = repositories.NewLedgerEventRepository(db)
		deps.Reports = repositories.NewReconciliationRepository(db)
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
		log.Info("Event store connected")
	} else {
		log.Info("DATABASE_URL not set, events are not persisted")
	}

	// Stats cache
	if cfg.CacheEnabled() {
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis, log.Zap())
		if err != nil {
			log.Fatal("Failed to connect to redis", "error", err)
		}
		closers = append(closers, namedCloser{"redis", func(context.Context) error { return redisClient.Close() }})

		sc := cache.NewStatsCache(redisClient, cfg.Redis.TTL())
		statsCache = sc
		deps.Cache = sc
		idempotencyStore = cache.NewIdempotencyStore(redisClient)
		checks["cache"] = redisClient.Ping
		log.Info("Stats cache connected", "ttl", cfg.Redis.TTL())
	}

	policy := retry.DefaultPolicy()
	if cfg.Reconciliation.MaxAttempts > 0 {
		policy.MaxRetries = cfg.Reconciliation.MaxAttempts - 1
	}
	reconciler := reconciliation.NewService(deps, reconciliation.Config{
		ProcessorObjectID: cfg.Ledger.ProcessorObjectID,
		EventWindow:       cfg.Reconciliation.EventWindow,
		RetryPolicy:       policy,
	}, log)

	var scheduler *reconciliation.Scheduler
	if cfg.Reconciliation.Enabled {
		scheduler = reconciliation.NewScheduler(reconciler, cfg.Reconciliation.Schedule, log)
		if err := scheduler.Start(); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", "error", err)
		}
	} else {
		log.Info("Reconciliation scheduler disabled in configuration")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var submitLimiter *middleware.IPRateLimiter
	if cfg.Server.SubmitRequestsPerMinute > 0 {
		submitLimiter = middleware.NewIPRateLimiter(cfg.Server.SubmitRequestsPerMinute)
	}

	router := routes.SetupRoutes(routes.Handlers{
		Payment: handlers.NewPaymentHandler(orchestrator, statsCache, cfg.Ledger.ProcessorObjectID, log),
		Health: handlers.NewHealthHandler(handlers.HealthInfo{
			Network:           cfg.Ledger.Network,
			PackageID:         cfg.Ledger.PackageID,
			ProcessorObjectID: cfg.Ledger.ProcessorObjectID,
			AdminEnabled:      orchestrator.HasAdmin(),
		}, checks),
		Reconciliation: handlers.NewReconciliationHandler(reconciler, log),
	}, routes.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AdminJWTSecret:   cfg.Security.AdminJWTSecret,
		SubmitLimiter:    submitLimiter,
		IdempotencyStore: idempotencyStore,
	}, log)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        tracing.HTTPHandler(router, "suiflow-api"),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Components stop in reverse registration order after the server.
	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register("tracing", tracingShutdown)
	for _, c := range closers {
		shutdown.Register(c.name, c.fn)
	}
	if submitLimiter != nil {
		shutdown.Register("submit_rate_limiter", submitLimiter.Stop)
	}
	if scheduler != nil {
		shutdown.Register("reconciliation_scheduler", scheduler.Stop)
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"addr", server.Addr,
			"environment", cfg.Environment,
			"network", cfg.Ledger.Network,
			"read_timeout", cfg.Server.ReadTimeout,
			"write_timeout", cfg.Server.WriteTimeout,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
	log.Info("Server exited gracefully")
}

type namedCloser struct {
	name string
	fn   graceful.ShutdownFunc
}
