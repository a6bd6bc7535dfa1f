package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/school/backend/internal/infrastructure/auth"
	"github.com/school/backend/internal/infrastructure/cache"
	"github.com/school/backend/internal/infrastructure/config"
	"github.com/school/backend/internal/infrastructure/event"
	"github.com/school/backend/internal/infrastructure/logger"
	"github.com/school/backend/internal/infrastructure/persistence"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/school/backend/internal/interfaces/http/handler"
	"github.com/school/backend/internal/interfaces/http/middleware"
	"github.com/school/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			School Fee Ledger API
//	@version		1.0
//	@description	Fee plans, assignments, payments, advances and fine waivers for students and applicants

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Log export is tee'd into the process logger when enabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(logProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting fee ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.PyroscopeAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	// Database with tenant guard, query tracing and zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithCallbacks(func(g *gorm.DB) error {
			return telemetry.RegisterDBTracing(g, telemetry.DBTracingConfig{
				Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
				LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
				SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
				DBSystem:        "postgresql",
			}, log)
		}),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = meterProvider.IsEnabled()
	dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider.Meter("fee.db"), dbMetricsCfg, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
	}

	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		ledgerProvider := telemetry.NewGormLedgerMetricsProvider(db.DB)
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:          meterProvider.Meter("fee.ledger"),
			Logger:         log,
			LedgerProvider: ledgerProvider,
		})
		if err != nil {
			log.Fatal("Failed to create business metrics", zap.Error(err))
		}
		businessMetrics.StartPeriodicCollection(ctx, ledgerProvider, 5*time.Minute)
	}

	// Committed fee events are delivered in process; notifications are deduplicated
	idempotencyStore, err := cache.NewIdempotencyStore(ctx, cfg.Fee.IdempotencyBackend, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewIdempotentHandler(
		feeapp.NewNotificationHandler(log, feeapp.NewLoggingDispatcher(log)),
		idempotencyStore,
		log,
		event.WithHandlerName("fee_notifications"),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.Fee.IdempotencyTTL}),
	))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	engineOpts := []feeapp.Option{
		feeapp.WithLogger(log),
		feeapp.WithPolicy(feePolicy(cfg.Fee)),
		feeapp.WithPrecision(feePrecision(cfg.Fee)),
		feeapp.WithEventPublisher(eventBus),
	}
	if businessMetrics != nil {
		engineOpts = append(engineOpts, feeapp.WithMetrics(businessMetrics))
	}
	feeEngine := feeapp.NewEngine(feeapp.Dependencies{
		Transactor: persistence.NewGormFeeTransactor(db.DB),
		Repos:      persistence.NewFeeRepositories(db.DB),
		Directory:  persistence.NewGormTargetDirectory(db.DB),
	}, engineOpts...)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, tracerProvider.IsEnabled()),
		middleware.Secure(),
		middleware.CORS(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: meterProvider, Enabled: true}),
	)

	health := handler.NewHealthHandler(version, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
		"event_bus": func(context.Context) error {
			if eventBus.Stopped() {
				return event.ErrBusStopped
			}
			return nil
		},
	})
	engine.GET("/health", health.Health)
	engine.GET("/api/v1/health", health.Health)

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.Logger = log
	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.Logger = log

	apiMiddleware := []gin.HandlerFunc{middleware.JWTAuth(jwtCfg)}
	if cfg.App.Env == "development" {
		// Local runs may identify the caller with X-Tenant-ID and X-User-ID
		tenantCfg.HeaderFallback = true
		apiMiddleware = nil
		log.Warn("JWT authentication disabled, tenant headers accepted")
	}
	apiMiddleware = append(apiMiddleware,
		middleware.Tenant(tenantCfg),
		middleware.SpanEnricher(),
		middleware.SpanErrorMarker(),
		middleware.Profiling(middleware.ProfilingConfig{Enabled: profiler.IsEnabled(), SkipPaths: tenantCfg.SkipPaths}),
	)

	r := router.NewRouter(engine, router.WithAPIMiddleware(apiMiddleware...))
	handler.RegisterFeeRoutes(r, handler.NewFeeHandler(feeEngine))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	_ = eventBus.Stop(shutdownCtx)
	if err := idempotencyStore.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}
	if businessMetrics != nil {
		businessMetrics.Stop()
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, logProvider)

	log.Info("Server exited gracefully")
}

func feePolicy(cfg config.FeeConfig) feeapp.Policy {
	p := feeapp.DefaultPolicy()
	p.AllowOverpayment = cfg.AllowOverpayment
	p.ReversalWindow = cfg.ReversalWindow
	p.MaxConflictRetries = cfg.MaxConflictRetries
	p.AdvanceOrder = feeapp.AdvanceOrder(cfg.AdvanceOrder)
	return p
}

// feePrecision converts the validated precision settings
func feePrecision(cfg config.FeeConfig) feeapp.StaticPrecision {
	perTenant := make(map[uuid.UUID]valueobject.Precision, len(cfg.TenantPrecision))
	for tenantID, places := range cfg.TenantPrecision {
		perTenant[tenantID] = valueobject.Precision(places)
	}
	return feeapp.StaticPrecision{
		Default:   valueobject.Precision(cfg.DecimalPrecision),
		PerTenant: perTenant,
	}
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down telemetry", zap.String("provider", fmt.Sprintf("%T", p)), zap.Error(err))
		}
	}
}
