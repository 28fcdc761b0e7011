package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/condo/backend/internal/application/billing"
	"github.com/condo/backend/internal/infrastructure/config"
	"github.com/condo/backend/internal/infrastructure/logger"
	"github.com/condo/backend/internal/infrastructure/persistence"
	"github.com/condo/backend/internal/infrastructure/scheduler"
	"github.com/condo/backend/internal/infrastructure/telemetry"
	"github.com/condo/backend/internal/interfaces/http/handler"
	"github.com/condo/backend/internal/interfaces/http/middleware"
	"github.com/condo/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Condominium Billing API
//	@version		1.0
//	@description	Quota formula evaluation and payment reconciliation backend for condominium administration.

//	@contact.name	API Support
//	@contact.url	https://github.com/condo/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

// paymentReportLimit caps payment reports per reporter per rate limit window.
const paymentReportLimit = 10

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Condominium Billing Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	formulaRepo := persistence.NewGormQuotaFormulaRepository(db.DB)
	quotaRepo := persistence.NewGormQuotaRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	pendingAllocationRepo := persistence.NewGormPendingAllocationRepository(db.DB)
	unitRepo := persistence.NewGormUnitRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Initialize application services
	formulaService := billingapp.NewFormulaService(formulaRepo)
	chargeService := billingapp.NewChargeService(formulaRepo, unitRepo)
	paymentService := billingapp.NewPaymentService(paymentRepo, unitRepo, txManager)
	quotaService := billingapp.NewQuotaService(quotaRepo, formulaRepo, pendingAllocationRepo, unitRepo, txManager)

	// Start the overdue sweep scheduler (if enabled)
	sweeperConfig := scheduler.DefaultOverdueSweeperConfig()
	sweeperConfig.Enabled = cfg.Billing.OverdueSweep
	sweeperConfig.Interval = cfg.Billing.SweepInterval
	overdueSweeper := scheduler.NewOverdueSweeper(quotaService, log, sweeperConfig)
	if err := overdueSweeper.Start(context.Background()); err != nil {
		log.Fatal("Failed to start overdue sweep scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := overdueSweeper.Stop(stopCtx); err != nil {
			log.Error("Error stopping overdue sweep scheduler", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	formulaHandler := handler.NewFormulaHandler(formulaService, chargeService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	quotaHandler := handler.NewQuotaHandler(quotaService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - OpenTelemetry spans (if enabled)
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}

	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Billing domain (formulas, quotas, payments)
	billingRoutes := router.NewDomainGroup("billing", "/billing")

	// Formula routes
	billingRoutes.POST("/formulas", formulaHandler.Create)
	billingRoutes.GET("/formulas", formulaHandler.List)
	billingRoutes.GET("/formulas/:id", formulaHandler.GetByID)
	billingRoutes.PUT("/formulas/:id", formulaHandler.Update)
	billingRoutes.POST("/formulas/:id/deactivate", formulaHandler.Deactivate)
	billingRoutes.POST("/formulas/:id/calculate", formulaHandler.Calculate)

	// Quota routes
	billingRoutes.POST("/quotas/generate", quotaHandler.Generate)
	billingRoutes.POST("/quotas/mark-overdue", quotaHandler.MarkOverdue)
	billingRoutes.GET("/quotas/:id", quotaHandler.GetByID)
	billingRoutes.POST("/quotas/:id/interest", quotaHandler.AccrueInterest)
	billingRoutes.GET("/units/:unit_id/quotas", quotaHandler.ListByUnit)
	billingRoutes.GET("/units/:unit_id/pending-allocations", quotaHandler.ListPendingAllocations)
	billingRoutes.POST("/pending-allocations/:id/resolve", quotaHandler.ResolvePendingAllocation)

	// Payment routes. Reporting gets its own stricter limiter so a
	// double-submitting resident cannot flood pending verifications.
	reportHandlers := []gin.HandlerFunc{paymentHandler.Report}
	if cfg.HTTP.RateLimitEnabled {
		reportLimiter := middleware.NewRateLimiter(paymentReportLimit, cfg.HTTP.RateLimitWindow)
		reportHandlers = append([]gin.HandlerFunc{middleware.PaymentReportRateLimit(reportLimiter)}, reportHandlers...)
	}
	billingRoutes.POST("/payments", reportHandlers...)
	billingRoutes.GET("/payments", paymentHandler.List)
	billingRoutes.GET("/payments/:id", paymentHandler.GetByID)
	billingRoutes.POST("/payments/:id/verify", paymentHandler.Verify)
	billingRoutes.POST("/payments/:id/reject", paymentHandler.Reject)
	billingRoutes.POST("/payments/:id/refund", paymentHandler.Refund)

	// System routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(billingRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
