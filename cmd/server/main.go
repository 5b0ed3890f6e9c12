package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	stockapp "github.com/erp/stockflow/internal/application/stock"
	"github.com/erp/stockflow/internal/infrastructure/backend"
	"github.com/erp/stockflow/internal/infrastructure/cache"
	"github.com/erp/stockflow/internal/infrastructure/config"
	"github.com/erp/stockflow/internal/infrastructure/logger"
	"github.com/erp/stockflow/internal/infrastructure/telemetry"
	"github.com/erp/stockflow/internal/interfaces/http/handler"
	"github.com/erp/stockflow/internal/interfaces/http/middleware"
	"github.com/erp/stockflow/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

//	@title			Stockflow API
//	@version		1.0
//	@description	Transaction drafts, availability and submission for pickups and outward stock
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Forwarded to the stock backend as is. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stockflow",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("draft_store", cfg.Draft.Store),
	)

	metrics := telemetry.NewStockMetrics(nil)

	// Backend transport
	retry := backend.DefaultRetryConfig()
	retry.MaxRetries = cfg.Backend.MaxRetries
	retry.RetryDelay = cfg.Backend.RetryDelay
	retry.MaxDelay = cfg.Backend.MaxRetryDelay
	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		RateLimitQPS:   cfg.Backend.RateLimitQPS,
		RateLimitBurst: cfg.Backend.RateLimitBurst,
		UserAgent:      cfg.App.Name + "/" + version,
	}, &retry, log.Named("backend"))
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}
	gateway := backend.NewGateway(client)

	// Draft storage
	store, err := cache.NewDraftStoreFactory(cfg.Draft, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create draft store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close draft store", zap.Error(err))
		}
	}()

	// Application services
	draftService := stockapp.NewDraftService(store, gateway, metrics, log.Named("drafts"), stockapp.DraftServiceConfig{
		AvailabilityConcurrency: cfg.Backend.AvailabilityConcurrency,
	})
	availabilityService := stockapp.NewAvailabilityService(gateway, metrics, log.Named("availability"))

	middleware.SetupValidator()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request ID first so recovery and request logs carry it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.Metrics.Enabled {
		engine.Use(middleware.HTTPMetrics(metrics))
	}

	draftHandler := handler.NewDraftHandler(draftService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	draftRoutes := router.NewDomainGroup("drafts", "/drafts").Use(middleware.ForwardAuthToken())
	draftRoutes.POST("", draftHandler.Create)
	draftRoutes.GET("/:id", draftHandler.Get)
	draftRoutes.DELETE("/:id", draftHandler.Delete)
	draftRoutes.PUT("/:id/references", draftHandler.SelectReferences)
	draftRoutes.POST("/:id/validate", draftHandler.Validate)
	draftRoutes.POST("/:id/submit", draftHandler.Submit)

	lineRoutes := draftRoutes.Group("lines", "/:id/lines")
	lineRoutes.POST("", draftHandler.AddLine)
	lineRoutes.DELETE("/:index", draftHandler.RemoveLine)
	lineRoutes.PUT("/:index/quantity", draftHandler.SetQuantity)

	availabilityRoutes := router.NewDomainGroup("availability", "/availability").Use(middleware.ForwardAuthToken())
	availabilityRoutes.POST("/compute", availabilityHandler.Compute)
	availabilityRoutes.GET("/products/:product_id", availabilityHandler.Product)

	summaryRoutes := router.NewDomainGroup("stock-summary", "/stock-summary").Use(middleware.ForwardAuthToken())
	summaryRoutes.GET("", availabilityHandler.StockSummary)

	r.Register(draftRoutes).
		Register(availabilityRoutes).
		Register(summaryRoutes)
	r.Setup()

	var checks []handler.HealthCheck
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, handler.HealthCheck{Name: "draft_store", Check: pinger.Ping})
	}
	healthHandler := handler.NewHealthHandler(cfg.App.Name, version, checks...)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/api/v1/health", healthHandler.Health)

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
