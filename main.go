package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-sync-service/controllers"
	"price-sync-service/progress"
	"price-sync-service/providers"
	"price-sync-service/repository"
	"price-sync-service/routes"
	"price-sync-service/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Root context for background runs; canceled on shutdown so an in-flight
	// poll loop stops instead of outliving the server.
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Run records are optional: without Redis the sync itself still works,
	// only the history endpoints answer 503.
	var redisClient *redis.Client
	var runRepo repository.SyncRunRepository
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("Invalid REDIS_URL, run records disabled", zap.Error(err))
		} else {
			redisClient = redis.NewClient(opts)
			runRepo = repository.NewRedisSyncRunRepository(redisClient)

			pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				logger.Warn("Redis unreachable, run records will fail until it recovers", zap.Error(err))
			}
			cancel()
		}
	}

	// DI chain
	hub := progress.NewHub(cfg.LogBufferCapacity)
	catalog := providers.NewShopifyClient(cfg.ShopDomain, cfg.APIVersion, cfg.APIToken)
	priceRepo := repository.NewFilePriceTableRepository(cfg.PriceTableFile)

	engine := services.NewSyncService(catalog, priceRepo, hub, services.SyncOptions{
		UpdateTag:          cfg.UpdateTag,
		CategoryPrecedence: cfg.CategoryPrecedence,
		MetafieldNamespace: cfg.MetafieldNamespace,
		MetafieldKey:       cfg.MetafieldKey,
		PollInterval:       cfg.PollInterval,
	}, logger)
	runner := services.NewRunner(rootCtx, engine, hub, runRepo, cfg.SyncTimeout, logger)

	priceController := controllers.NewPriceTableController(priceRepo, logger)
	syncController := controllers.NewSyncController(runner, hub, runRepo, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	// Global request-logging middleware
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
		)
	})

	// 30-second request timeout; the live stream holds its connection open
	// and is exempt.
	r.Use(func(c *gin.Context) {
		if c.FullPath() == "/sync/stream" {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "price-sync-service"})
	})

	routes.RegisterPriceRoutes(r, priceController)
	routes.RegisterSyncRoutes(r, syncController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Price sync service started",
		zap.String("port", cfg.Port),
		zap.String("shop", cfg.ShopDomain),
		zap.String("update_tag", cfg.UpdateTag),
	)
	<-quit
	logger.Info("Shutting down price sync service...")

	// Abort any in-flight sync run before closing the server.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if redisClient != nil {
		redisClient.Close() //nolint:errcheck
	}
	logger.Info("Server exited cleanly")
}
