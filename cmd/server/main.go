package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridepool/internal/config"
	"ridepool/internal/handlers"
	"ridepool/internal/middleware"
	"ridepool/internal/realtime"
	mongorepo "ridepool/internal/repositories/mongodb"
	"ridepool/internal/services"
	"ridepool/pkg/cache"
	"ridepool/pkg/database"
	"ridepool/pkg/logger"
	"ridepool/pkg/ws"
	"ridepool/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mongodb, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongodb.Close()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongodb.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		appLogger.WithError(err).Fatal("Failed to ensure MongoDB indexes")
	}
	cancelIndex()

	// Redis is an accelerator, not a dependency. Run without it if it is down.
	var rideCache services.CacheService
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, ride cache disabled")
	} else {
		rideCache = redisCache
		defer redisCache.Close()
	}

	// Repositories
	userRepo := mongorepo.NewUserRepository(mongodb.Database)
	rideRepo := mongorepo.NewRideRepository(mongodb.Database, rideCache)
	messageRepo := mongorepo.NewChatMessageRepository(mongodb.Database)

	// Services
	authService := services.NewAuthService(userRepo, cfg.Security.JWTSecret)
	chatService := services.NewChatService(messageRepo, appLogger)

	// Real-time core
	registry := realtime.NewRegistry()
	guard := realtime.NewGuard(rideRepo)
	engine := realtime.NewEngine(registry, guard, chatService, appLogger)

	wsHandler := ws.NewHandler(engine, authService, cfg.WebSocket, appLogger)
	rideHandler := handlers.NewRideHandler(rideRepo, chatService, guard, engine, appLogger)
	presenceHandler := handlers.NewPresenceHandler(registry)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	if len(cfg.Security.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
			appLogger.WithError(err).Fatal("Invalid trusted proxies")
		}
	}

	v1 := router.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, rideHandler, cfg.Security.JWTSecret)
		routes.SetupPresenceRoutes(v1, presenceHandler, cfg.Security.JWTSecret)
	}

	router.GET(cfg.WebSocket.Path, wsHandler.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.App.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}

	appLogger.Info("Server stopped")
}
