package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatlink-backend/internal/config"
	"chatlink-backend/internal/database"
	callHandler "chatlink-backend/internal/handler/http/call"
	chatHandler "chatlink-backend/internal/handler/http/chat"
	wsHandler "chatlink-backend/internal/handler/ws"
	"chatlink-backend/internal/middleware"
	"chatlink-backend/internal/repository/cassandra"
	"chatlink-backend/internal/repository/cockroach"
	redisRepo "chatlink-backend/internal/repository/redis"
	callService "chatlink-backend/internal/service/call"
	chatService "chatlink-backend/internal/service/chat"
	"chatlink-backend/internal/service/presence"
	signalService "chatlink-backend/internal/service/signal"
	storageService "chatlink-backend/internal/service/storage"
	"chatlink-backend/internal/service/typing"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/jwt"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

func main() {
	cfg := config.Load()

	logger.InitDefault()
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	jwtManager := jwt.NewJWTManager(cfg.JWTSecret, constants.AccessTokenExpiry)

	// Cassandra (messages)
	cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    cfg.CassandraHosts,
		Keyspace: cfg.CassandraKeyspace,
		Username: cfg.CassandraUser,
		Password: cfg.CassandraPassword,
	})
	if err != nil {
		logger.Fatal("failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("connected to Cassandra")

	// Redis (presence mirror)
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("connected to Redis")

	go redisDB.StartHealthCheck(context.Background(), 10*time.Second)

	// CockroachDB (users, call history)
	cockroachDB, err := database.NewCockroachDB(context.Background(), &database.CockroachConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Fatal("failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()
	logger.Info("connected to CockroachDB")

	// MinIO (message media)
	storageSvc, err := storageService.NewService(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.MinIOPublicURL,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		logger.Fatal("failed to set up object storage", zap.Error(err))
	}
	logger.Info("connected to MinIO")

	// Repositories
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	callRepo := cockroach.NewCallRepository(cockroachDB.Pool)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)

	// Coordination services
	registry := presence.NewRegistry(presenceRepo)
	typingCoordinator := typing.NewCoordinator(registry)
	chatSvc := chatService.NewService(messageRepo, storageSvc, userRepo, registry)
	callManager := callService.NewManager(callRepo, registry)
	relay := signalService.NewRelay(registry, callManager)

	// Metrics
	appMetrics := metrics.NewMetrics("realtime-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// Handlers
	wsHdlr := wsHandler.NewHandler(registry, typingCoordinator, chatSvc, callManager, relay, userRepo, appMetrics)
	chatHdlr := chatHandler.NewHandler(chatSvc)
	callHdlr := callHandler.NewHandler(callRepo)

	// Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "realtime-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		v1.POST("/messages/:id", chatHdlr.SendMessage)
		v1.GET("/messages/:id", chatHdlr.GetMessages)
		v1.GET("/users/sidebar", chatHdlr.GetSidebar)
		v1.GET("/calls/:id", callHdlr.GetHistory)

		// WebSocket endpoint (presence, typing, delivery, call signaling)
		v1.GET("/ws", wsHdlr.ServeWS)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		logger.Info("realtime service starting", zap.Int("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
