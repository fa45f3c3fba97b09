package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"drone_chat/internal/config"
	"drone_chat/internal/handler"
	"drone_chat/internal/jobs"
	"drone_chat/internal/middleware"
	"drone_chat/internal/relay"
	"drone_chat/internal/repository"
	"drone_chat/internal/service"
	"drone_chat/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	if err := repository.Migrate(context.Background(), dbPool, appLogger); err != nil {
		appLogger.Fatal("Failed to apply schema", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, cfg.Chat, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	if err := services.Auth.EnsureBootstrapAdmin(context.Background(), cfg.Admin); err != nil {
		appLogger.Fatal("Failed to bootstrap admin", "error", err)
	}

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go func() {
		if err := jobs.NewCrontab(services.Auth, cfg.Admin, appLogger).Run(jobsCtx); err != nil {
			appLogger.Error("Maintenance jobs stopped", "error", err)
		}
	}()

	chatRelay := relay.New(repos.Chat, appLogger, relay.Options{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		Notifier:         services.Notify,
	})

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, chatRelay, cfg, appLogger)
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Chat.ReadTimeout,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "chat_store", cfg.Chat.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	stopJobs()
	chatRelay.Shutdown()
	handlers.WebSocket.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Chat.AllowedOrigins))
	router.Use(middleware.RequestLogger(log.With("component", "http")))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", rateLimitMiddleware.Limit("login"), handlers.Auth.Login)
			auth.POST("/refresh", handlers.Auth.RefreshToken)
			auth.POST("/logout", handlers.Auth.Logout)
		}

		v1.GET("/chat/status", handlers.Health.ChatStatus)

		admin := v1.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.GET("/conversations", handlers.Chat.ListConversations)
			admin.GET("/conversations/:id/messages", handlers.Chat.GetMessages)
			admin.GET("/export/conversations.xlsx", handlers.Chat.ExportConversations)
		}
	}

	router.GET("/ws/chat", rateLimitMiddleware.Limit("ws"), handlers.WebSocket.HandleChat)

	return router
}
