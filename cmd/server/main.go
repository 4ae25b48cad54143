package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cartalks/backend/config"
	"github.com/cartalks/backend/internal/auth"
	"github.com/cartalks/backend/internal/cache"
	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/handlers"
	"github.com/cartalks/backend/internal/logger"
	"github.com/cartalks/backend/internal/messaging"
	"github.com/cartalks/backend/internal/metrics"
	"github.com/cartalks/backend/internal/middleware"
	"github.com/cartalks/backend/internal/notify"
	"github.com/cartalks/backend/internal/repository"
	"github.com/cartalks/backend/internal/safety"
	"github.com/cartalks/backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	zl.Info("running database migrations")
	if err := database.RunMigrations(db.DB); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zl.Warn("running without Redis; rate limits are per process", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	safetyRepo := repository.NewSafetyRepository(db)

	// Push notifications
	dispatcher := startNotifications(ctx, cfg, redis, userRepo, zl)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	gate := safety.NewGate(safetyRepo)
	messenger := messaging.NewService(msgRepo, convRepo, gate, dispatcher, zl.Named("messaging")).
		WithObserver(collector)

	blobs, err := storage.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL, cfg.Uploads.MaxBytes)
	if err != nil {
		zl.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userRepo, jwtService)
	userHandler := handlers.NewUserHandler(userRepo)
	convHandler := handlers.NewConversationHandler(messenger)
	msgHandler := handlers.NewMessageHandler(messenger)
	safetyHandler := handlers.NewSafetyHandler(gate)
	uploadHandler := handlers.NewUploadHandler(blobs)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitMessagesPerSec)
	if redis != nil {
		rateLimiter.WithShared(redis, zl)
	}
	rateLimiter.Cleanup(ctx)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.MaxMultipartMemory = cfg.Uploads.MaxBytes

	// Middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(collector.Middleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))
	router.Static("/uploads", blobs.Dir())

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		// User routes
		api.GET("/me", authHandler.GetMe)
		api.PUT("/me/push-token", authHandler.UpdatePushToken)
		api.GET("/users", middleware.RateLimitMiddleware(rateLimiter, "search"), userHandler.SearchUsers)

		// Conversation routes
		api.GET("/conversations", convHandler.GetConversations)
		api.GET("/conversations/:id", convHandler.GetConversation)
		api.POST("/conversations/:id/rebuild", convHandler.RebuildConversation)

		// Message routes
		api.GET("/messages", msgHandler.GetMessages)
		api.POST("/messages", middleware.RateLimitMiddleware(rateLimiter, "send"), msgHandler.SendMessage)
		api.PUT("/messages", msgHandler.MarkAsRead)

		// Safety routes
		api.GET("/safety", safetyHandler.Get)
		api.POST("/safety", safetyHandler.Post)

		api.POST("/upload", middleware.RateLimitMiddleware(rateLimiter, "upload"), uploadHandler.Upload)
	}

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("starting CarTalks server", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	messenger.Wait()
}

// startNotifications picks the push backend and, for the queued ones, starts
// the worker that delivers to devices.
func startNotifications(ctx context.Context, cfg *config.Config, redis *cache.RedisClient, users notify.TokenResolver, zl *zap.Logger) notify.Dispatcher {
	wlog := zl.Named("push")
	worker := notify.NewWorker(users, notify.NewExpoSender(cfg.Notify.ExpoURL), wlog, cfg.Notify.CollapseWindow)

	switch cfg.Notify.Backend {
	case config.NotifyRedis:
		if redis == nil {
			zl.Warn("NOTIFY_BACKEND=redis but Redis is unavailable; logging notifications instead")
			return notify.NewLogDispatcher(wlog)
		}
		d := notify.NewRedisDispatcher(redis)
		go worker.Run(ctx, d.Subscribe(ctx, wlog))
		return d

	case config.NotifyAMQP:
		d, err := notify.NewAMQPDispatcher(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue)
		if err != nil {
			zl.Warn("RabbitMQ unavailable; logging notifications instead", zap.Error(err))
			return notify.NewLogDispatcher(wlog)
		}
		in, err := d.Consume(ctx, wlog)
		if err != nil {
			zl.Warn("failed to consume push queue", zap.Error(err))
		} else {
			go worker.Run(ctx, in)
		}
		go func() {
			<-ctx.Done()
			d.Close()
		}()
		return d

	default:
		return notify.NewLogDispatcher(wlog)
	}
}
