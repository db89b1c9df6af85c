package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linelogic/fraudgate/internal/gate"
	"github.com/linelogic/fraudgate/pkg/common"
	"github.com/linelogic/fraudgate/pkg/config"
	"github.com/linelogic/fraudgate/pkg/database"
	"github.com/linelogic/fraudgate/pkg/logger"
	"github.com/linelogic/fraudgate/pkg/middleware"
	"github.com/linelogic/fraudgate/pkg/ratelimit"
	"github.com/linelogic/fraudgate/pkg/redis"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load("fraudgate")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Connect to PostgreSQL
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	logger.Info("Connected to Redis")

	// Wire the gate components. The repository backs every procedure
	// interface; each component carries its own call timeout.
	repo := gate.NewRepository(pool)
	timeout := cfg.Fraud.CallTimeout()

	service := gate.NewService(
		gate.NewNormalizer(repo, timeout),
		gate.NewBanRegistry(repo, timeout),
		gate.NewScorer(repo, timeout),
		gate.NewWindow(repo, timeout),
		gate.NewAttemptLogger(repo, timeout),
		cfg.Fraud,
		cfg.RateLimit,
	)
	handler := gate.NewHandler(service)

	// Edge window limiter shares the Redis connection.
	limiter := ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))
	router.Use(middleware.SecurityHeaders())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.AdminHeader, middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	// Edge gate runs in front of the gated paths: banned IPs and sources
	// over the edge window never reach the handlers.
	router.Use(middleware.EdgeGate(repo, limiter, cfg.RateLimit.EdgePathPrefixes))

	// Health check and metrics (no auth required)
	router.GET("/healthz", common.HealthCheck(cfg.Server.ServiceName, version, map[string]func() error{
		"postgres": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		signup := api.Group("/signup")
		{
			signup.POST("/evaluate", handler.EvaluateSignup)
			signup.POST("/outcome", handler.SignupOutcome)
		}

		admin := api.Group("/admin", middleware.AdminOnly(&cfg.Admin))
		{
			admin.GET("/bans", handler.ListBans)
			admin.POST("/bans", handler.CreateBan)
			admin.DELETE("/bans/:ip", handler.DeleteBan)
			admin.GET("/fraud-attempts", handler.ListFraudAttempts)
			admin.GET("/stats", handler.Stats)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Fraud gate starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
