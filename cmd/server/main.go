package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krafink/internal/config"
	"krafink/internal/db"
	"krafink/internal/events"
	"krafink/internal/logger"
	"krafink/internal/realtime"
	"krafink/internal/router"
	"krafink/internal/security"
	"krafink/internal/seed"
	"krafink/internal/services"
	"krafink/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()

	ctx := context.Background()

	tp, err := telemetry.InitTracer(ctx, cfg.OtelEndpoint, cfg.Env)
	if err != nil {
		logger.Error("Failed to init tracer", zap.Error(err))
	}

	// Initialize Database
	database, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// 在线状态：配置了 Redis 时跨实例共享
	var presence realtime.Presence = realtime.NewMemoryPresence()
	var redisPresence *realtime.RedisPresence
	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		redisPresence = realtime.NewRedisPresence(rdb, instanceID(), cfg.PresenceTTL)
		presenceCtx, stopPresence := context.WithCancel(ctx)
		defer stopPresence()
		go redisPresence.Run(presenceCtx)
		presence = redisPresence
		logger.Info("Redis presence enabled", zap.Duration("ttl", cfg.PresenceTTL))
	}

	var publisher events.Publisher = events.Nop()
	if cfg.NatsURL != "" {
		p, err := events.NewNatsPublisher(cfg.NatsURL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		publisher = p
		logger.Info("NATS JetStream connected")
	}

	hub := realtime.NewHub(presence)

	svc, err := services.New(services.Options{
		DB:               database,
		Hub:              hub,
		Online:           hub,
		Events:           publisher,
		Tokens:           security.NewTokenProvider(cfg.JWTSecret, cfg.JWTTTL),
		UploadDir:        cfg.UploadDir,
		UploadMaxBytes:   cfg.UploadMaxBytes,
		LoginMaxAttempts: cfg.LoginMaxAttempts,
		LoginWindow:      cfg.LoginWindow,
	})
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	if cfg.SeedDemo {
		if err := seed.Demo(ctx, database, svc); err != nil {
			logger.Error("Failed to seed demo data", zap.Error(err))
		}
	}

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.New(svc, hub, router.Options{CORSOrigins: cfg.CORSOrigins})

	var h http.Handler = r
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: cfg.ExplicitOrigins(),
	}).Handler(h)
	if tp != nil {
		h = otelhttp.NewHandler(h, "krafink", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
		}))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Krafink server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.Close()
	if redisPresence != nil {
		if err := redisPresence.Close(shutdownCtx); err != nil {
			logger.Warn("Failed to clear presence", zap.Error(err))
		}
	}
	publisher.Close()
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// instanceID 区分多实例部署中的进程，用于在线状态记录
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "krafink"
	}
	return host + "-" + uuid.NewString()[:8]
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, fmt.Errorf("redis tracing: %w", err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
