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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/skillmatch/auth-service/handlers"
	"github.com/skillmatch/auth-service/internal/auth"
	"github.com/skillmatch/auth-service/internal/config"
	"github.com/skillmatch/auth-service/internal/database"
	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/internal/storage"
	"github.com/skillmatch/auth-service/internal/tokens"
	"github.com/skillmatch/auth-service/internal/users"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/metrics"
	"github.com/skillmatch/auth-service/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v jwt_secret_set=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.JWT.Secret != "")

	ctx := context.Background()

	// MongoDB is required; users and sessions live there
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB, 5, time.Second)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()
	db := client.Database(cfg.MongoDB.Database)

	usersSvc := users.NewService(users.NewMongoRepository(db.Collection("users")), cfg.Security.BcryptCost)
	sessionsSvc := sessions.NewService(sessions.NewMongoRepository(db.Collection("sessions")), cfg.Sessions)
	codec := tokens.NewCodec(cfg.JWT)
	authSvc := auth.NewService(codec, usersSvc, sessionsSvc)

	// Redis is optional: revocation cache + distributed rate limiting
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis unavailable (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessionsSvc.SetRevocationCache(sessions.NewRevocationCache(redisClient, ""))
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// MinIO is optional: file routes are skipped when it is not configured
	var objectStore *storage.ObjectStore
	if minioCfg := storage.LoadMinIOConfig(); minioCfg.Endpoint != "" {
		objectStore, err = storage.NewObjectStore(minioCfg)
		if err != nil {
			logger.Warnf("object storage unavailable: %v", err)
			objectStore = nil
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(corsMiddleware())

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"mongo": true, "redis": redisClient != nil, "storage": objectStore != nil}
		if err := client.Ping(c.Request.Context(), nil); err != nil {
			deps["mongo"] = false
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	authRequired := middleware.AuthMiddleware(codec, sessionsSvc)
	api := r.Group("/api/v1")
	handlers.NewAuthHandler(authSvc, usersSvc).Register(api, authRequired)
	handlers.NewSessionsHandler(sessionsSvc).Register(api, authRequired)
	if objectStore != nil {
		handlers.NewFilesHandler(objectStore).Register(api, authRequired)
	}
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// background retention purge
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	if cfg.Sessions.CleanupInterval > 0 {
		go runCleanupLoop(cleanupCtx, sessionsSvc, cfg.Sessions.CleanupInterval)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("starting auth service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
}

// corsMiddleware is intentionally permissive for dev; production deployments
// sit behind a gateway with a stricter policy.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func runCleanupLoop(ctx context.Context, svc *sessions.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Cleanup(ctx); err != nil {
				logger.Errorf("background session cleanup failed: %v", err)
			}
		}
	}
}
