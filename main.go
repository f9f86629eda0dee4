package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kentsikayet/portal/handlers"
	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/config"
	"github.com/kentsikayet/portal/internal/dashboard"
	"github.com/kentsikayet/portal/internal/database"
	"github.com/kentsikayet/portal/internal/notices"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/internal/storage"
	"github.com/kentsikayet/portal/pkg/logger"
	"github.com/kentsikayet/portal/pkg/metrics"
	"github.com/kentsikayet/portal/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: api=%s mongo=%v redis=%v minio=%v", cfg.API.BaseURL, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = rc.Close()
		} else {
			redisClient = rc
			defer rc.Close()
			logger.Infof("connected to Redis: %s", addr)
		}
	}

	var mongoClient *mongo.Client
	var repo sessions.Repository
	switch {
	case redisClient != nil:
		repo = sessions.NewRedisRepository(redisClient, cfg.Session.Prefix)
		logger.Infof("using Redis for session storage")
	case cfg.MongoDB.URI != "":
		client, db, err := database.Connect(ctx, cfg.MongoDB)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
			break
		}
		mongoClient = client
		repo = sessions.NewMongoRepository(db.Collection("sessions"))
		logger.Infof("using MongoDB for session storage")
	}
	if repo == nil {
		logger.Warnf("no durable session storage configured; sessions are lost on restart")
		repo = sessions.NewMemoryRepository()
	}
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}

	var queue notices.Queue = notices.NewMemoryQueue(cfg.Session.TTL)
	if redisClient != nil {
		queue = notices.NewRedisQueue(redisClient, cfg.Session.TTL)
	}

	store := sessions.NewStore(repo, sessions.WithTTL(cfg.Session.TTL), sessions.WithNotifier(queue))
	defer store.Close()
	if _, err := store.Resume(ctx); err != nil {
		logger.Errorf("resume sessions: %v", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	registry := dashboard.NewRegistry(client, store, cfg.Dashboard.PollInterval, cfg.Map.HitTolerance)
	store.OnLogout(func(_ context.Context, sid string, _ sessions.Reason) { registry.Drop(sid) })
	registry.Start()
	defer registry.Stop()

	var photos storage.PhotoStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, keeping photos in memory: %v", err)
		} else {
			photos = ms
		}
	}
	if photos == nil {
		photos = storage.NewMemoryStore(handlers.PhotosPath)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Rate limiting applies to the credential endpoints only (per-user when
	// authenticated, otherwise per-IP).
	var credentials []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			credentials = append(credentials, middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			credentials = append(credentials, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// ready only when the configured stores answer
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{"sessions": true}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			ready = ready && deps["redis"]
		}
		if cfg.MongoDB.URI != "" && redisClient == nil {
			deps["mongo"] = mongoClient != nil && mongoClient.Ping(c.Request.Context(), nil) == nil
			ready = ready && deps["mongo"]
		}
		status, word := http.StatusOK, "ready"
		if !ready {
			status, word = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": word, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Mount(r, handlers.Deps{
		Config:      cfg,
		Client:      client,
		Store:       store,
		Notices:     queue,
		Registry:    registry,
		Photos:      photos,
		Credentials: credentials,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting portal on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
