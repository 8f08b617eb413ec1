package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/handlers"
	"github.com/bloglite/bloglite/internal/middleware"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/internal/services"
	"github.com/bloglite/bloglite/internal/workers"
	"github.com/bloglite/bloglite/pkg/cache"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.NewLoggerWithLevel(cfg.Log.Level)
	logger.Info("Starting bloglite API server...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "redis":
		redisClient := cache.NewRedisClient(
			cfg.Redis.Addr(),
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Redis.MinIdleConns,
		)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		backend = redisClient
	default:
		memory := cache.NewMemoryCache()
		memory.StartJanitor(ctx, time.Minute)
		backend = memory
	}

	hostname, _ := os.Hostname()
	origin := hostname + "-" + uuid.NewString()[:8]

	aggregateCache := services.NewAggregateCache(backend, cfg.Cache.Prefix, cfg.Cache.TTL, logger)

	var producer queue.Publisher = queue.NopPublisher{}
	var feedEventsConsumer *queue.KafkaConsumer
	if cfg.Kafka.Enabled {
		feedEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents)
		defer feedEventsProducer.Close()
		producer = feedEventsProducer

		// every instance needs every invalidation, so each gets its own group
		feedEventsConsumer = queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents, "bloglite-invalidation-"+origin, logger)
		defer feedEventsConsumer.Close()
	}
	events := services.NewEventPublisher(producer, origin, logger)

	// the worker skips events stamped by this instance's own publisher
	var invalidationWorker *workers.InvalidationWorker
	if feedEventsConsumer != nil {
		invalidationWorker = workers.NewInvalidationWorker(aggregateCache, feedEventsConsumer, events.Origin(), logger)
	}

	store := repository.NewStore(db.DB)

	graphService := services.NewGraphService(store, aggregateCache, events, logger)
	engagementService := services.NewEngagementService(store, aggregateCache, events, logger)
	feedService := services.NewFeedService(store, graphService, engagementService, aggregateCache, logger)
	postService := services.NewPostService(store, feedService, aggregateCache, events, logger)
	userService := services.NewUserService(store, feedService, aggregateCache, events, logger)

	if invalidationWorker != nil {
		go func() {
			if err := invalidationWorker.Start(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Invalidation worker stopped with error")
			}
		}()
	}

	userHandler := handlers.NewUserHandler(userService, graphService, cfg.JWT.Secret, cfg.JWT.ExpireTime, logger)
	feedHandler := handlers.NewFeedHandler(feedService, postService, engagementService, logger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst).Middleware())

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy", "time": time.Now().Unix()}
		if err := db.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = err.Error()
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(router, userHandler, feedHandler, &middleware.JWTConfig{Secret: cfg.JWT.Secret})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	cancel()

	logger.Info("Server exited")
}

func init() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll("configs", 0755); err != nil {
			log.Printf("Failed to create configs directory: %v", err)
			return
		}
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
