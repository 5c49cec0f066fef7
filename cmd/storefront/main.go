package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mobix/storefront/internal/cart"
	carthttp "github.com/mobix/storefront/internal/cart/delivery/http"
	"github.com/mobix/storefront/internal/catalog"
	"github.com/mobix/storefront/internal/catalog/client"
	cataloghttp "github.com/mobix/storefront/internal/catalog/delivery/http"
	"github.com/mobix/storefront/internal/config"
	"github.com/mobix/storefront/internal/middleware"
	"github.com/mobix/storefront/internal/storage"
	"github.com/mobix/storefront/kafka"
	"github.com/mobix/storefront/pkg/database"
	"github.com/mobix/storefront/pkg/logger"
	"github.com/mobix/storefront/pkg/tracing"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("environment", cfg.Environment).
		Msg("Starting storefront")

	// Tracing
	tp, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Durable storage: Redis preferred, Postgres next, in-memory last.
	// Persistence is best-effort throughout, so a degraded backend only
	// costs cart durability across restarts.
	backend, redisClient := pickBackend(ctx, cfg)
	store := storage.NewStore(backend)

	// Kafka (optional)
	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = kafka.NewPublisher(cfg.KafkaBrokers)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Kafka unavailable, cart events disabled")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Cart manager
	managerOpts := []cart.Option{cart.WithTTL(cfg.CartTTL)}
	if publisher != nil {
		managerOpts = append(managerOpts, cart.WithPublisher(publisher))
	}
	manager := cart.NewManager(ctx, store, managerOpts...)
	defer manager.Close()

	// Session count consumer feeds reconciliation
	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName, func(ctx context.Context, event kafka.SessionCountEvent) error {
			manager.ReconcileServerCount(ctx, event.Count)
			return nil
		})
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Kafka consumer unavailable, session counts arrive over HTTP only")
		} else {
			consumer.Start(ctx)
			defer consumer.Close()
		}
	}

	// Catalog
	productClient := client.New(cfg.ProductAPIURL)
	catalogService := catalog.NewService(productClient)
	go catalogService.Load(ctx)

	// HTTP surface
	app := fiber.New(fiber.Config{
		AppName:      "Storefront",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())
	app.Use(cors.New())

	// Catalog responses are cacheable, cart mutations are throttled. Both
	// degrade to pass-through when Redis is down.
	app.Use("/api/products", middleware.Cache(redisClient, middleware.DefaultCacheConfig()))
	app.Use("/api/cart", middleware.NewRateLimiter(redisClient, 100, time.Minute).Middleware())

	cartHandler := carthttp.NewCartHandler(manager, catalogService, productClient, prometheus.DefaultRegisterer)
	cartHandler.RegisterRoutes(app)
	go cartHandler.WatchNotifications(ctx)

	productFilter := catalog.NewFilter(catalog.NewURLQuery(nil),
		catalog.WithDebounceWindow(cfg.DebounceWindow))
	catalogHandler := cataloghttp.NewCatalogHandler(catalogService, productFilter, cfg.PageSize)
	catalogHandler.RegisterRoutes(app)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()
	logger.Logger.Info().Str("port", cfg.HTTPPort).Msg("HTTP server started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down storefront")
	stop()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
}

// pickBackend selects the first reachable storage backend. The Redis
// client is returned separately because the HTTP middleware reuses it
// even when carts persist elsewhere; it is nil when Redis is down.
func pickBackend(ctx context.Context, cfg *config.Config) (storage.KV, *redis.Client) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err == nil {
		logger.Logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis storage backend")
		return storage.NewRedis(redisClient, 24*time.Hour), redisClient
	} else {
		logger.Logger.Warn().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("Redis unavailable")
		redisClient = nil
	}

	db, err := database.NewGormConnection(cfg.Database)
	if err == nil {
		backend := storage.NewGorm(db)
		if err := backend.AutoMigrate(); err == nil {
			logger.Logger.Info().Str("db", cfg.Database.DBName).Msg("Using Postgres storage backend")
			return backend, nil
		}
		logger.Logger.Warn().Err(err).Msg("Postgres migration failed")
	} else {
		logger.Logger.Warn().Err(err).Msg("Postgres unavailable")
	}

	logger.Logger.Warn().Msg("Falling back to in-memory storage, cart will not survive restarts")
	return storage.NewMemory(), nil
}
