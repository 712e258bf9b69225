package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/srikarv/eduinsights/internal/api"
	"github.com/srikarv/eduinsights/internal/api/handlers"
	"github.com/srikarv/eduinsights/internal/cache"
	"github.com/srikarv/eduinsights/internal/captcha"
	"github.com/srikarv/eduinsights/internal/marks"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/internal/scraper"
	"github.com/srikarv/eduinsights/internal/scraper/browser"
	"github.com/srikarv/eduinsights/pkg/config"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log.Info("Starting EduInsights extraction API")

	// Initialize database connection pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		log.WithError(err).Fatal("Failed to parse database config")
	}

	dbConfig.MaxConns = 25
	dbConfig.MinConns = 5
	dbConfig.MaxConnLifetime = 1 * time.Hour
	dbConfig.MaxConnIdleTime = 30 * time.Minute
	dbConfig.HealthCheckPeriod = 1 * time.Minute
	dbConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	dbConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name": "eduinsights-api",
		"timezone":         "UTC",
	}

	dbPool, err := pgxpool.NewWithConfig(dbCtx, dbConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := dbPool.Ping(dbCtx); err != nil {
		log.WithError(err).Fatal("Failed to ping database")
	}
	log.Info("Successfully connected to database")

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, continuing without cache")
		redisClient = nil
	} else {
		log.Info("Successfully connected to Redis")
	}

	var cacheService *cache.Service
	if redisClient != nil {
		cacheService = cache.NewService(redisClient, time.Duration(cfg.Redis.DefaultTTLMinutes)*time.Minute)
	}

	// Initialize repositories
	extractionRepo := repository.NewExtractionRepository(dbPool, log)
	domainRepo := repository.NewDomainRepository(dbPool, log)
	catalogRepo := repository.NewCatalogRepository(dbPool, log)

	// Initialize the extraction engine
	captchaClient := captcha.NewClient(captcha.Config{
		Endpoint: cfg.Captcha.Endpoint,
		UserID:   cfg.Captcha.UserID,
		APIKey:   cfg.Captcha.APIKey,
		Timeout:  cfg.Captcha.Timeout,
	}, log)

	driver := browser.NewDriver(cfg.Browser.BinPath, log)

	scraperOpts := scraper.DefaultOptions()
	scraperOpts.ElementWait = cfg.Browser.ElementWait
	scraperOpts.DetailsWait = cfg.Browser.DetailsWait
	scraperOpts.CooldownWait = cfg.Scraper.CooldownWait
	scraperOpts.RefusedWait = cfg.Scraper.RefusedWait
	scraperOpts.MaxCaptchaAttempts = cfg.Scraper.MaxCaptchaAttempts
	scraperOpts.MaxTimeoutAttempts = cfg.Scraper.MaxTimeoutAttempts
	scraperOpts.MaxRefusedAttempts = cfg.Scraper.MaxRefusedAttempts

	pageScraper := scraper.NewPageScraper(captchaClient, driver, scraperOpts, log)
	reconciler := marks.NewReconciler(domainRepo, log)
	coordinator := scraper.NewCoordinator(
		pageScraper, driver, extractionRepo, domainRepo, reconciler,
		scraper.CoordinatorConfig{
			FlushEvery:         cfg.Scraper.FlushEvery,
			MaxCaptchaAttempts: cfg.Scraper.MaxCaptchaAttempts,
			MaxTimeoutAttempts: cfg.Scraper.MaxTimeoutAttempts,
		},
		log,
	)
	discoverer := scraper.NewSubjectDiscoverer(pageScraper, driver, log)

	// Initialize handlers
	extractionHandler := handlers.NewExtractionHandler(
		extractionRepo, domainRepo, discoverer, coordinator, cacheService, &cfg.Scraper, log,
	)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, domainRepo, log)
	studentHandler := handlers.NewStudentHandler(catalogRepo, domainRepo, log)
	healthHandler := handlers.NewHealthHandler(dbPool, redisClient, log)

	// Initialize middleware
	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient, cfg.API.RateLimitRequests, cfg.API.RateLimitWindowSeconds)
	}
	auth := middleware.NewAPIKeyAuth(cfg.API.APIKey, cfg.API.APIKeyHeader)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "EduInsights API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.WithError(err).Error("Unhandled request error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
			})
		},
	})

	api.SetupRoutes(app, extractionHandler, catalogHandler, studentHandler, healthHandler, rateLimiter, auth, log)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Infof("Listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
	log.Info("Server stopped")
}
