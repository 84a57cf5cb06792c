package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inform-api/internal/config"
	"github.com/noah-isme/inform-api/internal/database"
	"github.com/noah-isme/inform-api/internal/handler"
	"github.com/noah-isme/inform-api/internal/middleware"
	"github.com/noah-isme/inform-api/internal/observability"
	"github.com/noah-isme/inform-api/internal/repository"
	"github.com/noah-isme/inform-api/internal/router"
	"github.com/noah-isme/inform-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.Open(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, 3*time.Second)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; caching and rate limits run in-process")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName), nats.MaxReconnects(-1))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable; domain events are only stored")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	orgRepo := repository.NewOrganizationRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	formRepo := repository.NewFormRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	eventRepo := repository.NewDomainEventRepository(db)

	eventService := service.NewEventService(eventRepo, membershipRepo, redisClient, cfg.EventsChannel, natsConn, logger)
	aggregationService := service.NewAggregationService(aggregateRepo, redisClient, cfg.AggregateCacheTTL, logger)
	reviewService := service.NewReviewService(submissionRepo, reviewRepo, membershipRepo, aggregationService, eventService, validate, logger)
	reviewQueryService := service.NewReviewQueryService(submissionRepo, reviewRepo, membershipRepo, aggregationService, logger)
	organizationService := service.NewOrganizationService(orgRepo, membershipRepo, validate, logger)
	formService := service.NewFormService(formRepo, membershipRepo, eventService, validate, logger)
	submissionService := service.NewSubmissionService(formRepo, submissionRepo, membershipRepo, reviewQueryService, validate, logger)
	exportService := service.NewExportService(formRepo, submissionRepo, reviewRepo, membershipRepo, logger)

	emailLimiter := service.NewRateLimiter(redisClient, "ratelimit:submission:email", cfg.EmailRateLimitMax, cfg.EmailRateLimitTTL, logger)
	publicService := service.NewPublicSubmissionService(formRepo, submissionRepo, emailLimiter, newCaptchaVerifier(cfg, logger), eventService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		DB:                  db,
		Redis:               redisClient,
		OrganizationHandler: handler.NewOrganizationHandler(organizationService, eventService, logger),
		FormHandler:         handler.NewFormHandler(formService, exportService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, logger),
		ReviewHandler:       handler.NewReviewHandler(reviewService, reviewQueryService, logger),
		PublicFormHandler:   handler.NewPublicFormHandler(publicService, middleware.RateLimit("public-submit", cfg.IPRateLimitMax, cfg.IPRateLimitWindow), logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("starting http server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

// newCaptchaVerifier skips Turnstile in development when no secret is set.
func newCaptchaVerifier(cfg config.Config, logger zerolog.Logger) service.CaptchaVerifier {
	if cfg.TurnstileSecret == "" {
		if cfg.IsDevelopment() {
			logger.Warn().Msg("turnstile secret missing; captcha verification disabled in development")
			return service.NewNoopCaptchaVerifier()
		}
		logger.Warn().Msg("turnstile secret missing; public submissions will be rejected")
	}
	return service.NewTurnstileVerifier(&http.Client{Timeout: 5 * time.Second}, cfg.TurnstileSecret, cfg.TurnstileVerifyURL)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
