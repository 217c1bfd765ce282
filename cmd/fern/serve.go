package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/internal/services/exchanges"
	"github.com/Ramsey-B/fern/internal/services/proposals"
	"github.com/Ramsey-B/fern/internal/services/settlement"
	"github.com/Ramsey-B/fern/internal/services/validation"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/reputation"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.ProviderConfig{
		ServiceName:  cfg.AppName,
		OTLPEnabled:  cfg.OTLPEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPProtocol: cfg.OTLPProtocol,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	sqlDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	db := database.NewDatabaseInstance(sqlDB, logger)

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	kafkaConfig := kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
	producer := kafka.NewProducer(kafkaConfig, logger)

	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(&startup.Dependency{
		Name: "postgres",
		StartFunc: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if cfg.DatabaseMigrateOnStart {
				return migrate(cfg, logger, sqlDB)
			}
			return nil
		},
		StopFunc: func(context.Context) error { return sqlDB.Close() },
	})
	deps.AddDependency(&startup.Dependency{
		Name:      "redis",
		StartFunc: redisClient.Connect,
		StopFunc:  func(context.Context) error { return redisClient.Close() },
	})
	deps.AddDependency(&startup.Dependency{
		Name: "kafka",
		StartFunc: func(ctx context.Context) error {
			return kafka.Ping(ctx, kafkaConfig.Brokers)
		},
		StopFunc: func(context.Context) error { return producer.Close() },
	})
	if err := deps.Start(ctx); err != nil {
		return err
	}

	catalog, err := reputation.DefaultCatalog()
	if err != nil {
		return err
	}

	tx := repositories.NewTransactor(db)
	users := repositories.NewUserRepository(db, logger)
	conversations := repositories.NewConversationRepository(db, logger)
	exchangeRepo := repositories.NewExchangeRepository(db, logger)

	exchangeService := exchanges.NewService(logger, tx, exchangeRepo, conversations)
	proposalService := proposals.NewService(logger, tx, repositories.NewProposalRepository(db, logger), conversations, exchangeService)
	validationService := validation.NewService(logger, tx, repositories.NewValidationRepository(db, logger), exchangeRepo)
	dispatcher := settlement.NewDispatcher(logger, settlement.Dependencies{
		Products:   repositories.NewProductRepository(db, logger),
		Counter:    exchangeRepo,
		Reputation: users,
		Messages:   repositories.NewMessageRepository(db, logger),
		Notifier:   redis.NewNotificationQueue(redisClient, cfg.RedisNotificationStream, cfg.RedisNotificationMaxLen),
		Publisher:  producer,
		Catalog:    catalog,
	})

	auth := middleware.TestAuth()
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return fmt.Errorf("failed to discover OIDC issuer: %w", err)
		}
		auth = middleware.Authentication(logger, verifier)
	} else {
		logger.Warn("AUTH_ENABLED is false; callers are identified by the X-User-ID header")
	}

	checker := health.NewChecker(cfg.Version).
		AddCritical("postgres", health.PingFunc(sqlDB.PingContext)).
		AddOptional("redis", redisClient).
		AddOptional("kafka", health.PingFunc(func(ctx context.Context) error {
			return kafka.Ping(ctx, kafkaConfig.Brokers)
		}))

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName), middleware.Context(), middleware.Logger(logger))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1", auth, middleware.Identity(logger, users))
	handlers.NewProposalHandler(logger, proposalService, dispatcher).RegisterRoutes(api)
	handlers.NewExchangeHandler(logger, exchangeService, dispatcher).RegisterRoutes(api)
	handlers.NewValidationHandler(validationService, dispatcher).RegisterRoutes(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("server stopped")
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down HTTP server")
	}
	if err := deps.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to stop dependencies")
	}
	return shutdownTracing(shutdownCtx)
}
