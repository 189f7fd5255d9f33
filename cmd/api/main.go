package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/background"
	"github.com/freightdesk/sentinel/internal/config"
	"github.com/freightdesk/sentinel/internal/database"
	"github.com/freightdesk/sentinel/internal/handlers"
	middlewareCustom "github.com/freightdesk/sentinel/internal/middleware"
	"github.com/freightdesk/sentinel/internal/repositories"
	"github.com/freightdesk/sentinel/internal/routes"
	"github.com/freightdesk/sentinel/internal/services"
	"github.com/freightdesk/sentinel/pkg/broker"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	pkglogger "github.com/freightdesk/sentinel/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db.Pool)
	attemptRepo := repositories.NewLoginAttemptRepository(db.Pool)
	anomalyRepo := repositories.NewAnomalyRepository(db.Pool)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	detectionMetrics, err := services.NewDetectionMetrics(registry)
	if err != nil {
		logger.Error("failed to register detection metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// Alerts
	alertSink, closeAlerts := buildAlertSink(cfg.Alert, userRepo, logger)
	defer closeAlerts()
	// delivery runs off the login path
	alertDispatcher := background.NewAlertDispatcher(alertSink,
		background.DefaultAlertWorkers, background.DefaultAlertQueueSize, background.DefaultAlertTimeout, logger)

	// Detection
	gateway := services.NewAttemptGateway(attemptRepo, userRepo, cfg.Detection.QueryTimeout)
	gate := services.NewSecurityGate(
		gateway,
		services.NewHeuristicDetector(gateway),
		services.NewAccountDetector(gateway, cfg.Detection.Cooldown),
		attemptRepo,
		cfg.Auth.AttemptRetention,
		services.NewAnomalyRecorder(anomalyRepo, alertDispatcher, auditLogger, logger),
		detectionMetrics,
		auditLogger,
		logger,
	)

	// Authentication and review
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 250 * time.Millisecond, RandomDelay: 100 * time.Millisecond})
	authService := services.NewAuthService(userRepo, attemptRepo, tokenManager, timingDelay, cfg.Auth.AttemptRetention, logger, auditLogger)
	anomalyService := services.NewAnomalyService(anomalyRepo, logger)
	userService := services.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)

	if cfg.Auth.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := userService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("failed to ensure admin user", slog.Any("error", err))
		}
		cancel()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:          handlers.NewAuthHandler(authService, ipConfig, logger),
		AnomalyHandler:       handlers.NewAnomalyHandler(anomalyService),
		Gate:                 gate,
		TokenManager:         tokenManager,
		UserRepo:             userRepo,
		IPConfig:             ipConfig,
		LoginRateLimitPerMin: cfg.Auth.LoginRateLimitPerMin,
		Health:               db,
		Metrics:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:               logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	cleanupManager := background.NewCleanupManager(attemptRepo, logger, cfg.Auth.CleanupInterval)
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	alertDispatcher.Close()

	logger.Info("server stopped gracefully")
}

// buildAlertSink always logs alerts and adds SES and Kafka delivery when configured.
// The returned func releases the Kafka producer.
func buildAlertSink(cfg config.AlertConfig, users services.AccountLookup, logger *slog.Logger) (services.AlertSink, func()) {
	sinks := services.MultiAlertSink{services.NewLogAlertSink(logger)}
	closeFn := func() {}

	if cfg.SESEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesSink, err := services.NewSESAlertSink(ctx, cfg.AWSRegion, cfg.EmailFrom, cfg.SecurityEmail, users, logger)
		cancel()
		if err != nil {
			logger.Error("email alerts disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, sesSink)
		}
	}

	if cfg.KafkaEnabled() {
		producer := broker.NewProducer(logger, cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, services.NewKafkaAlertSink(producer))
		closeFn = producer.Close
	}

	return sinks, closeFn
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
