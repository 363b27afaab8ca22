package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/namegen/internal/handlers"
	"github.com/hanko-field/namegen/internal/platform/config"
	"github.com/hanko-field/namegen/internal/platform/llm"
	"github.com/hanko-field/namegen/internal/platform/observability"
	"github.com/hanko-field/namegen/internal/platform/secrets"
	"github.com/hanko-field/namegen/internal/services"
)

func main() {
	ctx := context.Background()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(
		observability.WithLevel(envValues["LOG_LEVEL"]),
		observability.WithDevelopment(isDevelopment(envValues)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("namegen")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.Model.APIKey == "" {
		logger.Warn("SILICONFLOW_API_KEY is not set; every request will be served from the fallback catalog")
	}

	modelClient, err := llm.NewClient(llm.Config{
		Endpoint:    cfg.Model.Endpoint,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Model,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
		TopP:        cfg.Model.TopP,
		Timeout:     cfg.Model.Timeout,
	}, llm.WithLogger(logger.Named("llm")))
	if err != nil {
		logger.Fatal("failed to initialise model client", zap.Error(err))
	}

	catalog, err := services.NewFallbackCatalog()
	if err != nil {
		logger.Fatal("failed to load fallback catalog", zap.Error(err))
	}

	generationService, err := services.NewNameGenerationService(services.NameGenerationServiceDeps{
		Provider: modelClient,
		Catalog:  catalog,
		Model:    modelClient.Model(),
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("generation")),
	})
	if err != nil {
		logger.Fatal("failed to initialise name generation service", zap.Error(err))
	}

	generationHandlers := handlers.NewNameGenerationHandlers(generationService,
		handlers.WithGenerationRateLimit(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
	)
	pageHandlers := handlers.NewPageHandlers(generationHandlers)

	router := handlers.NewRouter(
		handlers.WithAllowedOrigins(cfg.CORS.AllowedOrigins...),
		handlers.WithTrustedProxy(cfg.Server.TrustProxy),
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(handlers.WithHealthVersion(cfg.Version))),
		handlers.WithNameGenerationRoutes(generationHandlers.Routes),
		handlers.WithPageRoutes(pageHandlers.Routes),
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Secrets.ProjectID),
			observability.RecoveryMiddleware(logger),
			observability.RequestLoggerMiddleware(cfg.Secrets.ProjectID),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("name generator listening",
			zap.String("environment", cfg.Environment),
			zap.String("model", modelClient.Model()),
			zap.String("version", cfg.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(lookup("SECRET_PROJECT_ID")),
		secrets.WithCacheTTL(time.Hour),
	}
	if path := lookup("SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("SECRET_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func isDevelopment(env map[string]string) bool {
	for _, key := range []string{"APP_ENV", "NODE_ENV"} {
		if value := strings.TrimSpace(env[key]); value != "" {
			return strings.EqualFold(value, "development")
		}
	}
	return true
}
