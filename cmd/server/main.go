package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/localmind/backend/internal/auth"
	"github.com/localmind/backend/internal/cache"
	"github.com/localmind/backend/internal/chat"
	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/database"
	"github.com/localmind/backend/internal/handlers"
	"github.com/localmind/backend/internal/inference"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/metrics"
	"github.com/localmind/backend/internal/middleware"
	"github.com/localmind/backend/internal/relay"
	"github.com/localmind/backend/internal/repository"
	"github.com/localmind/backend/internal/telemetry"
	"github.com/localmind/backend/internal/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "localmind-backend"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== LocalMind server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("ai_url", cfg.AI.BaseURL),
		zap.String("model", cfg.AI.Model),
		zap.String("auth_mode", cfg.Auth.Mode),
	)
	if envErr != nil {
		logger.Log.Info(".env file not found, using system environment variables")
	}

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Enabled:      cfg.Tracing.Enabled,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		if err := telemetry.Shutdown(tp); err != nil {
			logger.Log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	m := metrics.Initialize()

	if err := database.Initialize(cfg.Database, !cfg.IsProduction()); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		logger.FatalWithFields("Failed to configure authentication", err)
	}

	// background work (the stop listener) ends with this context
	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var (
		redisClient      *cache.RedisClient
		redisCoordinator *relay.RedisCoordinator
		coordinator      relay.Coordinator
	)
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.Log.Warn("Redis unavailable, stop requests and rate limits stay local", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			redisCoordinator = relay.NewRedisCoordinator(redisClient)
			coordinator = redisCoordinator
		}
	}

	aiClient := inference.NewOpenAIClient(inference.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		// no client timeout: a reply may stream for minutes, GENERATION_TIMEOUT bounds it
		HTTPClient: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{ServiceName: "inference"}),
	})

	checks := map[string]validation.Check{validation.ServiceAI: aiClient.Ping}
	if redisClient != nil {
		checks[validation.ServiceRedis] = redisClient.Ping
	}
	if err := validation.NewServiceValidator(checks).ValidateServices(ctx); err != nil {
		logger.FatalWithFields("Required service unavailable", err)
	}

	registry := relay.NewRegistry(cfg.Chat.MaxActivePerUser, cfg.Chat.GenerationTimeout+time.Minute, coordinator)
	registry.OnChange = func(active int) {
		m.Chat.ActiveGenerations.Set(float64(active))
	}
	if redisCoordinator != nil {
		if err := redisCoordinator.Listen(ctx, registry); err != nil {
			logger.Log.Warn("Cross-instance stop disabled", zap.Error(err))
		}
	}

	repo := repository.NewConversationRepository(database.DB)
	chatService := chat.NewService(repo, aiClient, registry, chat.Options{
		DefaultSystemPrompt:   cfg.Chat.DefaultSystemPrompt,
		HistoryLimit:          cfg.Chat.HistoryLimit,
		GenerationTimeout:     cfg.Chat.GenerationTimeout,
		PersistPartialReplies: cfg.Chat.PersistPartialReplies,
	})

	h := handlers.NewHandlers(repo, chatService, aiClient, handlers.Options{
		AIURL:            cfg.AI.BaseURL,
		MaxActivePerUser: cfg.Chat.MaxActivePerUser,
		DBHealth:         pingDatabase,
	})
	if redisClient != nil {
		h.SetRedisClient(redisClient)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TracingMiddleware(serviceName))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.SpanEnrichmentMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	r.Use(cors.New(corsConfig))

	// compressing an event stream would hold frames back until the buffer fills
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/chat", "/metrics"})))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatLimit := middleware.RedisRateLimitMiddleware(redisClient, middleware.ChatRateLimitConfig(cfg.Chat.RateLimitPerMinute))
	h.RegisterRoutes(r, middleware.AuthMiddleware(verifier), chatLimit)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout stays zero; chat responses are long-lived streams
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Log.Info("LocalMind backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// open streams would keep Shutdown waiting for minutes; stop them first so each
	// handler finishes its bookkeeping and returns
	registry.Shutdown()
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func newVerifier(cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		logger.Log.Warn("Using HS256 development tokens; do not run this mode in production")
		return auth.NewHMACVerifier(cfg.JWTSecret), nil
	case config.AuthModeFirebase:
		certsClient := telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "google-certs",
			Timeout:     10 * time.Second,
		})
		return auth.NewFirebaseVerifier(cfg.FirebaseProjectID, auth.WithHTTPClient(certsClient)), nil
	default:
		return nil, errors.New("unknown AUTH_MODE " + cfg.Mode)
	}
}

func pingDatabase(ctx context.Context) error {
	if database.DB == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
