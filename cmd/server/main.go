package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/profilehub/internal/handler"
	"github.com/yourorg/profilehub/internal/infrastructure/logger"
	"github.com/yourorg/profilehub/internal/infrastructure/redis"
	"github.com/yourorg/profilehub/internal/media"
	"github.com/yourorg/profilehub/internal/observability/metrics"
	"github.com/yourorg/profilehub/internal/observability/tracing"
	"github.com/yourorg/profilehub/internal/repository"
	"github.com/yourorg/profilehub/internal/security/audit"
	"github.com/yourorg/profilehub/internal/security/auth"
	"github.com/yourorg/profilehub/internal/security/middleware"
	"github.com/yourorg/profilehub/internal/security/ratelimit"
	"github.com/yourorg/profilehub/internal/service"
	"github.com/yourorg/profilehub/internal/session"
	"github.com/yourorg/profilehub/internal/worker"
	"github.com/yourorg/profilehub/pkg/cache"
	"github.com/yourorg/profilehub/pkg/config"
	"github.com/yourorg/profilehub/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting ProfileHub server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	shutdownTracing, err := tracing.Init(ctx, log, "profilehub", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize database pool and run migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Initialize object storage for avatars
	mediaStore, err := media.NewS3Store(ctx, media.Config{
		Region:     cfg.S3Region,
		Endpoint:   cfg.S3Endpoint,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Bucket:     cfg.S3Bucket,
		PresignTTL: time.Duration(cfg.PresignTTLMinutes) * time.Minute,
	}, log)
	if err != nil {
		log.Error("failed to initialize object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Initialize repositories and session store
	accountRepo := repository.NewPostgresAccountRepository(pool.GetDB(), log)
	profileRepo := repository.NewPostgresProfileRepository(pool.GetDB(), log)
	sessionStore := session.NewStore(redisClient, time.Duration(cfg.SessionTTLMinutes)*time.Minute, log)

	// 8. Initialize services
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "profilehub")
	accountService := service.NewAccountService(
		accountRepo,
		sessionStore,
		tokenManager,
		time.Duration(cfg.TokenTTLMinutes)*time.Minute,
		log,
	)
	profileService := service.NewProfileService(profileRepo, mediaStore, cache.New(), log)

	// 9. Initialize handlers
	auditLogger := audit.NewLogger(log)
	authHandler := handler.NewAuthHandler(accountService, profileService, auditLogger, log)
	profileHandler := handler.NewProfileHandler(profileService, log)
	healthHandler := handler.NewHealthHandler(
		handler.PingerFunc(pool.Health),
		handler.PingerFunc(redisClient.Ping),
	)

	mux := handler.NewMux(authHandler, profileHandler, healthHandler)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// 10. Security and observability middleware
	rateLimiter := ratelimit.NewLimiter(100, time.Minute) // 100 requests per minute per account
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.AuditMiddleware(auditLogger)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuthMiddleware(tokenManager, sessionStore, log)(
						middleware.ValidateJSONContentType(log)(handlerWithCORS),
					),
				),
			),
		),
		log,
	)
	rootHandler = otelhttp.NewHandler(rootHandler, "profilehub")

	// 11. Start session sweeper in background
	sweeper := worker.NewSessionSweeper(
		sessionStore,
		log,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
	)
	go sweeper.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", 100),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop session sweeper
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
