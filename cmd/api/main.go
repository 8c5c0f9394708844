package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/melizondo/voltcart/internal/auth"
	"github.com/melizondo/voltcart/internal/background"
	"github.com/melizondo/voltcart/internal/config"
	"github.com/melizondo/voltcart/internal/database"
	"github.com/melizondo/voltcart/internal/handlers"
	middlewareCustom "github.com/melizondo/voltcart/internal/middleware"
	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/repositories"
	"github.com/melizondo/voltcart/internal/routes"
	"github.com/melizondo/voltcart/internal/services"
	pkgauth "github.com/melizondo/voltcart/pkg/auth"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize redis for the single-use challenge store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	pingCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewAttemptRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	challengeStore := repositories.NewChallengeStore(redisClient, cfg.Security.ChallengeTTL)

	// Security event log
	eventService := services.NewSecurityEventService(eventRepo, services.EventLogConfig{
		Cap:                 cfg.Security.EventLogCap,
		RetentionDays:       cfg.Security.EventRetentionDays,
		SuspiciousWindow:    cfg.Security.SuspiciousWindow,
		SuspiciousThreshold: cfg.Security.SuspiciousThreshold,
	}, logger)

	// Transactional email via SES, best effort and optional. Serves both
	// order confirmations and lockout notices.
	var notifier services.OrderNotifier
	var lockoutNotifier services.LockoutNotifier
	if cfg.Email.Enabled {
		emailService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = emailService
		lockoutNotifier = emailService
	} else {
		logger.Info("transactional email disabled")
	}

	// Per-identity failed attempt tracking
	rateLimitService := services.NewRateLimitService(attemptRepo, eventService, lockoutNotifier, services.RateLimitConfig{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		LockoutDuration:   cfg.Security.LockoutDuration,
	}, logger)

	// Checkout verification challenges
	challengeService := services.NewChallengeService(challengeStore, logger)

	// Token manager for admin sessions
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)

	// TOTP manager for admin MFA, only when an encryption key is configured
	var totpManager *auth.TOTPManager
	if cfg.Auth.MFAEncryptionKey != "" {
		totpManager, err = auth.NewTOTPManager([]byte(cfg.Auth.MFAEncryptionKey), "Voltcart")
		if err != nil {
			logger.Error("failed to initialize totp manager", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("MFA_ENCRYPTION_KEY not set, admin MFA disabled")
	}

	orderService := services.NewOrderService(orderRepo, eventService, notifier, logger)
	authService := services.NewAuthService(userRepo, rateLimitService, eventService, tokenManager, totpManager, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	orderHandler := handlers.NewOrderHandler(orderService, challengeService, eventService)
	adminHandler := handlers.NewAdminHandler(orderService, orderRepo, eventService, authService, rateLimitService)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Background pruning: aged events and stale attempt records
	pruneManager := background.NewPruneManager(eventService, attemptRepo, logger, cfg.Security.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RequestLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, challengeHandler, orderHandler, adminHandler, tokenManager, eventService)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background pruning
	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	defer pruneCancel()

	go pruneManager.Start(pruneCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	pruneCancel()
	pruneManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
