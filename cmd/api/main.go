// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

// Command api is the entry point for the Lucent identity API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Initialize the token service and rate limiter.
//  7. Wire repositories, the identity service, and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minhvodang/lucent/internal/api"
	"github.com/minhvodang/lucent/internal/identity"
	"github.com/minhvodang/lucent/internal/platform/config"
	"github.com/minhvodang/lucent/internal/platform/constants"
	"github.com/minhvodang/lucent/internal/platform/mail"
	"github.com/minhvodang/lucent/internal/platform/migration"
	pgstore "github.com/minhvodang/lucent/internal/platform/postgres"
	"github.com/minhvodang/lucent/internal/platform/ratelimit"
	redisstore "github.com/minhvodang/lucent/internal/platform/redis"
	"github.com/minhvodang/lucent/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Lucent] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service & Rate Limiter ───────────────────────────────────
	jwtSvc, err := sec.NewTokenService(
		cfg.JWTPrivKeyPath,
		cfg.JWTPubKeyPath,
		constants.AuthIssuer,
		identity.AccessTokenTTL,
		identity.RefreshTokenTTL,
	)
	must(log, err, "initialize jwt service")

	limiter := ratelimit.New(ratelimit.DefaultRules())
	defer limiter.Stop()

	// ── 7. Outbound Mail ──────────────────────────────────────────────────
	var mailer mail.Sender
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.AppBaseURL)
	} else {
		log.Warn("smtp_not_configured_using_log_sender")
		mailer = mail.NewLogSender(log)
	}

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. Domain Wiring ──────────────────────────────────────────────────
	identityService := identity.NewService(identity.Deps{
		Users:          identity.NewUserRepository(pool),
		Credentials:    identity.NewCredentialRepository(pool),
		RefreshTokens:  identity.NewRefreshTokenRepository(pool),
		ActionTokens:   identity.NewActionTokenRepository(pool),
		ProofSessions:  identity.NewProofSessionRepository(pool),
		Subdomains:     identity.NewSubdomainAccessRepository(pool),
		AuthCodes:      identity.NewAuthCodeStore(rdb),
		Tokens:         jwtSvc,
		Mailer:         mailer,
		TrustedDomains: cfg.TrustedDomains,
	})
	identityHandler := identity.NewHandler(identityService, limiter)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		JWKS:      api.NewJWKSHandler(jwtSvc),
		Identity:  identityHandler,
	}

	server := api.NewServer(context.Background(), cfg, log, identityService, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
