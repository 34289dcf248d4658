// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/sitewarden/sitewarden/internal/auth"
	"github.com/sitewarden/sitewarden/internal/cache"
	"github.com/sitewarden/sitewarden/internal/config"
	"github.com/sitewarden/sitewarden/internal/geoip"
	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/handler"
	"github.com/sitewarden/sitewarden/internal/logging"
	"github.com/sitewarden/sitewarden/internal/middleware"
	"github.com/sitewarden/sitewarden/internal/registry"
	"github.com/sitewarden/sitewarden/internal/scheduler"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/session"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Sitewarden - Administrative Content Governance\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_SESSION_SECRET       Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_MAIN_ADMIN_EMAIL     Main administrator email (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_MAIN_ADMIN_PASSWORD  Main administrator initial password\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_DB_PATH              SQLite database path (default: ./data/sitewarden.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_SERVER_PORT          Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_ENV                  Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_REDIS_URL            Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEWARDEN_GEOIP_DB_PATH        GeoLite2 country database path (optional)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("sitewarden %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Create version info from build-time injected values
	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		err = db.Close()
		if err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	// Run migrations
	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log database
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	eventLogHandler := logging.NewEventLogHandler(textHandler, db)
	logger = slog.New(eventLogHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Seed the main admin account
	ctx := context.Background()
	if err := store.Seed(ctx, db, store.SeedParams{
		MainAdminEmail:    cfg.MainAdminEmail,
		MainAdminPassword: cfg.MainAdminPassword,
		MainAdminName:     cfg.MainAdminName,
		PasswordHasher:    auth.HashPassword,
	}); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	// Initialize session manager
	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Initialize cache backend for section snapshots
	cacheConfig := cache.DefaultConfig()
	cacheConfig.DefaultTTL = time.Duration(cfg.CacheTTL) * time.Second
	cacheConfig.MaxSize = cfg.CacheMaxSize
	if cfg.UseRedisCache() {
		cacheConfig.Type = "redis"
		cacheConfig.RedisURL = cfg.RedisURL
		cacheConfig.Prefix = cfg.CachePrefix
	}
	backendType := cacheConfig.Type
	cacheBackend, err := cache.New(cacheConfig)
	if err != nil {
		// Redis being down must not keep the service from starting
		slog.Warn("cache backend unavailable, falling back to memory", "error", err)
		backendType = "memory"
		cacheBackend, err = cache.New(cache.DefaultConfig())
		if err != nil {
			return fmt.Errorf("initializing cache: %w", err)
		}
	}
	defer func() { _ = cacheBackend.Close() }()
	sectionCache := cache.NewSectionCache(cacheBackend, cacheConfig.DefaultTTL, logger)
	slog.Info("cache initialized", "backend", backendType)

	// Initialize GeoIP resolver when a database is configured
	var geoResolver *geoip.Resolver
	if cfg.GeoIPEnabled() {
		geoResolver, err = geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			slog.Warn("geoip database unavailable", "path", cfg.GeoIPDBPath, "error", err)
		} else {
			defer func() { _ = geoResolver.Close() }()
			slog.Info("geoip resolver initialized", "path", cfg.GeoIPDBPath)
		}
	}

	// Initialize services
	eventService := service.NewEventService(db)
	auditService := service.NewAuditService(db, geoResolver, logger)

	// Initialize governance core
	matrix := governance.NewMatrix(db, auditService, cfg.MainAdminEmail)
	overlay := governance.NewOverlay()
	engine := governance.NewEngine(db, matrix, overlay, sectionCache, logger)
	reg := registry.New(db, auditService, logger, cfg.MainAdminEmail)
	authService := auth.NewService(db, reg, auditService, logger)

	// Initialize and start scheduler for event log retention and geoip reloads
	retention := time.Duration(cfg.EventRetentionDays) * 24 * time.Hour
	sched := scheduler.New(eventService, geoResolver, retention, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// CSRF protection middleware for all state-changing API routes
	csrfConfig := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())
	csrfMiddleware := middleware.CSRF(csrfConfig)
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	// Initialize login protection
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	slog.Info("login protection initialized",
		"ip_rate_limit", "0.5 req/s",
		"max_failed_attempts", 5,
		"lockout_duration", "15m",
	)

	// Global rate limiter for the API (per client IP)
	apiRateLimiter := middleware.NewGlobalRateLimiter(100, 200)
	slog.Info("api rate limiter initialized", "rate", "100 req/s", "burst", 200)

	// Initialize handlers
	apiHandler := handler.New(db, sessionManager, engine, reg, authService, auditService, loginProtection, logger)
	healthHandler := handler.NewHealthHandler(db, sessionManager, versionInfo)

	// Create router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5)) // Gzip compression with level 5
	r.Use(chimw.GetHead)     // Handle HEAD requests for uptime monitoring

	// Request path middleware for logging context
	r.Use(middleware.RequestPath)

	r.Use(sessionManager.LoadAndSave)

	// Health check routes (public, returns additional details for authenticated callers)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Use(csrfMiddleware)

		// Public auth routes
		// Defense-in-depth on login: rate limiter + loginProtection (per-IP
		// throttle on POST + account lockout)
		r.Post("/signup", apiHandler.Signup)
		r.With(loginProtection.Middleware()).Post("/login", apiHandler.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionManager))
			r.Use(middleware.LoadUser(sessionManager, db))

			r.Get("/me", apiHandler.Me)
			r.Post("/logout", apiHandler.Logout)

			// Section content: capability checks happen in the domain layer,
			// per section and per operation
			r.Get("/sections", apiHandler.ListSections)
			r.Get("/sections/{section}", apiHandler.GetSection)
			r.Get("/sections/{section}/edit", apiHandler.GetSectionForEditing)
			r.Post("/sections/{section}/preview", apiHandler.PreviewSection)
			r.Delete("/sections/{section}/preview", apiHandler.DiscardSection)
			r.Post("/sections/{section}/commit", apiHandler.CommitSection)
			r.Delete("/sections/{section}", apiHandler.DeleteSection)

			r.Get("/history", apiHandler.ListHistory)
			r.Post("/history/{id}/revert", apiHandler.RevertHistoryEntry)

			// Main-admin-only in the domain layer
			r.Get("/permissions/check", apiHandler.CheckPermission)
			r.Post("/permissions", apiHandler.AssignPermissions)
			r.Put("/users/role", apiHandler.SetUserRole)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdminWithEventLog(eventService))

				r.Get("/emails", apiHandler.ListAuthorizedEmails)
				r.Post("/emails", apiHandler.AuthorizeEmail)
				r.Post("/emails/{id}/revoke", apiHandler.RevokeEmail)
				r.Post("/emails/{id}/reactivate", apiHandler.ReactivateEmail)
				r.Delete("/emails/{id}", apiHandler.DeleteEmail)

				r.Get("/permissions/users/{id}", apiHandler.ListUserPermissions)
				r.Get("/permissions/users/{id}/summary", apiHandler.SummarizePermissions)

				r.Get("/audit", apiHandler.ListAdminActions)
			})
		})
	})
	slog.Info("API mounted at /api")

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second, // Mitigates slowloris attacks
		MaxHeaderBytes:    1 << 20,          // 1MB max header size
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
