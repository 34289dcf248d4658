// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"SITEWARDEN_DB_PATH" envDefault:"./data/sitewarden.db"`
	SessionSecret string `env:"SITEWARDEN_SESSION_SECRET,required"`
	ServerHost    string `env:"SITEWARDEN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SITEWARDEN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"SITEWARDEN_ENV" envDefault:"development"`
	LogLevel      string `env:"SITEWARDEN_LOG_LEVEL" envDefault:"info"`

	// Main admin designation. The user with this email implicitly holds every
	// capability on every section and is the only actor who may grant
	// permissions or change roles.
	MainAdminEmail    string `env:"SITEWARDEN_MAIN_ADMIN_EMAIL,required"`
	MainAdminPassword string `env:"SITEWARDEN_MAIN_ADMIN_PASSWORD" envDefault:"changeme"`
	MainAdminName     string `env:"SITEWARDEN_MAIN_ADMIN_NAME" envDefault:"Main Administrator"`

	// Cache configuration
	RedisURL     string `env:"SITEWARDEN_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"SITEWARDEN_CACHE_PREFIX" envDefault:"sw:"`     // Redis key prefix
	CacheTTL     int    `env:"SITEWARDEN_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"SITEWARDEN_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Event log retention
	EventRetentionDays int `env:"SITEWARDEN_EVENT_RETENTION_DAYS" envDefault:"90"`

	// GeoIP configuration
	GeoIPDBPath string `env:"SITEWARDEN_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate session secret length
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SITEWARDEN_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("SITEWARDEN_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SITEWARDEN_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	// The main admin email is the anchor of the whole permission model.
	cfg.MainAdminEmail = strings.ToLower(strings.TrimSpace(cfg.MainAdminEmail))
	if _, err := mail.ParseAddress(cfg.MainAdminEmail); err != nil {
		return nil, fmt.Errorf("SITEWARDEN_MAIN_ADMIN_EMAIL is not a valid email address: %w", err)
	}

	if cfg.EventRetentionDays <= 0 {
		cfg.EventRetentionDays = 90
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
