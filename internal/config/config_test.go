package config

import (
	"testing"
)

const testSecret = "Abcdef1234567890!Abcdef123456789"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SITEWARDEN_SESSION_SECRET", testSecret)
	t.Setenv("SITEWARDEN_MAIN_ADMIN_EMAIL", "owner@example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "./data/sitewarden.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.UseRedisCache() {
		t.Error("redis should be disabled by default")
	}
	if cfg.EventRetentionDays != 90 {
		t.Errorf("EventRetentionDays = %d, want 90", cfg.EventRetentionDays)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("SITEWARDEN_SESSION_SECRET", "short")
	t.Setenv("SITEWARDEN_MAIN_ADMIN_EMAIL", "owner@example.com")

	if _, err := Load(); err == nil {
		t.Error("expected error for short session secret")
	}
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	t.Setenv("SITEWARDEN_SESSION_SECRET", "change-me-to-32-byte-secret-key!")
	t.Setenv("SITEWARDEN_MAIN_ADMIN_EMAIL", "owner@example.com")

	if _, err := Load(); err == nil {
		t.Error("expected error for known weak secret")
	}
}

func TestLoadNormalizesMainAdminEmail(t *testing.T) {
	t.Setenv("SITEWARDEN_SESSION_SECRET", testSecret)
	t.Setenv("SITEWARDEN_MAIN_ADMIN_EMAIL", "  Owner@Example.COM ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MainAdminEmail != "owner@example.com" {
		t.Errorf("MainAdminEmail = %q, want %q", cfg.MainAdminEmail, "owner@example.com")
	}
}

func TestLoadRejectsInvalidMainAdminEmail(t *testing.T) {
	t.Setenv("SITEWARDEN_SESSION_SECRET", testSecret)
	t.Setenv("SITEWARDEN_MAIN_ADMIN_EMAIL", "not-an-email")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid main admin email")
	}
}
