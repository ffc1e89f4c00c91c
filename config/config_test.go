package config_test

import (
	"testing"

	"github.com/mkucukkoc/aiorealbackend/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("expected default redis db 0, got %d", cfg.RedisDB)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("QUOTA_FIRESTORE_PROJECT_ID", "aiorreal-prod")
	t.Setenv("QUOTA_LOG_LEVEL", "debug")
	t.Setenv("QUOTA_REDIS_ADDR", "localhost:6379")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FirestoreProjectID != "aiorreal-prod" {
		t.Errorf("expected project id override, got %q", cfg.FirestoreProjectID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level override, got %q", cfg.LogLevel)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr override, got %q", cfg.RedisAddr)
	}
}
