// Package config loads the quota core's environment configuration and the
// optional plan-catalog override string described in spec.md §6.
package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the quota core's environment configuration. Fields are parsed
// from the process environment (optionally seeded by a local .env file).
type Config struct {
	// FirestoreProjectID selects the GCP project the production store
	// connects to. Left empty, firestoredb.New derives it from credentials.
	FirestoreProjectID string `env:"QUOTA_FIRESTORE_PROJECT_ID"`
	// FirestoreCredentialsFile is a path to a service-account JSON key file.
	FirestoreCredentialsFile string `env:"QUOTA_FIRESTORE_CREDENTIALS_FILE"`
	// FirestoreCredentialsJSONBase64 carries the same key inline, for
	// environments where writing a credentials file is inconvenient.
	FirestoreCredentialsJSONBase64 string `env:"QUOTA_FIRESTORE_CREDENTIALS_JSON_BASE64"`

	// RedisAddr, RedisPassword, and RedisDB describe the Redis server for
	// the optional read-through snapshot cache. Load only reads them; the
	// cache is enabled by building a quotacache.Cache and passing it to
	// quota.WithCache.
	RedisAddr     string `env:"QUOTA_REDIS_ADDR"`
	RedisPassword string `env:"QUOTA_REDIS_PASSWORD"`
	RedisDB       int    `env:"QUOTA_REDIS_DB" envDefault:"0"`

	// PlanCatalogOverride is the raw configuration string spec.md §6
	// describes: either a YAML/JSON array of plan entries or an object with
	// a "plans" array. Empty means use the embedded default catalog.
	PlanCatalogOverride string `env:"QUOTA_PLAN_CATALOG_OVERRIDE"`

	// LogLevel names a minimum log level: debug, info, warn, or error.
	// Load only reads it; no logger in this module is configured from it.
	LogLevel string `env:"QUOTA_LOG_LEVEL" envDefault:"info"`
}

var loadDotenvOnce sync.Once

// Load parses process environment variables into a Config, first loading a
// local .env file if one is present (errors from a missing .env file are
// ignored; an application must not fail to start for lack of one).
func Load() (*Config, error) {
	loadDotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}
