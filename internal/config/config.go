// Package config centralizes the environment-derived settings shared by
// cmd/main.go, the publisher, and the background worker. Packages that
// own a single external resource (Postgres, the artifact store, Redis
// lock/idempotency, tracing) still read their own env vars directly;
// config only covers the top-level knobs that cmd wires across package
// boundaries.
package config

import (
	"time"

	"github.com/gqlregistry/registry-core/internal/platform/envutil"
)

// Config holds the registry service's top-level runtime settings.
type Config struct {
	Env  string
	Port string

	JWTSecretKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockTTL       time.Duration
	LockPollEvery time.Duration
	IdempotencyTTL time.Duration

	DefaultRetentionDays int

	PurgeInterval time.Duration
}

// LoadConfigFromEnv reads Config from the environment, applying the same
// defaults the registry ships with in development.
func LoadConfigFromEnv() Config {
	return Config{
		Env:  envutil.String("APP_ENV", "development"),
		Port: envutil.String("PORT", "8080"),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", "defaultsecret"),

		RedisAddr:     envutil.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		LockTTL:        envutil.Duration("REGISTRY_LOCK_TTL", 30*time.Second),
		LockPollEvery:  envutil.Duration("REGISTRY_LOCK_POLL_INTERVAL", 100*time.Millisecond),
		IdempotencyTTL: envutil.Duration("REGISTRY_IDEMPOTENCY_TTL", 15*time.Second),

		DefaultRetentionDays: envutil.Int("REGISTRY_DEFAULT_RETENTION_DAYS", 7),

		PurgeInterval: envutil.Duration("REGISTRY_PURGE_INTERVAL", 5*time.Minute),
	}
}
