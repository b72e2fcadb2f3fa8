// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Metadata backend ("memory" or "postgres")
	MetadataBackend string
	DatabaseURL     string

	// Seed file for the memory backend (JSON listing of entries)
	SeedFile string

	// Auth
	JWTSecret   string
	TokenExpiry time.Duration

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		MetadataBackend: envOr("METADATA_BACKEND", "memory"),
		DatabaseURL:     envOr("DATABASE_URL", ""),
		SeedFile:        envOr("SEED_FILE", ""),
		JWTSecret:       envOr("JWT_SECRET", ""),
		TokenExpiry:     envDuration("TOKEN_EXPIRY", 24*time.Hour),
		TLSCertFile:     envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:      envOr("TLS_KEY_FILE", ""),
	}

	// Tokens are HMAC-signed; an empty secret would make them forgeable.
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
