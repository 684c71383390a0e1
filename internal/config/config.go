package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// DBSource is the Postgres connection string. Empty selects the
	// in-memory store, which is only suitable for local runs.
	DBSource string
	Port     string
	Env      string

	TransferMaxRetries    int
	TransferTimeout       time.Duration
	RecordFailedTransfers bool
}

const (
	defaultPort       = "8080"
	defaultEnv        = "development"
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Second
)

func Load() (*Config, error) {
	cfg := &Config{
		DBSource:              os.Getenv("DB_SOURCE"),
		Port:                  valueOrDefault("SERVER_PORT", defaultPort),
		Env:                   valueOrDefault("ENVIRONMENT", defaultEnv),
		TransferTimeout:       defaultTimeout,
		RecordFailedTransfers: parseBoolWithDefault("RECORD_FAILED_TRANSFERS", false),
	}

	retries, err := parseIntWithDefault("TRANSFER_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, err
	}
	if retries <= 0 {
		return nil, fmt.Errorf("TRANSFER_MAX_RETRIES must be positive, got %d", retries)
	}
	cfg.TransferMaxRetries = retries

	if v := os.Getenv("TRANSFER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRANSFER_TIMEOUT: %w", err)
		}
		cfg.TransferTimeout = d
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseBool(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return val, nil
}
