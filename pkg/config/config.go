// Package config loads the validator's process-wide, immutable
// configuration once at startup from environment variables (§9 "Global
// validator configuration"). There is no hot reload: a new value requires a
// process restart, which keeps every in-flight match consistent with the
// settings it was opened under.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the validator service needs.
type Config struct {
	// Relay Configuration
	RelayURL string

	// Mint RPC Configuration
	MintURL string

	// Server Configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Signing Key Configuration
	SigningKeyPath string

	// League Table Configuration
	LeagueTablePath string // optional override of the embedded default

	// Economics Configuration
	WinnerShareBP   int64
	MinWagerPerSide int64

	// Database Configuration (optional match-audit persistence; §3.3 does
	// not require durability across restarts, so this is opt-in)
	DatabaseURL      string
	DatabaseRequired bool

	// Service Configuration
	LogLevel string

	// Concurrency Configuration
	MatchIdleTimeout time.Duration // operator-defined abandonment age (§5)
}

// Load reads configuration from environment variables. Call Validate()
// afterward before starting the service.
func Load() (*Config, error) {
	cfg := &Config{
		RelayURL: getEnv("RELAY_URL", ""),
		MintURL:  getEnv("MINT_URL", ""),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("HEALTH_ADDR", "0.0.0.0:8081"),

		SigningKeyPath: getEnv("SIGNING_KEY_PATH", ""),

		LeagueTablePath: getEnv("LEAGUE_TABLE_PATH", ""),

		WinnerShareBP:   getEnvInt64("WINNER_SHARE_BP", 9500),
		MinWagerPerSide: getEnvInt64("MIN_WAGER_PER_SIDE", 1),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseRequired: getEnvBool("DATABASE_REQUIRED", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		MatchIdleTimeout: getEnvDuration("MATCH_IDLE_TIMEOUT", time.Hour),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.RelayURL == "" {
		errs = append(errs, "RELAY_URL is required but not set")
	}
	if c.MintURL == "" {
		errs = append(errs, "MINT_URL is required but not set")
	}
	if c.SigningKeyPath == "" {
		errs = append(errs, "SIGNING_KEY_PATH is required but not set")
	}
	if c.WinnerShareBP <= 0 || c.WinnerShareBP > 10000 {
		errs = append(errs, "WINNER_SHARE_BP must be in (0, 10000]")
	}
	if c.MinWagerPerSide <= 0 {
		errs = append(errs, "MIN_WAGER_PER_SIDE must be positive")
	}
	if c.DatabaseRequired && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required because DATABASE_REQUIRED=true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
