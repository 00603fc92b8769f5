// Package config loads service settings from the environment and the payout
// split configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service needs at startup.
type Config struct {
	// HTTP
	Port int

	// Database
	DBPath                 string
	StorageRetryMaxElapsed time.Duration

	// Payouts
	SplitsFile     string
	PayoutSchedule string
	PayoutTimeout  time.Duration

	// Admin auth
	JWTSecret         string
	AdminPasswordHash string
	TokenTTL          time.Duration

	// Simulated gateway: charges above this major-unit amount are declined.
	// Empty means no limit.
	GatewayMaxCharge string

	// Ledger is the validated split configuration.
	Ledger *Ledger
}

// Load reads the environment and the split file. It fails if the split
// configuration is invalid; callers must not serve traffic in that case.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),

		DBPath:                 getEnv("DB_PATH", "./data/revshare.db"),
		StorageRetryMaxElapsed: getEnvDuration("STORAGE_RETRY_MAX_ELAPSED", 5*time.Second),

		SplitsFile:     getEnv("SPLITS_FILE", ""),
		PayoutSchedule: getEnv("PAYOUT_SCHEDULE", "0 0 * * *"),
		PayoutTimeout:  getEnvDuration("PAYOUT_TIMEOUT", time.Minute),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 12*time.Hour),

		GatewayMaxCharge: getEnv("GATEWAY_MAX_CHARGE", ""),
	}

	if cfg.SplitsFile == "" {
		cfg.Ledger = DefaultLedger()
		return cfg, nil
	}

	ledger, err := LoadLedger(cfg.SplitsFile)
	if err != nil {
		return nil, err
	}
	cfg.Ledger = ledger
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
