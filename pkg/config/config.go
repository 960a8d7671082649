// Copyright 2025 Chainframe
//
// Configuration loader for the EVM indexer service.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the indexer service.
type Config struct {
	// RPC Configuration
	RPCURLs           []string // ordered list, first is most preferred
	RPCHealthInterval time.Duration
	RPCRequestTimeout time.Duration

	// Indexer Configuration
	StartBlock    uint64 // initial height when store is empty
	Confirmations uint64 // finality depth

	// Server Configuration
	ListenAddr  string
	MetricsAddr string

	// Database Configuration
	DatabaseURL       string
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Verification Engine Configuration
	VerificationMaxSourceBytes int64
	VerificationTimeout        time.Duration
	SolcBinariesURL            string
	SolcCacheDir               string

	// Supervisor Configuration
	BackupInterval  time.Duration
	BackupRetention time.Duration
	BackupDir       string
	HoneypotDBName  string
	HealthInterval  time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, applying the
// indexer's default ports, timeouts, and retention windows.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURLs:           parseList(getEnv("RPC_URLS", "")),
		RPCHealthInterval: getEnvDuration("RPC_HEALTH_INTERVAL", 30*time.Second),
		RPCRequestTimeout: getEnvDuration("RPC_REQUEST_TIMEOUT", 10*time.Second),

		StartBlock:    getEnvUint64("INDEXER_START_BLOCK", 0),
		Confirmations: getEnvUint64("INDEXER_CONFIRMATIONS", 12),

		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "indexer"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "evm_indexer"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "disable"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		DBConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),

		VerificationMaxSourceBytes: getEnvInt64("VERIFICATION_MAX_SOURCE_BYTES", 5*1024*1024),
		VerificationTimeout:        getEnvDuration("VERIFICATION_TIMEOUT", 120*time.Second),
		SolcBinariesURL:            getEnv("SOLC_BINARIES_URL", "https://binaries.soliditylang.org/bin/list.json"),
		SolcCacheDir:               getEnv("SOLC_CACHE_DIR", "./data/solc-cache"),

		BackupInterval:  getEnvDuration("BACKUP_INTERVAL", 6*time.Hour),
		BackupRetention: getEnvDuration("BACKUP_RETENTION", 7*24*time.Hour),
		BackupDir:       getEnv("BACKUP_DIR", "./data/backups"),
		HoneypotDBName:  getEnv("HONEYPOT_DB_NAME", "evm_indexer_honeypot"),
		HealthInterval:  getEnvDuration("HEALTH_INTERVAL", 60*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDatabaseURL(cfg)
	}

	return cfg, nil
}

// buildDatabaseURL assembles a libpq connection string from the individual
// DB_* fields when DATABASE_URL is not set directly.
func buildDatabaseURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
}

// Validate checks that the configuration is sufficient to start the
// ingestion pipeline and verification engine.
func (c *Config) Validate() error {
	var errs []string

	if len(c.RPCURLs) == 0 {
		errs = append(errs, "RPC_URLS is required but not set")
	}
	if c.DBName == "" {
		errs = append(errs, "DB_NAME is required but not set")
	}
	if c.VerificationMaxSourceBytes <= 0 {
		errs = append(errs, "VERIFICATION_MAX_SOURCE_BYTES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
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

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return intValue
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

// parseList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
