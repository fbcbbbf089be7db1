// Package config provides configuration management for the treasury tracker application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/treasury-tracker/internal/types"
)

// StoreBackend selects the snapshot store implementation
type StoreBackend string

const (
	// BackendFile persists snapshots to a line-delimited JSON log file
	BackendFile StoreBackend = "file"
	// BackendPostgres persists snapshots to a Postgres table
	BackendPostgres StoreBackend = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	CoinGecko  CoinGeckoConfig
	Capture    CaptureConfig
	RateLimit  RateLimitConfig
	PriceCache PriceCacheConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// StoreConfig holds snapshot store configuration
type StoreConfig struct {
	Backend  StoreBackend
	FilePath string
}

// DatabaseConfig holds database configuration for the optional backends
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration for the holdings history sink
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration for the price cache
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CoinGeckoConfig holds upstream API configuration. The API key is the only
// required external configuration; everything else has workable defaults.
type CoinGeckoConfig struct {
	APIKey            string
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// CaptureConfig holds capture run parameters
type CaptureConfig struct {
	Assets                []types.AssetID
	DisplayCurrency       string
	AssumedCostPerCoinUSD float64
	Interval              time.Duration // 0 disables the scheduler
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// PriceCacheConfig holds price cache configuration
type PriceCacheConfig struct {
	TTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	backend := StoreBackend(getEnv("SNAPSHOT_STORE_BACKEND", string(BackendFile)))
	if backend != BackendFile && backend != BackendPostgres {
		return nil, fmt.Errorf("unknown snapshot store backend: %q", backend)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Store: StoreConfig{
			Backend:  backend,
			FilePath: getEnv("SNAPSHOT_FILE_PATH", "data/treasury_snapshots.jsonl"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "treasury_tracker"),
				User:           getEnv("POSTGRES_USER", "tracker"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "treasury_tracker"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		CoinGecko: CoinGeckoConfig{
			APIKey:            getEnv("COINGECKO_API_KEY", ""),
			BaseURL:           getEnv("COINGECKO_BASE_URL", "https://pro-api.coingecko.com/api/v3"),
			RequestTimeout:    getEnvAsDuration("COINGECKO_REQUEST_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("COINGECKO_REQUESTS_PER_SECOND", 3.0),
		},
		Capture: CaptureConfig{
			Assets:                parseAssets(getEnv("TRACKED_ASSETS", "bitcoin,ethereum")),
			DisplayCurrency:       strings.ToLower(getEnv("DISPLAY_CURRENCY", "usd")),
			AssumedCostPerCoinUSD: getEnvAsFloat("ASSUMED_COST_PER_COIN_USD", 0),
			Interval:              getEnvAsDuration("CAPTURE_INTERVAL", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		PriceCache: PriceCacheConfig{
			TTL: getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(config.Capture.Assets) == 0 {
		return nil, fmt.Errorf("TRACKED_ASSETS must name at least one asset")
	}

	return config, nil
}

// parseAssets parses the comma-separated tracked asset list
func parseAssets(raw string) []types.AssetID {
	var assets []types.AssetID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		assets = append(assets, types.AssetID(part))
	}
	return assets
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
