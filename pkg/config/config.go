package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database. Empty selects local SQLite mode.
	DatabaseURL string
	SQLitePath  string

	// Redis. Empty disables the redis lock backend.
	RedisURL string

	// RabbitMQ. Empty disables the AMQP notification fan-out.
	RabbitMQURL string

	// Processing lock
	LockAttempts int
	LockBackoff  time.Duration
	LockLease    time.Duration

	// Amount tolerance
	ToleranceSmallBand    float64
	ToleranceLargeBand    float64
	ToleranceBoundaryMsat int64

	// Settlement monitor
	MonitorPollInterval time.Duration
	MonitorRetryDelay   time.Duration
	MonitorTimeout      time.Duration

	// Display currency for converted activity amounts. Empty disables
	// display conversion.
	PreferredCurrency string

	// Health endpoint listen address. Empty disables the health server.
	HealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SATCHEL_SQLITE_PATH", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		LockAttempts: getIntEnv("LOCK_ATTEMPTS", 5),
		LockBackoff:  getDurationEnv("LOCK_BACKOFF", 600*time.Millisecond),
		LockLease:    getDurationEnv("LOCK_LEASE", 30*time.Second),

		ToleranceSmallBand:    getFloatEnv("TOLERANCE_SMALL_BAND", 0.01),
		ToleranceLargeBand:    getFloatEnv("TOLERANCE_LARGE_BAND", 0.005),
		ToleranceBoundaryMsat: getInt64Env("TOLERANCE_BOUNDARY_MSAT", 10_000_000),

		MonitorPollInterval: getDurationEnv("MONITOR_POLL_INTERVAL", 30*time.Second),
		MonitorRetryDelay:   getDurationEnv("MONITOR_RETRY_DELAY", 5*time.Second),
		MonitorTimeout:      getDurationEnv("MONITOR_TIMEOUT", 5*time.Minute),

		PreferredCurrency: getEnv("PREFERRED_CURRENCY", ""),
		HealthAddr:        getEnv("HEALTH_ADDR", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64Env(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
