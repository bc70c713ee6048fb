package config

import (
	"time"
	_ "time/tzdata" // zone database for images without /usr/share/zoneinfo

	"github.com/shopspring/decimal"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Fraud    FraudConfig    `mapstructure:"fraud"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit uses the limiter formatted rate, e.g. "100-S" or "1000-M".
	// Empty disables rate limiting.
	RateLimit string `mapstructure:"rate_limit"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// RedisConfig holds Redis configuration. Redis backs the writer lock.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig holds the risk event producer configuration
type KafkaConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Brokers            []string      `mapstructure:"brokers"`
	RiskEventsTopic    string        `mapstructure:"risk_events_topic"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// FraudConfig holds risk engine and host settings
type FraudConfig struct {
	// Timezone used by the unusual-time rule
	Timezone string `mapstructure:"timezone"`

	// Creation input limits
	DefaultCurrency     string   `mapstructure:"default_currency"`
	SupportedCurrencies []string `mapstructure:"supported_currencies"`
	MinAmount           string   `mapstructure:"min_amount"` // String for YAML compatibility
	MaxAmount           string   `mapstructure:"max_amount"` // String for YAML compatibility

	// Writer serialization
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	LockWait        time.Duration `mapstructure:"lock_wait"`
	MaxWriteRetries int           `mapstructure:"max_write_retries"`

	// Store selects the persistence backend, postgres or memory
	Store string `mapstructure:"store"`
	// AllowMemoryFallback lets a postgres deployment start on the memory
	// store when the database is unreachable. Only safe for a single instance.
	AllowMemoryFallback bool `mapstructure:"allow_memory_fallback"`
}

// GetMaxAmount returns the max amount as decimal
func (c *FraudConfig) GetMaxAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.MaxAmount)
	if err != nil {
		return decimal.NewFromInt(1_000_000)
	}
	return d
}

// GetMinAmount returns the min amount as decimal
func (c *FraudConfig) GetMinAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.MinAmount)
	if err != nil {
		return decimal.RequireFromString("0.01")
	}
	return d
}

// Location resolves Timezone, UTC when empty
func (c *FraudConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       "100-S",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "fraud_user",
			Password:        "",
			Name:            "fraud_risk",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			AutoMigrate:     true,
			LogQueries:      false,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:            false,
			Brokers:            []string{"localhost:9092"},
			RiskEventsTopic:    "fraud.risk-events",
			WriteTimeout:       5 * time.Second,
			BreakerFailures:    5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Fraud: FraudConfig{
			Timezone:            "UTC",
			DefaultCurrency:     "USD",
			SupportedCurrencies: []string{"USD", "EUR", "GBP"},
			MinAmount:           "0.01",
			MaxAmount:           "1000000",
			LockTTL:             10 * time.Second,
			LockWait:            5 * time.Second,
			MaxWriteRetries:     3,
			Store:               StoreMemory,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
