package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FRAUD_SERVER_PORT
const EnvPrefix = "FRAUD"

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	// Every key needs a default or AutomaticEnv will not see it on Unmarshal
	setDefaults(v, cfg)

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file not found is ok - we use defaults and env vars
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	// Server defaults
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)

	// Database defaults
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.auto_migrate", cfg.Database.AutoMigrate)
	v.SetDefault("database.log_queries", cfg.Database.LogQueries)

	// Redis defaults
	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.host", cfg.Redis.Host)
	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.pool_size", cfg.Redis.PoolSize)
	v.SetDefault("redis.read_timeout", cfg.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", cfg.Redis.WriteTimeout)

	// Kafka defaults
	v.SetDefault("kafka.enabled", cfg.Kafka.Enabled)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.risk_events_topic", cfg.Kafka.RiskEventsTopic)
	v.SetDefault("kafka.write_timeout", cfg.Kafka.WriteTimeout)
	v.SetDefault("kafka.breaker_failures", cfg.Kafka.BreakerFailures)
	v.SetDefault("kafka.breaker_open_timeout", cfg.Kafka.BreakerOpenTimeout)

	// Fraud defaults
	v.SetDefault("fraud.timezone", cfg.Fraud.Timezone)
	v.SetDefault("fraud.default_currency", cfg.Fraud.DefaultCurrency)
	v.SetDefault("fraud.supported_currencies", cfg.Fraud.SupportedCurrencies)
	v.SetDefault("fraud.min_amount", cfg.Fraud.MinAmount)
	v.SetDefault("fraud.max_amount", cfg.Fraud.MaxAmount)
	v.SetDefault("fraud.lock_ttl", cfg.Fraud.LockTTL)
	v.SetDefault("fraud.lock_wait", cfg.Fraud.LockWait)
	v.SetDefault("fraud.max_write_retries", cfg.Fraud.MaxWriteRetries)
	v.SetDefault("fraud.store", cfg.Fraud.Store)
	v.SetDefault("fraud.allow_memory_fallback", cfg.Fraud.AllowMemoryFallback)

	// Metrics and log defaults
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
