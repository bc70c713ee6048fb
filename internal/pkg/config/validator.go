package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	switch c.Fraud.Store {
	case StorePostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return errors.New("invalid database port")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Fraud.Store, StorePostgres, StoreMemory)
	}

	if c.Fraud.MaxWriteRetries < 1 {
		return errors.New("max_write_retries must be at least 1")
	}
	if c.Fraud.LockTTL <= 0 {
		return errors.New("lock_ttl must be positive")
	}
	if c.Fraud.LockWait < 0 {
		return errors.New("lock_wait must not be negative")
	}

	if _, err := c.Fraud.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Fraud.Timezone, err)
	}

	maxAmount, err := decimal.NewFromString(c.Fraud.MaxAmount)
	if err != nil || !maxAmount.IsPositive() {
		return fmt.Errorf("max_amount must be a positive number, got %q", c.Fraud.MaxAmount)
	}
	minAmount, err := decimal.NewFromString(c.Fraud.MinAmount)
	if err != nil || !minAmount.IsPositive() {
		return fmt.Errorf("min_amount must be a positive number, got %q", c.Fraud.MinAmount)
	}
	if minAmount.GreaterThan(maxAmount) {
		return errors.New("min_amount should not exceed max_amount")
	}

	if len(c.Fraud.DefaultCurrency) != 3 {
		return fmt.Errorf("default_currency must be a 3-letter code, got %q", c.Fraud.DefaultCurrency)
	}
	supported := false
	for _, cur := range c.Fraud.SupportedCurrencies {
		if strings.EqualFold(cur, c.Fraud.DefaultCurrency) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("default_currency %s is not in supported_currencies", c.Fraud.DefaultCurrency)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka is enabled but no brokers are configured")
	}

	return nil
}
