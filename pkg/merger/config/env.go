package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig holds the environment-variable surface of the engine.
// Every field has a zero default so unset variables leave file-loaded
// values untouched.
type envConfig struct {
	RetryMaxAttempts    int           `env:"MERGER_RETRY_MAX_ATTEMPTS"`
	RetryInitialBackoff time.Duration `env:"MERGER_RETRY_INITIAL_BACKOFF"`
	RetryMaxBackoff     time.Duration `env:"MERGER_RETRY_MAX_BACKOFF"`
	RetryBackoffFactor  float64       `env:"MERGER_RETRY_BACKOFF_FACTOR"`
	RetryJitter         float64       `env:"MERGER_RETRY_JITTER"`
	ArchivePath         string        `env:"MERGER_ARCHIVE_PATH"`
	BusBufferSize       int           `env:"MERGER_BUS_BUFFER_SIZE"`
}

// FromEnv loads configuration from MERGER_* environment variables.
// Only variables that are actually set appear in the resulting Config,
// so the result can be merged over file-based configuration.
func FromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	m := make(map[string]any)
	if ec.RetryMaxAttempts > 0 {
		m["retry_max_attempts"] = ec.RetryMaxAttempts
	}
	if ec.RetryInitialBackoff > 0 {
		m["retry_initial_backoff"] = ec.RetryInitialBackoff
	}
	if ec.RetryMaxBackoff > 0 {
		m["retry_max_backoff"] = ec.RetryMaxBackoff
	}
	if ec.RetryBackoffFactor > 0 {
		m["retry_backoff_factor"] = ec.RetryBackoffFactor
	}
	if ec.RetryJitter > 0 {
		m["retry_jitter"] = ec.RetryJitter
	}
	if ec.ArchivePath != "" {
		m["archive_path"] = ec.ArchivePath
	}
	if ec.BusBufferSize > 0 {
		m["bus_buffer_size"] = ec.BusBufferSize
	}
	return New(m), nil
}

// Merge returns a Config where keys present in override shadow keys in c.
func (c Config) Merge(override Config) Config {
	m := make(map[string]any, len(c.data)+len(override.data))
	for k, v := range c.data {
		m[k] = v
	}
	for k, v := range override.data {
		m[k] = v
	}
	return New(m)
}
