package config

import (
	"github.com/invoicestream/merger/pkg/merger/errors"
)

// RetryFromConfig builds a retry configuration from these keys, falling
// back to errors.DefaultRetry for any that are absent:
//
//	retry_max_attempts    int
//	retry_initial_backoff duration
//	retry_max_backoff     duration
//	retry_backoff_factor  float
//	retry_jitter          float
func RetryFromConfig(cfg Config) errors.RetryConfig {
	rc := errors.DefaultRetry
	rc.MaxAttempts = cfg.Int("retry_max_attempts", rc.MaxAttempts)
	rc.InitialBackoff = cfg.Duration("retry_initial_backoff", rc.InitialBackoff)
	rc.MaxBackoff = cfg.Duration("retry_max_backoff", rc.MaxBackoff)
	rc.BackoffFactor = cfg.Float("retry_backoff_factor", rc.BackoffFactor)
	rc.Jitter = cfg.Float("retry_jitter", rc.Jitter)
	return rc
}
