package model

import "time"

// RetryConfig defines retry behavior for startup loads against the BEO.
// Polling never uses it: the poll interval is the retry.
type RetryConfig struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"` // 0 means bounded by MaxElapsedTime only
	InitialDelay   time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay       time.Duration `json:"max_delay" yaml:"max_delay"`
	MaxElapsedTime time.Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
	BackoffFactor  float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultRetryConfig is used when the config file leaves retry settings out
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    5,
	InitialDelay:   1 * time.Second,
	MaxDelay:       30 * time.Second,
	MaxElapsedTime: 2 * time.Minute,
	BackoffFactor:  2.0,
}
