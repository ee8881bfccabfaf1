package config

import (
	"time"

	"github.com/vietddude/cqlguard/internal/infra/cassandra"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Cassandra  cassandra.Config `yaml:"cassandra"`
	Logging    LoggingConfig    `yaml:"logging"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Migrations MigrationsConfig `yaml:"migrations"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ResilienceConfig selects the default policy profile and overrides
// the built-in retry and breaker budgets. An absent section keeps the
// built-in budget; a present section replaces it entirely, so setting
// max_retries to 0 disables retries rather than restoring defaults.
type ResilienceConfig struct {
	Profile         string         `yaml:"profile"` // none, retry, circuit_breaker, retry_circuit_breaker, idempotent_retry
	Idempotent      bool           `yaml:"idempotent"`
	Retry           *RetryConfig   `yaml:"retry"`
	IdempotentRetry *RetryConfig   `yaml:"idempotent_retry"`
	Breaker         *BreakerConfig `yaml:"breaker"`
}

// RetryConfig holds retry budget settings.
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	BreakDuration    time.Duration `yaml:"break_duration"`
}

// MigrationsConfig holds migration script location and ledger settings.
type MigrationsConfig struct {
	Dir         string `yaml:"dir"`
	LedgerTable string `yaml:"ledger_table"`
}

// Options converts the configured defaults into call options.
func (c ResilienceConfig) Options() (policy.Options, error) {
	profile, err := policy.ParseProfile(c.Profile)
	if err != nil {
		return policy.Options{}, err
	}
	return policy.Options{Profile: profile, Idempotent: c.Idempotent}, nil
}

// ComposerConfig converts the configured overrides into policy specs.
// Absent sections keep the package defaults.
func (c ResilienceConfig) ComposerConfig() policy.ComposerConfig {
	var out policy.ComposerConfig
	if c.Retry != nil {
		out.Retry = retrySpec(*c.Retry)
	}
	if c.IdempotentRetry != nil {
		out.IdempotentRetry = retrySpec(*c.IdempotentRetry)
	}
	if c.Breaker != nil {
		out.Breaker = &policy.BreakerSpec{
			FailureThreshold: c.Breaker.FailureThreshold,
			BreakDuration:    c.Breaker.BreakDuration,
		}
	}
	return out
}

func retrySpec(c RetryConfig) *policy.RetrySpec {
	return &policy.RetrySpec{
		MaxRetries:    c.MaxRetries,
		InitialDelay:  c.InitialDelay,
		BackoffFactor: c.BackoffFactor,
	}
}
