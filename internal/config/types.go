package config

import (
	"fmt"
	"time"

	"github.com/aristath/coordinator/internal/agent"
	"github.com/aristath/coordinator/internal/resilience"
)

// Duration is a time.Duration written as a string ("250ms", "2m") in JSON
// and environment variables.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// AgentConfig defines an agent backed by an external command.
type AgentConfig struct {
	Command string            `json:"command"`            // Program name or path, looked up on PATH
	Args    []string          `json:"args,omitempty"`     // Arguments passed on every invocation
	Env     map[string]string `json:"env,omitempty"`      // Added to the coordinator's environment
	WorkDir string            `json:"work_dir,omitempty"` // Defaults to the current directory
	Timeout Duration          `json:"timeout,omitempty"`  // Per-invocation limit; 0 disables
}

// CommandConfig converts the entry into an agent.CommandConfig named name.
func (a AgentConfig) CommandConfig(name string) agent.CommandConfig {
	return agent.CommandConfig{
		Name:    name,
		Command: a.Command,
		Args:    a.Args,
		Env:     a.Env,
		WorkDir: a.WorkDir,
		Timeout: time.Duration(a.Timeout),
	}
}

// RetrySettings configures retries of agent invocation errors.
type RetrySettings struct {
	MaxAttempts         int      `json:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialInterval     Duration `json:"initial_interval" env:"INITIAL_INTERVAL"`
	MaxInterval         Duration `json:"max_interval" env:"MAX_INTERVAL"`
	MaxElapsedTime      Duration `json:"max_elapsed_time" env:"MAX_ELAPSED_TIME"`
	Multiplier          float64  `json:"multiplier" env:"MULTIPLIER"`
	RandomizationFactor float64  `json:"randomization_factor" env:"RANDOMIZATION_FACTOR"`
	AttemptTimeout      Duration `json:"attempt_timeout,omitempty" env:"ATTEMPT_TIMEOUT"`
}

// Policy converts the settings into a resilience.RetryConfig.
func (r RetrySettings) Policy() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:         r.MaxAttempts,
		InitialInterval:     time.Duration(r.InitialInterval),
		MaxInterval:         time.Duration(r.MaxInterval),
		MaxElapsedTime:      time.Duration(r.MaxElapsedTime),
		Multiplier:          r.Multiplier,
		RandomizationFactor: r.RandomizationFactor,
		AttemptTimeout:      time.Duration(r.AttemptTimeout),
	}
}

// BreakerSettings configures the per-agent circuit breakers.
type BreakerSettings struct {
	Enabled             bool     `json:"enabled" env:"ENABLED"`
	ConsecutiveFailures uint32   `json:"consecutive_failures" env:"CONSECUTIVE_FAILURES"`
	OpenTimeout         Duration `json:"open_timeout" env:"OPEN_TIMEOUT"`
	HalfOpenRequests    uint32   `json:"half_open_requests" env:"HALF_OPEN_REQUESTS"`
}

// Breaker converts the settings into a resilience.BreakerConfig.
func (b BreakerSettings) Breaker() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		ConsecutiveFailures: b.ConsecutiveFailures,
		OpenTimeout:         time.Duration(b.OpenTimeout),
		HalfOpenRequests:    b.HalfOpenRequests,
	}
}

// Config is the top-level configuration.
type Config struct {
	LogLevel         string                 `json:"log_level" env:"LOG_LEVEL"`
	ConcurrencyLimit int                    `json:"concurrency_limit" env:"CONCURRENCY_LIMIT"` // 0 runs each wave fully concurrent
	JournalPath      string                 `json:"journal_path,omitempty" env:"JOURNAL_PATH"` // Empty disables the run journal
	JournalKeep      int                    `json:"journal_keep,omitempty" env:"JOURNAL_KEEP"` // Runs kept after each record; 0 keeps all
	MetricsTextfile  string                 `json:"metrics_textfile,omitempty" env:"METRICS_TEXTFILE"`
	Retry            RetrySettings          `json:"retry" envPrefix:"RETRY_"`
	Breaker          BreakerSettings        `json:"breaker" envPrefix:"BREAKER_"`
	Agents           map[string]AgentConfig `json:"agents"`
}
