package config

import (
	"time"

	"github.com/aristath/coordinator/internal/resilience"
)

// DefaultConfig returns the default configuration with a single built-in
// "echo" agent that hands the task input back as its output.
func DefaultConfig() *Config {
	retry := resilience.DefaultRetryConfig()
	breaker := resilience.DefaultBreakerConfig()

	return &Config{
		LogLevel:         "info",
		ConcurrencyLimit: 0,
		Retry: RetrySettings{
			MaxAttempts:         retry.MaxAttempts,
			InitialInterval:     Duration(retry.InitialInterval),
			MaxInterval:         Duration(retry.MaxInterval),
			MaxElapsedTime:      Duration(retry.MaxElapsedTime),
			Multiplier:          retry.Multiplier,
			RandomizationFactor: retry.RandomizationFactor,
		},
		Breaker: BreakerSettings{
			Enabled:             true,
			ConsecutiveFailures: breaker.ConsecutiveFailures,
			OpenTimeout:         Duration(breaker.OpenTimeout),
			HalfOpenRequests:    breaker.HalfOpenRequests,
		},
		Agents: map[string]AgentConfig{
			"echo": {
				Command: "cat",
				Timeout: Duration(30 * time.Second),
			},
		},
	}
}
