package config

import (
	"errors"
	"fmt"
	"sort"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for values the coordinator cannot use.
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.ConcurrencyLimit < 0 {
		return fmt.Errorf("concurrency_limit must not be negative: %d", c.ConcurrencyLimit)
	}
	if c.JournalKeep < 0 {
		return fmt.Errorf("journal_keep must not be negative: %d", c.JournalKeep)
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialInterval < 0 || c.Retry.MaxInterval < 0 || c.Retry.MaxElapsedTime < 0 || c.Retry.AttemptTimeout < 0 {
		return errors.New("retry durations must not be negative")
	}
	if c.Retry.MaxAttempts == 0 && c.Retry.MaxElapsedTime == 0 {
		return errors.New("retry.max_attempts and retry.max_elapsed_time are both unbounded")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1: %v", c.Retry.Multiplier)
	}
	if c.Retry.RandomizationFactor < 0 || c.Retry.RandomizationFactor > 1 {
		return fmt.Errorf("retry.randomization_factor must be within [0, 1]: %v", c.Retry.RandomizationFactor)
	}

	if c.Breaker.Enabled && c.Breaker.ConsecutiveFailures == 0 {
		return errors.New("breaker.consecutive_failures must be at least 1 when the breaker is enabled")
	}

	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		agent := c.Agents[name]
		if name == "" {
			return errors.New("agent with an empty name")
		}
		if agent.Command == "" {
			return fmt.Errorf("agent %q has no command", name)
		}
		if agent.Timeout < 0 {
			return fmt.Errorf("agent %q has a negative timeout", name)
		}
	}

	return nil
}
