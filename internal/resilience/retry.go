package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aristath/coordinator/internal/agent"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts         int           // Total attempts including the first; 0 means unbounded
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
	AttemptTimeout      time.Duration // Per-attempt deadline; 0 disables
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:         3,
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerConfig configures the per-agent circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Trip after this many invocation errors in a row (default 5)
	OpenTimeout         time.Duration // Time spent open before probing (default 30s)
	HalfOpenRequests    uint32        // Probes allowed while half-open (default 3)
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    3,
	}
}

// CircuitBreakerRegistry manages per-agent circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(cfg BreakerConfig, logger *zap.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given agent, creating it on first use.
func (r *CircuitBreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: r.cfg.HalfOpenRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("agent", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about agent health
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[name] = cb
	return cb
}

// Policy runs agent invocations with exponential backoff and a per-agent
// circuit breaker. Only invocation errors are retried; an Outcome reporting
// failure is returned as is.
type Policy struct {
	retry    RetryConfig
	breakers *CircuitBreakerRegistry
	logger   *zap.Logger
}

// NewPolicy creates a policy. A nil breaker registry disables circuit breaking.
func NewPolicy(retry RetryConfig, breakers *CircuitBreakerRegistry, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Unlimited attempts need an elapsed-time bound
	if retry.MaxAttempts == 0 && retry.MaxElapsedTime == 0 {
		retry.MaxElapsedTime = DefaultRetryConfig().MaxElapsedTime
	}
	return &Policy{retry: retry, breakers: breakers, logger: logger}
}

// Execute invokes fn under the retry policy. key selects the circuit breaker.
func (p *Policy) Execute(ctx context.Context, key string, fn func(ctx context.Context) (agent.Outcome, error)) (agent.Outcome, error) {
	var out agent.Outcome
	var cb *gobreaker.CircuitBreaker
	if p.breakers != nil {
		cb = p.breakers.Get(key)
	}

	attempt := 0
	operation := func() error {
		attempt++

		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := p.attempt(ctx, cb, fn)
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		out = result
		return nil
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Debug("retrying agent invocation",
			zap.String("agent", key),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	return out, err
}

func (p *Policy) attempt(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func(ctx context.Context) (agent.Outcome, error)) (agent.Outcome, error) {
	if p.retry.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.retry.AttemptTimeout)
		defer cancel()
	}

	if cb == nil {
		return fn(ctx)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return agent.Outcome{}, err
	}
	return result.(agent.Outcome), nil
}

func (p *Policy) backOff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retry.InitialInterval
	policy.MaxInterval = p.retry.MaxInterval
	policy.MaxElapsedTime = p.retry.MaxElapsedTime
	policy.Multiplier = p.retry.Multiplier
	policy.RandomizationFactor = p.retry.RandomizationFactor
	policy.Reset()

	var b backoff.BackOff = policy
	if p.retry.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.retry.MaxAttempts-1))
	}

	// Wrap with context to respect cancellation
	return backoff.WithContext(b, ctx)
}
