package generation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// RetryPolicy bounds how often and how patiently a provider call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. The wait doubles on
	// every following attempt.
	BaseDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero means no bound
	// beyond the caller's context.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns three attempts with a one second base delay and
// a one minute ceiling per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		AttemptTimeout: time.Minute,
	}
}

// NewRetryPolicy builds a validated policy from configuration values.
func NewRetryPolicy(maxAttempts int, baseDelaySeconds, attemptTimeoutSeconds float64) (RetryPolicy, error) {
	p := RetryPolicy{
		MaxAttempts:    maxAttempts,
		BaseDelay:      secondsToDuration(baseDelaySeconds),
		AttemptTimeout: secondsToDuration(attemptTimeoutSeconds),
	}
	if err := p.Validate(); err != nil {
		return RetryPolicy{}, err
	}
	return p, nil
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidConfig, p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay cannot be negative", ErrInvalidConfig)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("%w: attempt timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Delay returns the wait that follows a failed attempt, where attempt is
// 1-based: BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the production SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Caller wraps a Provider with bounded retries and exponential backoff.
// A Caller holds no per-call state and is safe for concurrent use.
type Caller struct {
	provider Provider
	policy   RetryPolicy
	sleep    SleepFunc
}

// CallerOption customizes a Caller.
type CallerOption func(*Caller)

// WithSleep replaces the function used to wait between attempts. Tests use it
// to record backoff delays without waiting.
func WithSleep(sleep SleepFunc) CallerOption {
	return func(c *Caller) {
		c.sleep = sleep
	}
}

// NewCaller creates a Caller for provider. It returns ErrInvalidConfig when
// the provider is nil or the policy is invalid.
func NewCaller(provider Provider, policy RetryPolicy, opts ...CallerOption) (*Caller, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider cannot be nil", ErrInvalidConfig)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &Caller{
		provider: provider,
		policy:   policy,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the retry policy in use.
func (c *Caller) Policy() RetryPolicy {
	return c.policy
}

// Call sends prompt to the provider and returns its text unchanged.
//
// Retryable failures are retried up to the policy's attempt ceiling, waiting
// Delay(n) after the n-th failed attempt. A permanent failure stops the loop
// at once. Any failure is returned as a *CallError.
func (c *Caller) Call(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContext(ctx).With("provider", c.provider.Name())

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		log.DebugContext(ctx, "calling provider",
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts)

		text, err := c.attempt(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// The caller gave up; an attempt-level deadline is handled below.
		if ctx.Err() != nil {
			return "", &CallError{Attempts: attempt, Aborted: true, Err: lastErr}
		}

		kind := KindOf(err)
		if !kind.Retryable() {
			log.DebugContext(ctx, "provider call failed permanently",
				"attempt", attempt,
				"kind", kind.String())
			return "", &CallError{Attempts: attempt, Permanent: true, Err: lastErr}
		}

		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		log.DebugContext(ctx, "provider call failed, retrying",
			"attempt", attempt,
			"kind", kind.String(),
			"delay", delay)

		if err := c.sleep(ctx, delay); err != nil {
			return "", &CallError{Attempts: attempt, Aborted: true, Err: err}
		}
	}

	return "", &CallError{Attempts: c.policy.MaxAttempts, Err: lastErr}
}

func (c *Caller) attempt(ctx context.Context, prompt string) (string, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return c.provider.Send(ctx, prompt)
}
