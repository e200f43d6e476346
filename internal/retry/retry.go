// Package retry provides bounded exponential backoff retry logic.
//
// The schedule is deliberately simple: the delay before retry n is
// Unit * Base^n, with no jitter and no cap.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// Base is the exponential backoff base.
	Base float64
	// Unit is the duration multiplied by Base^n.
	Unit time.Duration
	// Sleep waits between attempts. Nil uses Sleep.
	Sleep Sleeper
}

// DefaultConfig returns the upload retry schedule: ten retries waiting
// 5s, 25s, 125s, ... 5^10s.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 10,
		Base:       5,
		Unit:       time.Second,
	}
}

// DiscoveryConfig returns the short schedule for list calls: three
// retries waiting 2s, 4s and 8s.
func DiscoveryConfig() Config {
	return Config{
		MaxRetries: 3,
		Base:       2,
		Unit:       time.Second,
	}
}

// Delay returns the wait before the given retry (1-based).
func (c Config) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return time.Duration(math.Pow(c.Base, float64(retry)) * float64(c.Unit))
}

// Wait sleeps for Delay(retry) or until ctx is done.
func (c Config) Wait(ctx context.Context, retry int) error {
	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, c.Delay(retry))
}

// Validate reports an invalid schedule.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}
	if c.Base < 1 {
		return fmt.Errorf("backoff base must be >= 1")
	}
	if c.Unit <= 0 {
		return fmt.Errorf("backoff unit must be positive")
	}
	return nil
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// IsRetryable is the default classifier. Context errors are permanent,
// everything else is retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do executes fn with retry logic, using classifier to decide whether an
// error is worth another attempt. It returns a *RetryableError once
// MaxRetries retries have failed.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	retries := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err) {
			return err
		}

		retries++
		if retries > cfg.MaxRetries {
			return &RetryableError{Err: err, Retries: cfg.MaxRetries}
		}
		if werr := cfg.Wait(ctx, retries); werr != nil {
			return werr
		}
	}
}

// ErrExhausted is matched by every *RetryableError.
var ErrExhausted = errors.New("retry: max retries exceeded")

// RetryableError wraps the last error seen after retries were exhausted.
type RetryableError struct {
	Err     error
	Retries int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Is reports ErrExhausted.
func (e *RetryableError) Is(target error) bool {
	return target == ErrExhausted
}
