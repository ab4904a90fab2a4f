// Package retry provides exponential backoff retry logic
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Unlimited as MaxAttempts retries until fn succeeds, returns a
// non-retryable error, or ctx is cancelled.
const Unlimited = -1

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Jitter selects how the sleep between attempts is randomized.
type Jitter int

const (
	// JitterNone sleeps exactly the backoff interval.
	JitterNone Jitter = iota
	// JitterPartial adds up to 25% of the interval on top of it.
	JitterPartial
	// JitterFull sleeps a uniformly random duration in [0, interval].
	JitterFull
)

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Total attempts; 0 runs once, Unlimited never gives up
	InitialDelay time.Duration // Interval before the second attempt
	MaxDelay     time.Duration // Upper bound for any single interval
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	Jitter       Jitter

	// Notify, when set, is called after every failed attempt that will be retried.
	Notify func(attempt int, err error, sleep time.Duration)
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       JitterPartial,
	}
}

// Forever returns a config that never stops retrying: base·2^(attempt−1)
// randomized within the interval, each interval capped at maxDelay.
func Forever(base, maxDelay time.Duration) Config {
	return Config{
		MaxAttempts:  Unlimited,
		InitialDelay: base,
		MaxDelay:     maxDelay,
		Multiplier:   2.0,
		Jitter:       JitterFull,
	}
}

func (cfg Config) normalized() (Config, error) {
	if cfg.InitialDelay < 0 {
		return cfg, errors.New("retry: InitialDelay cannot be negative")
	}
	if cfg.MaxDelay < 0 {
		return cfg, errors.New("retry: MaxDelay cannot be negative")
	}
	if cfg.Multiplier < 0 {
		return cfg, errors.New("retry: Multiplier cannot be negative")
	}
	// Prevent overflow with extremely large multipliers
	if cfg.Multiplier > 1000 {
		cfg.Multiplier = 1000
	}
	if cfg.MaxAttempts == 0 || cfg.MaxAttempts < Unlimited {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return cfg, nil
}

// Interval returns the un-jittered backoff interval that follows the given
// failed attempt (1-based): InitialDelay·Multiplier^(attempt−1), capped at MaxDelay.
func (cfg Config) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
		if delay >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	if delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// Sleep returns the jittered sleep duration after the given failed attempt.
func (cfg Config) Sleep(attempt int) time.Duration {
	interval := cfg.Interval(attempt)
	switch cfg.Jitter {
	case JitterPartial:
		if q := int64(interval / 4); q > 0 {
			return interval + time.Duration(randInt63n(q))
		}
	case JitterFull:
		if interval > 0 {
			return time.Duration(randInt63n(int64(interval) + 1))
		}
	}
	return interval
}

func randInt63n(n int64) int64 {
	randMu.Lock()
	defer randMu.Unlock()
	return randSource.Int63n(n)
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalized()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; cfg.MaxAttempts == Unlimited || attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := cfg.Sleep(attempt)
		if cfg.Notify != nil {
			cfg.Notify(attempt, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Quick returns a config for fast retries (useful during startup)
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		Jitter:       JitterPartial,
	}
}
