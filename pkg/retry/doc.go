// Package retry provides exponential backoff retry logic for transient failures.
//
// # Overview
//
// Do runs a function until it succeeds, the attempt budget is spent, the error
// is marked NonRetryable, or the context is cancelled. Sleeps between attempts
// honour context cancellation.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s, partial jitter
//   - Quick(): 10 attempts, 50ms-1s (startup)
//   - Forever(base, max): unlimited attempts, full jitter (remote configuration fetch)
//
// # Backoff
//
// The interval after failed attempt n is InitialDelay·Multiplier^(n−1), capped
// at MaxDelay. JitterFull sleeps a uniform duration in [0, interval];
// JitterPartial adds up to 25% on top of the interval.
//
// # Usage
//
//	cfg := retry.Forever(time.Second, 5*time.Minute)
//	cfg.Notify = func(attempt int, err error, sleep time.Duration) {
//	    logger.Warn("fetch failed", "attempt", attempt, "error", err, "sleep", sleep)
//	}
//	err := retry.Do(ctx, cfg, func() error {
//	    return source.Fetch(ctx)
//	})
//
// Mark errors that will never succeed:
//
//	if errors.Is(err, errors.ErrInvalidConfig) {
//	    return retry.NonRetryable(err)
//	}
package retry
