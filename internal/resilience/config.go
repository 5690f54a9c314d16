package resilience

import "time"

// ForSource returns the retry policy for fetching a remote ledger or feed.
func ForSource(maxRetries int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxAttempts = maxRetries
	}
	return cfg
}

// ForConflict returns a retry policy for write paths that lose a race on a
// unique key. The retried function re-reads before writing, so delays stay
// short.
func ForConflict(attempts int, isConflict func(error) bool) RetryConfig {
	if attempts <= 0 {
		attempts = 3
	}
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.5,
		ShouldRetry:    isConflict,
	}
}

// ForSourceBreaker returns the circuit breaker policy guarding one remote host.
func ForSourceBreaker(failureThreshold int, resetTimeout time.Duration) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeout > 0 {
		cfg.ResetTimeout = resetTimeout
	}
	cfg.ShouldTrip = IsTransient
	return cfg
}
