package resilience

import "time"

// PolicyFrom builds a Policy from millisecond config values, keeping
// defaults for anything unset.
func PolicyFrom(maxAttempts, initialBackoffMs, maxBackoffMs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}

// BreakerFrom builds a BreakerConfig from config values.
func BreakerFrom(failures, resetSecs int) BreakerConfig {
	cfg := BreakerConfig{Failures: 5, ResetTimeout: 30 * time.Second}
	if failures > 0 {
		cfg.Failures = failures
	}
	if resetSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetSecs) * time.Second
	}
	return cfg
}
