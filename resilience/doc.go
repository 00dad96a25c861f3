// Package resilience holds the bounded retry combinator and the circuit
// breaker used by the remote adapters.
//
// Retry covers both classic retries (backoff after a failure) and polling
// (wait, then look again) through RetryConfig.DelayFirst:
//
//	cfg := resilience.FixedBackoff(3, 2*time.Second)
//	cfg.DelayFirst = true
//	row, err := resilience.Retry(ctx, cfg, lookup)
package resilience
