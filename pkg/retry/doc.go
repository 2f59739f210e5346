// Package retry provides exponential backoff retry for transient upstream
// failures.
//
// # Overview
//
// Do re-issues a failing call while the failure classifies as retryable:
// connection failures, timeouts at the transport level, and the retryable
// HTTP statuses (429/500/502/503/504) as classified by the errors package.
// Permanent failures (4xx, validation) are attempted exactly once.
//
// Backoff is exponential with optional jitter: delay for attempt i is
// min(MaxDelay, InitialDelay * Multiplier^i), plus up to 25% jitter.
// The backoff sleep selects on the caller's context, so a parent deadline
// firing mid-backoff cancels the remaining attempts immediately.
//
// # Policies
//
//   - DefaultPolicy(): 3 attempts, 100ms-5s delay
//   - Conservative(): 2 attempts, 500ms base, for endpoints with strict
//     upstream quotas where retries must not amplify load during an outage
//
// Callers with endpoint-specific budgets register a Policy per endpoint in
// the gateway configuration.
package retry
