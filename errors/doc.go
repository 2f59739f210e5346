// Package errors implements the error taxonomy shared by every bioquery
// component.
//
// # Overview
//
// Errors crossing a package boundary are classified into one of five classes:
//
//   - transient: network failures, timeouts at the transport level, HTTP 429
//     and the retryable 5xx family. Eligible for retry with backoff.
//   - permanent: HTTP 4xx (other than 429) and local validation failures.
//     Propagate immediately, never retried.
//   - rate_limited: local token-bucket rejection in non-blocking mode.
//     Recoverable by waiting for the hinted duration.
//   - circuit_open: fail-fast rejection before any network attempt.
//   - timeout: request deadline expiry; becomes a per-domain partial failure
//     in the aggregate envelope, never a whole-request failure.
//
// # Usage
//
// Wrap errors at the point of failure with component context:
//
//	if err := store.Set(key, payload); err != nil {
//	    return errors.WrapTransient(err, "Gateway", "Execute", "cache store")
//	}
//
// Classify at decision points:
//
//	if errors.IsRetryable(err) {
//	    // re-issue per policy
//	}
//
// HTTP statuses map to classes via ClassifyStatus; FromStatus builds the
// classified error for a non-2xx response in one call.
//
// The classification defaults are deliberately permissive: an unrecognized
// error is treated as transient so that unknown network conditions stay
// retryable, while recognizably local mistakes (invalid, malformed, not
// found) are pinned permanent.
package errors
