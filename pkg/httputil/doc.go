// Package httputil provides retry helpers for the graph service client.
//
// [Retry] and [Policy.Do] run an operation with exponential backoff. Only
// errors wrapped in [RetryableError] are retried:
//
//   - Network errors
//   - 5xx server errors
//
// Everything else (4xx, decode failures) is returned immediately.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetchNodes(ctx)
//	})
//
// # Defaults
//
//   - Attempts: 3
//   - Initial delay: 1 second, doubling per retry
//   - Maximum delay: 8 seconds
package httputil
