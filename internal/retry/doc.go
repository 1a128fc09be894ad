// Package retry executes asynchronous operations with per-attempt timeouts,
// classification-driven retry, exponential backoff with jitter, and
// network-aware delay scaling.
//
// The entry point is the generic [Do] function paired with an [Executor]
// holding the default policy and the in-flight deduplication table.
// Operations tagged with an idempotency key never run concurrently with
// another operation sharing that key; the second caller fails fast with
// [ErrAlreadyInProgress].
package retry
