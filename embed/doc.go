// Package embed turns staged rows into embedding results.
//
// A Backend receives rows carrying a "content" column and returns exactly one
// result row per input row, in input order. Each result row keeps the input
// columns and adds two more: the embedding vector (NULL on failure) and a
// status string (empty on success). Per-row failures are encoded in the
// status column, never returned as errors:
//
//	A retryable error occurred: <cause>   transient, the row stays pending
//	PERMISSION_DENIED: <cause>            terminal, persisted as processed
//	INVALID_ARGUMENT: <cause>             terminal, persisted as processed
//
// Errors returned by Embed are invocation failures that abort the caller.
//
// TextBackend adapts an ai.Provider to Backend. It splits the input into
// sub-requests, runs them on a bounded worker pool and retries each one
// with exponential backoff before encoding a failure.
package embed
