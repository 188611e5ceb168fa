// Package errors provides foundational, type-safe error primitives used across bedshift.
//
// Key features:
//   - ErrorCategory: broad classification (validation, scheduling, cycle, storage, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: retry behavior (never, backoff, user action)
//   - ClassifiedError: structured error with category, severity, and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.SchedulingError("exact alarm registration denied").
//		WithContext("trigger_id", id).
//		WithCause(originalErr).
//		Build()
package errors
