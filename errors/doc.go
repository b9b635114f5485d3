// Package errors provides standardized error handling for the grain client
// runtime. It defines the error kinds the runtime surfaces to callers,
// classification into transient/invalid/fatal for retry decisions, and
// helpers for consistent error wrapping across components.
package errors
