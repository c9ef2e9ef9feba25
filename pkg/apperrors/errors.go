// Package apperrors defines the sentinel errors shared across packages.
// Callers match them with errors.Is after wrapping.
package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEmbeddingFailure  = errors.New("embedding provider failure")
	ErrStoreFailure      = errors.New("semantic store failure")
	ErrNoSQLBlock        = errors.New("response contains no SQL block")
	ErrToolsNotSupported = errors.New("llm provider does not support tool calling")
)
