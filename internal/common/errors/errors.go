// internal/common/errors/errors.go

// Package errors provides standardized error handling for the cache and
// aggregation engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration / wiring errors: never retryable.
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeMethodNotRegistered  ErrorCode = "METHOD_NOT_REGISTERED"
	ErrCodeInnerKeyTypeInvalid  ErrorCode = "INNER_KEY_TYPE_INVALID"

	// Credential errors: fatal at the point of use.
	ErrCodeTokenMissing ErrorCode = "TOKEN_MISSING"

	// Upstream errors: the external fetch backend failed.
	ErrCodeUpstreamFailed  ErrorCode = "UPSTREAM_FAILED"
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"

	// Contract errors: a collaborator returned a shape violating the
	// single-level envelope invariant.
	ErrCodeAggregationContract ErrorCode = "AGGREGATION_CONTRACT_VIOLATION"

	// Cache store errors.
	ErrCodeCacheStoreFailed ErrorCode = "CACHE_STORE_FAILED"

	// Job registry errors.
	ErrCodeJobSpecInvalid  ErrorCode = "JOB_SPEC_INVALID"
	ErrCodeJobSpecNotFound ErrorCode = "JOB_SPEC_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed. Returns an
// empty code when err carries no StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigurationError creates a non-retryable configuration error.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Invalid engine configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMethodNotRegisteredError creates a non-retryable error for an
// unresolvable upstream method identity.
func NewMethodNotRegisteredError(apiName, method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotRegistered,
		Message:   "Upstream method is not registered",
		Details:   fmt.Sprintf("api: %s, method: %s", apiName, method),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInnerKeyTypeError creates a non-retryable error for an unsupported
// inner key type on an aggregation job.
func NewInnerKeyTypeError(keyType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInnerKeyTypeInvalid,
		Message:   "Unsupported inner key type",
		Details:   fmt.Sprintf("innerKeyType: %s", keyType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingTokenError creates an error for an organization without a
// registered credential.
func NewMissingTokenError(org string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenMissing,
		Message:   "No token registered for organization",
		Details:   fmt.Sprintf("org: %s", org),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamError creates a retryable error wrapping a fetch backend failure.
func NewUpstreamError(apiName, method string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamFailed,
		Message:   "Upstream fetch failed",
		Details:   fmt.Sprintf("api: %s, method: %s, error: %s", apiName, method, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAggregationContractError creates an error for an envelope nested inside
// another envelope's data field.
func NewAggregationContractError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAggregationContract,
		Message:   "Collaborator violated the single-level envelope contract",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheStoreError creates a retryable error wrapping a cache store failure.
func NewCacheStoreError(op, key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheStoreFailed,
		Message:   "Cache store operation failed",
		Details:   fmt.Sprintf("op: %s, key: %s, error: %s", op, key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewJobSpecInvalidError creates a non-retryable job registry error.
func NewJobSpecInvalidError(name, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobSpecInvalid,
		Message:   "Aggregation job spec failed validation",
		Details:   fmt.Sprintf("job: %s, %s", name, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobSpecNotFoundError creates a non-retryable job registry error.
func NewJobSpecNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobSpecNotFound,
		Message:   "Aggregation job spec not found in registry",
		Details:   fmt.Sprintf("job: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
