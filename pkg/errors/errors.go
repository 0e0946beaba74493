package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypePaymentInvalid   ErrorType = "payment_invalid"
	ErrorTypeChainUnavailable ErrorType = "chain_unavailable"
	ErrorTypeDatabase         ErrorType = "database"
)

// APIError represents a structured API error
type APIError struct {
	Type        ErrorType `json:"type"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	HTTPStatus  int       `json:"-"`
	InternalErr error     `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Details, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.InternalErr
}

// ValidationError creates a bad-request error for malformed client input.
// The request never made it past format checks; no network or database
// round-trip happened.
func ValidationError(code, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// PaymentInvalidError creates an unprocessable-entity error: the claimed
// payment was inspected and permanently rejected for this transaction hash.
// Retrying the same hash will never succeed; the client must pay again.
func PaymentInvalidError(reason, details string) *APIError {
	return &APIError{
		Type:       ErrorTypePaymentInvalid,
		Code:       reason,
		Message:    "Payment verification failed",
		Details:    details,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *APIError {
	return &APIError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// ConflictError creates a conflict error
func ConflictError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeConflict,
		Code:       "RESOURCE_CONFLICT",
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// ChainUnavailableError creates a transient upstream error: the RPC endpoint
// could not be reached or returned something undecodable. Safe to retry with
// the same transaction hash.
func ChainUnavailableError(cause error) *APIError {
	return &APIError{
		Type:        ErrorTypeChainUnavailable,
		Code:        "CHAIN_UNAVAILABLE",
		Message:     "Could not verify payment: chain RPC unavailable",
		HTTPStatus:  http.StatusBadGateway,
		InternalErr: cause,
	}
}

// DatabaseError creates a database error
func DatabaseError(operation string, cause error) *APIError {
	return &APIError{
		Type:        ErrorTypeDatabase,
		Code:        "DATABASE_ERROR",
		Message:     fmt.Sprintf("Database operation failed: %s", operation),
		HTTPStatus:  http.StatusInternalServerError,
		InternalErr: cause,
	}
}

// GetAPIError extracts an APIError from an error chain, or nil.
func GetAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
