// Package apperror provides structured error handling for the stock core.
// Every ledger and workflow failure surfaces as an AppError with a stable code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. One code per error kind; clients branch on these, never on messages.
const (
	// Infrastructure errors (5xx)
	CodeInternal           = "INTERNAL_ERROR"
	CodeInvariantViolation = "INVARIANT_VIOLATION"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Ledger arithmetic (422)
	CodeInsufficientStock          = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailableStock = "INSUFFICIENT_AVAILABLE_STOCK"
	CodeReservationExceedsQuantity = "RESERVATION_EXCEEDS_QUANTITY"

	// Authorization errors (401)
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicate              = "DUPLICATE"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (ledger key, quantities, states)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// NewInvalidStateTransition reports that a document is not in a status that allows the event.
func NewInvalidStateTransition(entity, event, from string) *AppError {
	return &AppError{
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("%s cannot %s from status %s", entity, event, from),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "event": event, "from": from},
	}
}

// NewInsufficientStock reports that on-hand or reserved stock at a key cannot cover a request.
func NewInsufficientStock(key string, requested, available float64) *AppError {
	return stockError(CodeInsufficientStock, "insufficient stock", key, requested, available)
}

// NewInsufficientAvailableStock reports that no combination of candidates covers a demand.
func NewInsufficientAvailableStock(key string, requested, available float64) *AppError {
	return stockError(CodeInsufficientAvailableStock, "insufficient available stock", key, requested, available)
}

// NewReservationExceedsQuantity reports that reserved would exceed on-hand quantity.
func NewReservationExceedsQuantity(key string, reserved, quantity float64) *AppError {
	return &AppError{
		Code:       CodeReservationExceedsQuantity,
		Message:    fmt.Sprintf("reservation exceeds quantity at %s: reserved %g, quantity %g", key, reserved, quantity),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"key":      key,
			"reserved": reserved,
			"quantity": quantity,
		},
	}
}

func stockError(code, message, key string, requested, available float64) *AppError {
	shortfall := requested - available
	if shortfall < 0 {
		shortfall = 0
	}
	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf("%s at %s: requested %g, available %g", message, key, requested, available),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"key":       key,
			"requested": requested,
			"available": available,
			"shortfall": shortfall,
		},
	}
}

// NewInvariantViolation signals an internal consistency failure. It indicates a bug, not a user error.
func NewInvariantViolation(message string) *AppError {
	return &AppError{
		Code:       CodeInvariantViolation,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether any AppError in err's tree carries the given code.
// Joined errors are searched branch by branch, so a compensation failure
// joined onto a stock error matches both codes.
func Is(err error, code string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *AppError:
		if e == nil {
			return false
		}
		return e.Code == code || Is(e.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Is(e.Unwrap(), code)
	}
	return false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsStockShortage reports whether err is one of the stock arithmetic errors that carry a shortfall.
func IsStockShortage(err error) bool {
	return Is(err, CodeInsufficientStock) || Is(err, CodeInsufficientAvailableStock)
}

// ShortfallOf returns the shortfall detail of a stock error.
func ShortfallOf(err error) (float64, bool) {
	appErr, ok := AsAppError(err)
	if !ok {
		return 0, false
	}
	v, ok := appErr.Details["shortfall"].(float64)
	return v, ok
}
