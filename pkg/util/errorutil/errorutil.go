package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyClosed       = "ALREADY_CLOSED"
	CodeStageOrderViolation = "STAGE_ORDER_VIOLATION"
	CodeConflict            = "CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewMissingFields reports required stage or intake fields that were absent or malformed.
func NewMissingFields(fields []string) error {
	return NewValidationError(fmt.Sprintf("missing or invalid fields: %v", fields), map[string]any{"fields": fields})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewAlreadyClosed(details map[string]any) error {
	return NewDomainError(CodeAlreadyClosed, "complaint already closed", http.StatusConflict, details)
}

func NewStageOrderViolation(expected, got int) error {
	return NewDomainError(CodeStageOrderViolation,
		fmt.Sprintf("stage %d submitted but complaint awaits stage %d", got, expected),
		http.StatusConflict,
		map[string]any{"expected_stage": expected, "submitted_stage": got})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
