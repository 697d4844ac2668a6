package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound        = errors.New("resource not found")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")
	ErrValidation      = errors.New("validation error")
	ErrUpstream        = errors.New("upstream feed unavailable")
	ErrServiceDegraded = errors.New("service temporarily unavailable")
)

// Machine-readable error codes returned alongside the HTTP status
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodeNotFound      = "NOT_FOUND"
	CodeUpstream      = "UPSTREAM_UNAVAILABLE"
	CodeCircuitOpen   = "CIRCUIT_OPEN"
	CodeRangeTooLarge = "RANGE_TOO_LARGE"
	CodeInternal      = "INTERNAL_ERROR"
	CodeEventNotFound = "EVENT_NOT_FOUND"
	CodeDayOutOfRange = "DAY_OUT_OF_RANGE"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode attaches a machine-readable error code
func (e *AppError) WithCode(code string) *AppError {
	e.ErrorCode = code
	return e
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return NewAppError(http.StatusNotFound, message, err).WithCode(CodeNotFound)
}

func NewBadRequestError(message string, err error) *AppError {
	if err == nil {
		err = ErrBadRequest
	}
	return NewAppError(http.StatusBadRequest, message, err).WithCode(CodeValidation)
}

func NewInternalError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternalServer
	}
	return NewAppError(http.StatusInternalServerError, message, err).WithCode(CodeInternal)
}

func NewValidationError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, ErrValidation).WithCode(CodeValidation)
}

// NewBadGatewayError reports a failing upstream feed
func NewBadGatewayError(message string, err error) *AppError {
	if err == nil {
		err = ErrUpstream
	}
	return NewAppError(http.StatusBadGateway, message, err).WithCode(CodeUpstream)
}

// NewServiceUnavailableError reports an upstream that is currently short-circuited
func NewServiceUnavailableError(message string, err error) *AppError {
	if err == nil {
		err = ErrServiceDegraded
	}
	return NewAppError(http.StatusServiceUnavailable, message, err).WithCode(CodeCircuitOpen)
}

// AsAppError extracts an AppError anywhere in the chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
