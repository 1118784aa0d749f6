package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeAuth               ErrorType = "auth"
	ErrorTypeInvalidCredentials ErrorType = "invalid_credentials"
	ErrorTypeTwoFactor          ErrorType = "two_factor"
	ErrorTypeSessionNotFound    ErrorType = "session_not_found"
	ErrorTypeParsing            ErrorType = "parsing"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeServerError        ErrorType = "server_error"
	ErrorTypeStagingIO          ErrorType = "staging_io"
	ErrorTypeSync               ErrorType = "sync"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error is a classified failure. Err holds the underlying cause, if any.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so sentinel comparisons like
// errors.Is(err, ErrNotFound) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.Code == 0
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = &Error{Type: ErrorTypeNotFound}
	ErrRateLimited        = &Error{Type: ErrorTypeRateLimit}
	ErrNetwork            = &Error{Type: ErrorTypeNetwork}
	ErrAuth               = &Error{Type: ErrorTypeAuth}
	ErrInvalidCredentials = &Error{Type: ErrorTypeInvalidCredentials}
	ErrTwoFactorRequired  = &Error{Type: ErrorTypeTwoFactor}
	ErrSessionNotFound    = &Error{Type: ErrorTypeSessionNotFound}
	ErrStagingIO          = &Error{Type: ErrorTypeStagingIO}
	ErrSync               = &Error{Type: ErrorTypeSync}
)

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

func NotFound(message string) *Error { return New(ErrorTypeNotFound, message) }

func Network(err error, message string) *Error { return Wrap(ErrorTypeNetwork, err, message) }

func StagingIO(err error, message string) *Error { return Wrap(ErrorTypeStagingIO, err, message) }

func Sync(err error, message string) *Error { return Wrap(ErrorTypeSync, err, message) }

// TypeOf returns the classification of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeSync:
		return true
	case ErrorTypeAuth, ErrorTypeInvalidCredentials, ErrorTypeTwoFactor, ErrorTypeSessionNotFound,
		ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeStagingIO:
		return false
	default:
		return false
	}
}

// IsAuthFailure reports whether err is any authentication failure.
func IsAuthFailure(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeAuth, ErrorTypeInvalidCredentials, ErrorTypeTwoFactor, ErrorTypeSessionNotFound:
		return true
	}
	return false
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps a provider HTTP status to an error type.
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
