package errors

import "fmt"

// ErrorType classifies failures across the crawl and download pipeline.
type ErrorType string

const (
	// ErrorTypeNetwork covers timeouts, resets and other transport failures.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit is a 429 or equivalent throttle response.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeAuth covers missing/expired credentials and recognized
	// bot-mitigation challenge pages. Never retried.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeParsing is an unexpected shape for a single entry or payload.
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeNotFound is a missing user or resource.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeServerError covers 5xx responses.
	ErrorTypeServerError ErrorType = "server_error"
	// ErrorTypeFilesystem covers local write failures; fatal for the affected
	// item only.
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeResourceState marks stale server-side leftovers such as an
	// orphaned unlock collection. Warning, non-blocking.
	ErrorTypeResourceState ErrorType = "resource_state"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a classified pipeline error. Code carries the HTTP status when one
// exists.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(t ErrorType, msg string, cause error) *Error {
	return &Error{Type: t, Message: msg, Cause: cause}
}

// IsRetryable reports whether an error type should be retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeFilesystem, ErrorTypeResourceState:
		return false
	default:
		return false
	}
}

// TypeForStatusCode maps an HTTP status code to an error type.
func TypeForStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
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
