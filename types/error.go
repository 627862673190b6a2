package types

import "fmt"

// ErrorCode represents a unified error code across tripgraph.
type ErrorCode string

// External API error codes.
const (
	ErrAuth           ErrorCode = "AUTH"            // credentials missing or token fetch failed
	ErrAPI            ErrorCode = "API"             // non-2xx from an external API
	ErrSchema         ErrorCode = "SCHEMA"          // 2xx body failed structural validation
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // request rejected before being sent
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrUpstreamError  ErrorCode = "UPSTREAM_ERROR" // 5xx or network failure
)

// Dialog error codes.
const (
	ErrRouting       ErrorCode = "ROUTING"        // supervisor produced an unrecognized route
	ErrToolNotFound  ErrorCode = "TOOL_NOT_FOUND" // tool call names no registered tool
	ErrEmptyResponse ErrorCode = "EMPTY_RESPONSE" // LLM produced nothing usable after bounded retries
	ErrCheckpoint    ErrorCode = "CHECKPOINT"     // checkpoint store failure
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Body       string    `json:"body,omitempty"` // response body for API errors
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithBody attaches the upstream response body.
func (e *Error) WithBody(body string) *Error {
	e.Body = body
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
