package flowerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes surfaced by authorization flows
const (
	// Terminal flow outcomes
	ErrCodeAgentOpen       ErrorCode = "AGENT_OPEN_ERROR"
	ErrCodeUserCanceled    ErrorCode = "USER_CANCELED"
	ErrCodeProgramCanceled ErrorCode = "PROGRAM_CANCELED"

	// Collaborator errors
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeStateMismatch  ErrorCode = "STATE_MISMATCH"
	ErrCodeListenFailed   ErrorCode = "LISTEN_FAILED"
	ErrCodeProviderError  ErrorCode = "PROVIDER_ERROR"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode      // Unique error code
	Message string         // Human-readable error message
	Details map[string]any // Optional additional details
	Err     error          // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("[%s] %v", e.Code, e.Err)
		}
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes.
// Used by the loopback redirect listener when answering the user agent.
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeStateMismatch, ErrCodeProviderError:
		return http.StatusBadRequest
	case ErrCodeUserCanceled, ErrCodeProgramCanceled:
		return http.StatusGone
	case ErrCodeAgentOpen, ErrCodeListenFailed, ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Constructors for the terminal flow outcomes

// AgentOpenFailed creates an "agent open error": the chosen user-agent
// mechanism could not be launched or shown at all.
func AgentOpenFailed(err error) *Error {
	return &Error{
		Code:    ErrCodeAgentOpen,
		Message: "unable to open authorization user agent",
		Err:     err,
	}
}

// UserCanceled creates a "user canceled" error: the agent completed without
// producing a redirect. The underlying agent error, if any, is wrapped.
func UserCanceled(err error) *Error {
	return &Error{
		Code:    ErrCodeUserCanceled,
		Message: "user canceled authorization flow",
		Err:     err,
	}
}

// ProgramCanceled creates a "program canceled" error: the presented surface
// finished without a redirect, attributed to the hosting program.
func ProgramCanceled() *Error {
	return &Error{
		Code:    ErrCodeProgramCanceled,
		Message: "program canceled authorization flow",
	}
}
