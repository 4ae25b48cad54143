package apperror

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is reports a match on code, so errors.Is(err, ErrBlocked) holds for any
// blocked error regardless of its message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func InvalidIdentifier(msg string) error {
	return New(CodeInvalidIdentifier, msg)
}

func InvalidMessage(msg string) error {
	return New(CodeInvalidMessage, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func StoreUnavailable(cause error) error {
	return Wrap(CodeStoreUnavailable, "store unavailable", cause)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf extracts the code of the first AppError in the chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

var (
	ErrInvalidIdentifier   = InvalidIdentifier("invalid participant identifier")
	ErrInvalidMessage      = InvalidMessage("message needs text or an image and a sender")
	ErrBlocked             = New(CodeBlocked, "message blocked")
	ErrStoreUnavailable    = New(CodeStoreUnavailable, "store unavailable")
	ErrSummaryInconsistent = New(CodeSummaryInconsistent, "conversation summary not updated")
	ErrNotFound            = NotFound("not found")
	ErrForbidden           = Forbidden("access denied")
	ErrUnauthenticated     = Unauthorized("authentication required")
	ErrRateLimited         = New(CodeRateLimited, "rate limit exceeded")
)
