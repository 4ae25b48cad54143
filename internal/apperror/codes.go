package apperror

import "net/http"

type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeInvalidIdentifier   Code = "INVALID_IDENTIFIER"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeBlocked             Code = "BLOCKED"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeSummaryInconsistent Code = "SUMMARY_INCONSISTENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInternal            Code = "INTERNAL"
)

// HTTPStatus maps a code to the status the API answers with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeInvalidIdentifier, CodeInvalidMessage:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeBlocked, CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
