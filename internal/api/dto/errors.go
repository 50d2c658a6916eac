package dto

// APIError represents a structured error response.
// All error responses from the API use this format for consistency.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeConflict      = "conflict"
	ErrCodeUnavailable   = "service_unavailable"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeInternalError = "internal_error"
	ErrCodeValidation    = "validation_error"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// UnauthorizedError creates an authentication-failure response.
func UnauthorizedError() APIError {
	return NewAPIError(ErrCodeUnauthorized, "missing or invalid credentials")
}

// ForbiddenError creates an ownership-mismatch response. Deliberately
// generic; it must not leak details of the foreign resource.
func ForbiddenError() APIError {
	return NewAPIError(ErrCodeForbidden, "access denied")
}

// ConflictError creates an already-resolved response.
func ConflictError(message string) APIError {
	return NewAPIError(ErrCodeConflict, message)
}

// UnavailableError creates an upstream-failure response.
func UnavailableError(message string) APIError {
	return NewAPIError(ErrCodeUnavailable, message)
}

// RateLimitedError creates a throttled response naming the retry delay.
func RateLimitedError(message string) APIError {
	return NewAPIError(ErrCodeRateLimited, message)
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}
