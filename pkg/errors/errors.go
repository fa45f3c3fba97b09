package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminAlreadyExists = errors.New("admin already exists")
	ErrAdminDisabled      = errors.New("admin account is disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrRateLimited        = errors.New("rate limit exceeded")

	// ErrValidation marks input the relay refuses before it reaches persistence.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks a conversation store failure.
	ErrPersistence = errors.New("persistence failure")
	ErrNotJoined   = errors.New("connection has not joined the conversation")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAdminDisabled), errors.Is(err, ErrNotJoined):
		return http.StatusForbidden
	case errors.Is(err, ErrAdminAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a short machine readable code for err, used in websocket error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBadRequest):
		return "validation"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return "forbidden"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
