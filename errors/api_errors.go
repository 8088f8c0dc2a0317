package errors

import "net/http"

// Detail messages written to HTTP clients.
const (
	DetailUnauthenticated = "Invalid authentication credentials"
	DetailServerError     = "Internal server error"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return e.Detail
}

// NewUnauthenticated never says which check failed.
func NewUnauthenticated() *APIError {
	return &APIError{Status: http.StatusUnauthorized, Detail: DetailUnauthenticated}
}

func NewUnauthorized(detail string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Detail: detail}
}

func NewForbidden(detail string) *APIError {
	return &APIError{Status: http.StatusForbidden, Detail: detail}
}

func NewBadRequest(detail string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Detail: detail}
}

func NewNotFound(detail string) *APIError {
	return &APIError{Status: http.StatusNotFound, Detail: detail}
}

func NewServerError() *APIError {
	return &APIError{Status: http.StatusInternalServerError, Detail: DetailServerError}
}
