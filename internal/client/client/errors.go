package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/peny/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired means the refresh token was rejected. The local
	// session has been cleared and the user must log in again.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// APIError is a non-2xx response. It unwraps to the matching sentinel in
// common so callers can use errors.Is.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Kind       string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return common.ErrorValidation
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorConflict
	}
	return nil
}
