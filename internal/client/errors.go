package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is returned by every client operation. Callers branch on Kind;
// Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 when the request never completed
	Code    string // machine-readable error code (e.g., "invalid_credentials", "not_found")
	Message string // human-readable message
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind classifies client errors.
type ErrorKind int

const (
	KindUnauthorized ErrorKind = iota // 401, missing/invalid/expired credential
	KindForbidden                     // 403
	KindValidation                    // 400/409/422 or rejected locally
	KindNotFound                      // 404
	KindRateLimited                   // 429, quota exhausted
	KindServer                        // 5xx or unexpected response
	KindNetwork                       // request never completed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// HTTPStatus maps an ErrorKind to the status the local dashboard API
// answers with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindServer, KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: message}
}

func newNetwork(err error) *Error {
	return &Error{Kind: KindNetwork, Code: "network_error", Message: "the service could not be reached, try again", Err: err}
}

// kindForStatus classifies a non-2xx response.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

// KindOf returns the kind of err, and false if err is not a client error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsUnauthorized(err error) bool { return isKind(err, KindUnauthorized) }
func IsNotFound(err error) bool     { return isKind(err, KindNotFound) }
func IsValidation(err error) bool   { return isKind(err, KindValidation) }
func IsNetwork(err error) bool      { return isKind(err, KindNetwork) }

// Message returns a user-displayable message for any error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "an unexpected error occurred"
}
