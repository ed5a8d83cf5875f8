package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConflictCode is the server's marker for a duplicate link name.
const ConflictCode = "name_already_exists"

var (
	// ErrUnauthorized is returned for HTTP 401. Callers must restart authentication.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNothingToExport is returned when the collection is empty.
	ErrNothingToExport = errors.New("no links to export")
	// ErrNotAuthenticated is returned by client-side checks that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// RequestFailedError is a non-2xx response other than 401.
type RequestFailedError struct {
	Op      string
	Status  int
	Code    string // "error" field of the body, if any
	Message string // "message" field of the body, if any
}

func (e *RequestFailedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP error! status: %d (%s)", e.Op, e.Status, e.Code)
	}
	return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.Status)
}

// Unwrap makes a 401 match ErrUnauthorized.
func (e *RequestFailedError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// AuthError is a rejected credential exchange.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("keycloak error: %d - %s", e.Status, e.Body)
}

// DecodeError is a malformed import payload or token.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode " + e.Stage
	}
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a payload rejected before it reaches the network.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflict reports whether err is a duplicate-name rejection.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var rf *RequestFailedError
	if errors.As(err, &rf) && rf.Code == ConflictCode {
		return true
	}
	return strings.Contains(err.Error(), ConflictCode)
}

// IsRequestFailed reports whether err carries an HTTP status and returns it.
func IsRequestFailed(err error) (int, bool) {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Status, true
	}
	return 0, false
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
