package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSession means nobody is logged in, so no request was made.
	ErrNoSession = errors.New("no remote session")

	// ErrUnavailable wraps transport failures: DNS, refused connections,
	// resets, TLS errors. The server was never reached.
	ErrUnavailable = errors.New("remote server unavailable")

	ErrInvalidServer = errors.New("invalid server url")

	ErrUnauthorized = errors.New("remote rejected credentials")
	ErrNotFound     = errors.New("not found on remote")
	ErrRateLimited  = errors.New("remote rate limit exceeded")
)

// ServerError is a response with an unexpected status.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote server error: status %d: %s", e.StatusCode, e.Body)
}

// IsUnavailable reports whether the remote could not be asked at all,
// either because of the network or because there is no session.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNoSession)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *ServerError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.As(err, &se):
		return se.StatusCode
	}
	return 0
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode >= 500
}

// Absent reports whether a remote result should be treated as not present.
// Any classified failure qualifies; cancellation of the caller does not.
func Absent(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// FromRemote reports whether err was produced at the remote boundary
// rather than by the local store.
func FromRemote(err error) bool {
	var se *ServerError
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.As(err, &se)
}
