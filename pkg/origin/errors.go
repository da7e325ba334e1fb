package origin

import (
	"errors"
	"fmt"
)

// ErrOriginUnavailable is matched by every fetch failure.
var ErrOriginUnavailable = errors.New("origin unavailable")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassStatus represents a 2xx other than 200.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassRedirect represents an unfollowed 3xx.
	ErrorClassRedirect ErrorClass = "redirect"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassBody represents failures while reading the response body.
	ErrorClassBody ErrorClass = "body"
)

// Error describes a failed origin fetch.
type Error struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("origin %s error (status %d) for %s: %v",
			e.ErrorClass, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("origin %s error (status %d) for %s",
		e.ErrorClass, e.StatusCode, e.URL)
}

// Unwrap exposes ErrOriginUnavailable and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrOriginUnavailable, e.Err}
	}
	return []error{ErrOriginUnavailable}
}

// Retryable reports whether a later attempt may succeed.
// Client errors and unexpected statuses are not retried.
func (e *Error) Retryable() bool {
	switch e.ErrorClass {
	case ErrorClassServer, ErrorClassNetwork, ErrorClassBody:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is an origin error worth retrying.
// Errors that are not *Error are treated as retryable.
func IsRetryable(err error) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Retryable()
	}
	return err != nil
}
