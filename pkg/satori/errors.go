package satori

import (
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for session failure modes.
var (
	// ErrHandshakeRejected marks a credential or protocol-version
	// rejection during identify. Reconnecting cannot fix it.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrSequenceGap marks a hole in the event stream. The protocol has
	// no replay from an arbitrary point, so the session reconnects from
	// scratch.
	ErrSequenceGap = errors.New("event sequence gap")
	// ErrStalled marks a connection with no inbound traffic across the
	// missed-heartbeat window.
	ErrStalled = errors.New("heartbeat stalled")
	// ErrMalformedFrame marks one undecodable frame. Sessions skip such
	// frames; they never terminate on them.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrSessionClosed is returned by operations on a stopped session.
	ErrSessionClosed = errors.New("session closed")
)

// Sentinel errors mapped from action-call HTTP statuses.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrAPINotImplemented = errors.New("api not implemented")
)

// APIError represents a failed action call against a gateway.
type APIError struct {
	Action     string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (status %d): %v", e.Action, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Action, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// newAPIError maps an HTTP status to the matching sentinel.
func newAPIError(action string, statusCode int, body string) *APIError {
	e := &APIError{Action: action, StatusCode: statusCode, Body: body}
	switch statusCode {
	case 400:
		e.Err = ErrBadRequest
	case 401:
		e.Err = ErrUnauthorized
	case 403:
		e.Err = ErrForbidden
	case 404:
		e.Err = ErrNotFound
	case 405:
		e.Err = ErrMethodNotAllowed
	case 500:
		e.Err = ErrAPINotImplemented
	}
	return e
}

// IsRetryable returns true if an action-call error is likely transient
// and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuthFailure returns true if the error is a credential rejection.
// The supervisor stops reconnecting an endpoint on auth failures; every
// other session error is retried with backoff.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrHandshakeRejected) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden)
}
