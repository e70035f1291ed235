package satori

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIError_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{400, ErrBadRequest},
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{405, ErrMethodNotAllowed},
		{500, ErrAPINotImplemented},
	}
	for _, tc := range cases {
		err := newAPIError("message.create", tc.status, "")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestAPIError_UnmappedStatus(t *testing.T) {
	err := newAPIError("message.create", 418, "teapot")
	assert.Nil(t, err.Err)
	assert.Contains(t, err.Error(), "message.create")
	assert.Contains(t, err.Error(), "418")
	assert.Contains(t, err.Error(), "teapot")
}

func TestIsRetryable(t *testing.T) {
	for _, status := range []int{429, 502, 503, 504} {
		assert.True(t, IsRetryable(newAPIError("a", status, "")), "status %d", status)
	}
	for _, status := range []int{400, 401, 403, 404, 405, 500} {
		assert.False(t, IsRetryable(newAPIError("a", status, "")), "status %d", status)
	}

	assert.True(t, IsRetryable(&net.DNSError{Err: "no such host"}))
	assert.True(t, IsRetryable(&url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}))
	assert.True(t, IsRetryable(fmt.Errorf("executing call: %w", &url.Error{Op: "Post", Err: errors.New("reset")})))

	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(ErrHandshakeRejected))
	assert.True(t, IsAuthFailure(fmt.Errorf("dial: %w", ErrHandshakeRejected)))
	assert.True(t, IsAuthFailure(newAPIError("login.get", 401, "")))
	assert.True(t, IsAuthFailure(newAPIError("login.get", 403, "")))

	assert.False(t, IsAuthFailure(ErrStalled))
	assert.False(t, IsAuthFailure(ErrSequenceGap))
	assert.False(t, IsAuthFailure(newAPIError("login.get", 503, "")))
	assert.False(t, IsAuthFailure(nil))
}
