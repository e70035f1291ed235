package satori

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPIClient points an APIClient at a httptest server, with retry
// delays shrunk so failure tests stay fast.
func testAPIClient(t *testing.T, srv *httptest.Server, token string) *APIClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := newAPIClient(EndpointConfig{Host: u.Hostname(), Port: port, Token: token}, 5*time.Second, NewMetrics(), zerolog.Nop())
	c.retryCfg.BaseDelay = time.Millisecond
	c.retryCfg.MaxDelay = 5 * time.Millisecond
	return c
}

func TestAPIClient_Call_RequestShape(t *testing.T) {
	var gotPath, gotBody string
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	params := struct {
		ChannelID string `json:"channel_id"`
		Content   string `json:"content"`
	}{"c1", "hello"}
	var out []*MessageObject
	require.NoError(t, c.Call(context.Background(), "42", "discord", "message.create", params, &out))

	assert.Equal(t, "/v1/message.create", gotPath)
	assert.Equal(t, "Bearer tok", gotHeader.Get("Authorization"))
	assert.Equal(t, "42", gotHeader.Get("X-Self-ID"))
	assert.Equal(t, "discord", gotHeader.Get("X-Platform"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.NotEmpty(t, gotHeader.Get("X-Request-ID"))
	assert.JSONEq(t, `{"channel_id": "c1", "content": "hello"}`, gotBody)
}

func TestAPIClient_Call_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "")
	require.NoError(t, c.Call(context.Background(), "42", "discord", "channel.get", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestAPIClient_Call_NilParamsMeansEmptyBody(t *testing.T) {
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotLen = len(body)
		w.Write([]byte(`{"sn": 1, "platform": "discord", "self_id": "42"}`))
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	var out Login
	require.NoError(t, c.Call(context.Background(), "42", "discord", "login.get", nil, &out))
	assert.Zero(t, gotLen)
	assert.Equal(t, "42", out.SelfID)
}

func TestAPIClient_Call_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "m1"}, {"id": "m2"}]`))
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	var out []*MessageObject
	require.NoError(t, c.Call(context.Background(), "42", "discord", "message.create", struct{}{}, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestAPIClient_Call_EmptyResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	var out Channel
	require.NoError(t, c.Call(context.Background(), "42", "discord", "channel.get", struct{}{}, &out))
	assert.Empty(t, out.ID)
}

func TestAPIClient_Call_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such channel", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	err := c.Call(context.Background(), "42", "discord", "channel.get", struct{}{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "channel.get", apiErr.Action)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "no such channel")
}

func TestAPIClient_Call_RetriesServerBusy(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id": "c1"}`))
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	var out Channel
	require.NoError(t, c.Call(context.Background(), "42", "discord", "channel.get", struct{}{}, &out))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "c1", out.ID)
}

func TestAPIClient_Call_NoRetryOnBadRequest(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad params", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testAPIClient(t, srv, "tok")
	err := c.Call(context.Background(), "42", "discord", "channel.get", struct{}{}, nil)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, 1, attempts)
}
