package satori

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nightcrane/satori-go/internal/retry"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient issues Satori action calls against one endpoint. Every action
// is an HTTP POST to {base}/{resource}.{method} with a JSON body; the
// acting login is carried in the X-Self-ID and X-Platform headers.
type APIClient struct {
	baseURL    string
	token      string
	httpClient HTTPClient
	retryCfg   retry.Config
	metrics    *Metrics
	logger     zerolog.Logger
}

func newAPIClient(ep EndpointConfig, timeout time.Duration, metrics *Metrics, logger zerolog.Logger) *APIClient {
	return &APIClient{
		baseURL:    ep.HTTPURL(),
		token:      ep.Token,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Jitter:      true,
			RetryIf:     IsRetryable,
		},
		metrics: metrics,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *APIClient) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// BaseURL returns the action API base URL.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Call invokes one action as the given login and decodes the JSON response
// into out when out is non-nil. Transient failures (network errors, 429,
// 502-504) are retried with backoff; other HTTP errors are returned as an
// *APIError immediately.
func (c *APIClient) Call(ctx context.Context, selfID, platform, action string, params, out any) error {
	var body []byte
	if params != nil {
		var err error
		body, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling %s params: %w", action, err)
		}
	}

	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.do(ctx, selfID, platform, action, body, out)
	})
}

func (c *APIClient) do(ctx context.Context, selfID, platform, action string, body []byte, out any) error {
	url := c.baseURL + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", action, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if selfID != "" {
		req.Header.Set("X-Self-ID", selfID)
	}
	if platform != "" {
		req.Header.Set("X-Platform", platform)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.recordAction(action, "network_error")
		return fmt.Errorf("executing %s: %w", action, err)
	}
	defer resp.Body.Close()

	c.metrics.recordAction(action, strconv.Itoa(resp.StatusCode))
	c.metrics.observeAction(action, time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(action, resp.StatusCode, string(respBody))
		c.logger.Warn().
			Str("action", action).
			Int("status", resp.StatusCode).
			Msg("action failed")
		return apiErr
	}

	c.logger.Debug().
		Str("action", action).
		Dur("elapsed", time.Since(start)).
		Msg("action ok")

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", action, err)
	}
	return nil
}
