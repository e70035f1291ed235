// Package satori implements a client for the Satori chat protocol: it
// maintains WebSocket event sessions against one or more gateways, keeps a
// registry of the logins they announce, and dispatches decoded events to
// the host application in per-endpoint arrival order.
package satori

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightcrane/satori-go/internal/retry"
)

// Client supervises one session per configured endpoint: it starts them
// concurrently, restarts failed ones with capped exponential backoff, and
// tears everything down when the run context is cancelled. An endpoint
// whose credentials are rejected is parked in a failed state instead of
// being retried; the other endpoints are unaffected.
type Client struct {
	cfg       Config
	logger    zerolog.Logger
	registry  *Registry
	metrics   *Metrics
	endpoints []*endpoint
}

// endpoint bundles one target's runtime: its session, the dispatcher
// draining that session's queue, and the reconnect schedule.
type endpoint struct {
	cfg     EndpointConfig
	api     *APIClient
	sess    *session
	disp    *dispatcher
	backoff *retry.Backoff

	mu      sync.Mutex
	lastErr error
}

func (ep *endpoint) setErr(err error) {
	ep.mu.Lock()
	ep.lastErr = err
	ep.mu.Unlock()
}

func (ep *endpoint) errString() string {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.lastErr == nil {
		return ""
	}
	return ep.lastErr.Error()
}

// EndpointStatus is one endpoint's externally visible state.
type EndpointStatus struct {
	Endpoint string   `json:"endpoint"`
	State    string   `json:"state"`
	Error    string   `json:"error,omitempty"`
	Logins   []string `json:"logins,omitempty"`
}

// New builds a client from cfg. The handler is required; everything else
// falls back to defaults.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Handler == nil {
		return nil, errors.New("satori: Config.Handler is required")
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:      cfg,
		logger:   logger.With().Str("component", "client").Logger(),
		metrics:  cfg.Metrics,
		registry: NewRegistry(cfg.LoginGrace, logger),
	}

	seen := make(map[string]struct{}, len(cfg.Endpoints))
	for _, epCfg := range cfg.Endpoints {
		id := epCfg.Identity()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("satori: duplicate endpoint %s", id)
		}
		seen[id] = struct{}{}

		api := newAPIClient(epCfg, cfg.RequestTimeout, cfg.Metrics, logger)
		sess := newSession(epCfg, cfg.QueueSize, c.registry, api, cfg.Metrics, logger)
		c.endpoints = append(c.endpoints, &endpoint{
			cfg:  epCfg,
			api:  api,
			sess: sess,
			disp: newDispatcher(sess, c.registry, cfg.Handler, cfg.Metrics, logger),
			backoff: retry.NewBackoff(retry.Config{
				BaseDelay: cfg.ReconnectBase,
				MaxDelay:  cfg.ReconnectMax,
				Jitter:    true,
			}),
		})
	}
	return c, nil
}

// Run connects every endpoint and blocks until ctx is cancelled and all
// sessions and dispatchers have shut down.
func (c *Client) Run(ctx context.Context) error {
	if len(c.endpoints) == 0 {
		c.logger.Warn().Msg("no endpoints configured")
	}

	var wg sync.WaitGroup
	for _, ep := range c.endpoints {
		ep := ep
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.supervise(ctx, ep)
		}()
		go func() {
			defer wg.Done()
			ep.disp.run(ctx)
		}()
	}
	wg.Wait()
	c.logger.Info().Msg("client stopped")
	return nil
}

// supervise runs one endpoint's reconnect loop until ctx is cancelled or
// the endpoint fails permanently.
func (c *Client) supervise(ctx context.Context, ep *endpoint) {
	defer close(ep.sess.events)

	id := ep.cfg.Identity()
	log := c.logger.With().Str("endpoint", id).Logger()

	for {
		err := ep.sess.run(ctx)
		c.registry.MarkSessionDisconnected(id)

		if ctx.Err() != nil || err == nil {
			ep.sess.setState(StateIdle)
			log.Info().Msg("session closed")
			return
		}

		if IsAuthFailure(err) {
			ep.setErr(err)
			ep.sess.setState(StateFailed)
			log.Error().Err(err).Msg("authentication rejected, endpoint disabled until restart")
			return
		}

		if ep.sess.activeFor >= c.cfg.MinUptime {
			ep.backoff.Reset()
		}
		delay := ep.backoff.Next()

		// The first failure in a streak logs loudly, repeats are
		// demoted to keep a flapping gateway from flooding the log.
		ev := log.Warn()
		if ep.backoff.Attempt() > 1 {
			ev = log.Debug()
		}
		ev.Err(err).
			Dur("retry_in", delay).
			Dur("was_active", ep.sess.activeFor).
			Msg("session ended, reconnecting")

		c.metrics.recordReconnect(id)
		ep.sess.setState(StateIdle)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Status reports the state of every endpoint and the logins it owns.
func (c *Client) Status() []EndpointStatus {
	bots := c.registry.List()
	out := make([]EndpointStatus, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		id := ep.cfg.Identity()
		st := EndpointStatus{
			Endpoint: id,
			State:    ep.sess.State().String(),
			Error:    ep.errString(),
		}
		for _, b := range bots {
			if b.ownedBy(id) {
				st.Logins = append(st.Logins, b.Identity())
			}
		}
		out = append(out, st)
	}
	return out
}

// Ready reports whether the client is usefully connected: every
// configuration with endpoints needs at least one active session.
func (c *Client) Ready() bool {
	if len(c.endpoints) == 0 {
		return true
	}
	for _, ep := range c.endpoints {
		if ep.sess.State() == StateActive {
			return true
		}
	}
	return false
}

// Bots returns every registered bot handle, ordered by identity.
func (c *Client) Bots() []*Bot {
	return c.registry.List()
}

// Bot looks up the handle for one login.
func (c *Client) Bot(platform, selfID string) (*Bot, bool) {
	return c.registry.Find(platform, selfID)
}

// Metrics returns the client's metric set, for mounting its handler.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}
