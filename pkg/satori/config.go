package satori

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied by Config.withDefaults. All durations are overridable
// per Config; heartbeat tuning is per endpoint.
const (
	DefaultPort              = 5140
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultMissedBeats       = 3
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMax      = 60 * time.Second
	DefaultMinUptime         = 30 * time.Second
	DefaultLoginGrace        = 30 * time.Second
	DefaultQueueSize         = 256
	DefaultRequestTimeout    = 30 * time.Second
)

// EndpointConfig describes one Satori gateway target. It is treated as
// immutable once the client starts; identity is the (host, port, path)
// triple.
type EndpointConfig struct {
	// Host is the gateway hostname or IP.
	Host string

	// Port is the gateway TCP port.
	Port int

	// Path is an optional URL prefix mounted in front of /v1,
	// e.g. "/satori". Normalized to a leading slash and no trailing slash.
	Path string

	// Token is the gateway access token, sent in IDENTIFY and as the
	// bearer token on HTTP actions. Empty means the gateway is open.
	Token string

	// Secure selects wss/https instead of ws/http.
	Secure bool

	// Allowlist restricts which logins this endpoint will register and
	// dispatch for, as "platform:user_id" identities. Empty accepts all.
	Allowlist []string

	// HeartbeatInterval is the PING cadence while the session is active.
	HeartbeatInterval time.Duration

	// MissedBeats is how many silent heartbeat intervals are tolerated
	// before the session is declared stalled.
	MissedBeats int
}

func (e EndpointConfig) withDefaults() EndpointConfig {
	if e.Port == 0 {
		e.Port = DefaultPort
	}
	if e.Path != "" && !strings.HasPrefix(e.Path, "/") {
		e.Path = "/" + e.Path
	}
	e.Path = strings.TrimSuffix(e.Path, "/")
	if e.HeartbeatInterval <= 0 {
		e.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if e.MissedBeats <= 0 {
		e.MissedBeats = DefaultMissedBeats
	}
	return e
}

// Identity returns the endpoint's stable identity, host:port plus path.
func (e EndpointConfig) Identity() string {
	return fmt.Sprintf("%s:%d%s", e.Host, e.Port, e.Path)
}

// WSURL returns the event-stream URL, e.g. "ws://host:5140/v1/events".
func (e EndpointConfig) WSURL() string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s/v1/events", scheme, e.Host, e.Port, e.Path)
}

// HTTPURL returns the action API base, e.g. "http://host:5140/v1".
// Action names are appended as "/{resource}.{method}".
func (e EndpointConfig) HTTPURL() string {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s/v1", scheme, e.Host, e.Port, e.Path)
}

// Allows reports whether a login identity ("platform:user_id") passes the
// endpoint's allowlist.
func (e EndpointConfig) Allows(identity string) bool {
	if len(e.Allowlist) == 0 {
		return true
	}
	for _, want := range e.Allowlist {
		if want == identity {
			return true
		}
	}
	return false
}

// stallTimeout is the silence window after which the session is stalled.
func (e EndpointConfig) stallTimeout() time.Duration {
	return e.HeartbeatInterval * time.Duration(e.MissedBeats)
}

// Config configures a Client.
type Config struct {
	// Endpoints lists the gateways to maintain sessions against.
	Endpoints []EndpointConfig

	// Handler receives every dispatched event. Required.
	Handler Handler

	// QueueSize bounds each session's event queue. A full queue blocks
	// that session's reads until the handler catches up.
	QueueSize int

	// ReconnectBase is the first reconnect delay after a session failure.
	ReconnectBase time.Duration

	// ReconnectMax caps the exponential reconnect backoff.
	ReconnectMax time.Duration

	// MinUptime is how long a session must stay active before the
	// reconnect backoff resets to ReconnectBase.
	MinUptime time.Duration

	// LoginGrace is how long disconnected logins linger in the registry
	// so in-flight action calls can fail cleanly. Negative removes them
	// immediately.
	LoginGrace time.Duration

	// RequestTimeout bounds each HTTP action attempt.
	RequestTimeout time.Duration

	// Metrics collects client metrics. A fresh set is created when nil.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	endpoints := make([]EndpointConfig, len(c.Endpoints))
	for i, e := range c.Endpoints {
		endpoints[i] = e.withDefaults()
	}
	c.Endpoints = endpoints

	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = DefaultReconnectBase
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	if c.MinUptime <= 0 {
		c.MinUptime = DefaultMinUptime
	}
	if c.LoginGrace < 0 {
		c.LoginGrace = 0
	} else if c.LoginGrace == 0 {
		c.LoginGrace = DefaultLoginGrace
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
	return c
}
