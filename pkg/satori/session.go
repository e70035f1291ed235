package satori

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionState is where one endpoint's session sits in its lifecycle.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateIdentifying
	StateActive
	StateClosing
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateIdentifying:
		return "identifying"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const handshakeTimeout = 10 * time.Second

// session maintains the event stream of one endpoint. One run call is one
// connection attempt: dial, identify, then pump decoded events into the
// events channel until the connection dies or ctx is cancelled. The
// supervisor decides whether and when run is called again; the resume
// cursor carries over between attempts.
type session struct {
	cfg      EndpointConfig
	registry *Registry
	api      *APIClient
	metrics  *Metrics
	logger   zerolog.Logger
	events   chan *Event

	state atomic.Int32

	mu        sync.Mutex
	conn      *websocket.Conn
	proxyURLs []string

	// Attempt bookkeeping, touched only from run's goroutine.
	resume    int64
	lastSN    int64
	seen      bool
	activeFor time.Duration
}

func newSession(cfg EndpointConfig, queueSize int, registry *Registry, api *APIClient, metrics *Metrics, logger zerolog.Logger) *session {
	return &session{
		cfg:      cfg,
		registry: registry,
		api:      api,
		metrics:  metrics,
		logger: logger.With().
			Str("component", "session").
			Str("endpoint", cfg.Identity()).
			Logger(),
		events: make(chan *Event, queueSize),
	}
}

// State returns the session's current lifecycle state.
func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *session) setState(st SessionState) {
	s.state.Store(int32(st))
	s.metrics.setState(s.cfg.Identity(), st)
}

// run performs one connection attempt and blocks until it ends. It returns
// nil when the attempt ended because ctx was cancelled, the terminal error
// otherwise. Auth failures wrap ErrHandshakeRejected so the supervisor can
// stop retrying.
func (s *session) run(ctx context.Context) error {
	s.seen = false
	s.lastSN = 0
	s.activeFor = 0

	s.setState(StateConnecting)
	url := s.cfg.WSURL()
	s.logger.Info().Str("url", url).Msg("connecting")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("ws dial %s: status %d: %w", url, resp.StatusCode, ErrHandshakeRejected)
		}
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ws dial %s: %w", url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	// Unblock the read loop when ctx is cancelled mid-connection.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.setState(StateClosing)
			s.writeClose()
			conn.Close()
		case <-watchDone:
		}
	}()

	s.setState(StateIdentifying)
	if err := s.identify(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ready, err := s.awaitReady(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	s.applyReady(ready)

	s.setState(StateActive)
	activeAt := time.Now()
	defer func() { s.activeFor = time.Since(activeAt) }()
	s.logger.Info().Int("logins", len(ready.Logins)).Msg("session active")

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go s.heartbeatLoop(heartbeatDone)

	err = s.readLoop(ctx, conn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *session) identify() error {
	body := Identify{Token: s.cfg.Token}
	if s.resume > 0 {
		body.SN = s.resume
		s.logger.Debug().Int64("sn", s.resume).Msg("resuming")
	}
	if err := s.writePayload(OpIdentify, body); err != nil {
		return fmt.Errorf("sending identify: %w", err)
	}
	return nil
}

// awaitReady reads the frame answering IDENTIFY. Anything other than
// READY counts as a rejected handshake.
func (s *session) awaitReady(conn *websocket.Conn) (*Ready, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return nil, fmt.Errorf("identify refused: %w", ErrHandshakeRejected)
		}
		return nil, fmt.Errorf("reading ready: %w", err)
	}

	p, err := ParsePayload(msg)
	if err != nil {
		return nil, fmt.Errorf("parsing ready: %w", err)
	}
	if p.Op != OpReady {
		return nil, fmt.Errorf("got %s frame during handshake: %w", p.Op, ErrHandshakeRejected)
	}
	return p.DecodeReady()
}

// applyReady registers the announced logins under this endpoint and
// records the proxy URL set.
func (s *session) applyReady(r *Ready) {
	s.mu.Lock()
	s.proxyURLs = r.ProxyURLs
	s.mu.Unlock()

	endpoint := s.cfg.Identity()
	count := 0
	for _, login := range r.Logins {
		if login.User == nil {
			s.logger.Warn().Str("platform", login.Platform).Msg("ready login without user, skipped")
			continue
		}
		if !s.cfg.Allows(login.Identity()) {
			s.logger.Debug().Str("identity", login.Identity()).Msg("login outside allowlist, skipped")
			continue
		}
		bot := s.registry.Upsert(login, endpoint, s.api)
		bot.setProxyURLs(r.ProxyURLs)
		count++
	}
	if count == 0 {
		s.logger.Warn().Msg("ready carried no usable logins")
	}
}

// applyMeta replaces the proxy URL set on the session and on every bot
// this endpoint owns.
func (s *session) applyMeta(m *Meta) {
	s.mu.Lock()
	s.proxyURLs = m.ProxyURLs
	s.mu.Unlock()

	endpoint := s.cfg.Identity()
	for _, bot := range s.registry.List() {
		if bot.ownedBy(endpoint) {
			bot.setProxyURLs(m.ProxyURLs)
		}
	}
	s.logger.Debug().Int("proxy_urls", len(m.ProxyURLs)).Msg("proxy set updated")
}

// proxyList returns the endpoint's current proxy URL set. The slice is
// replaced wholesale on updates, never mutated.
func (s *session) proxyList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxyURLs
}

func (s *session) heartbeatLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.writePayload(OpPing, nil); err != nil {
				s.logger.Warn().Err(err).Msg("heartbeat send failed")
				return
			}
			s.metrics.recordHeartbeat(s.cfg.Identity())
		}
	}
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	endpoint := s.cfg.Identity()
	stall := s.cfg.stallTimeout()

	for {
		// Any inbound frame counts as liveness, PONGs included.
		conn.SetReadDeadline(time.Now().Add(stall))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("no traffic for %s: %w", stall, ErrStalled)
			}
			return fmt.Errorf("ws read: %w", err)
		}

		p, err := ParsePayload(msg)
		if err != nil {
			s.logger.Warn().Err(err).Msg("skipping undecodable frame")
			continue
		}

		switch p.Op {
		case OpEvent:
			ev, err := p.DecodeEvent()
			if err != nil {
				s.logger.Warn().Err(err).Msg("skipping undecodable event")
				continue
			}
			s.metrics.recordEvent(endpoint)
			if err := s.checkSequence(ev.SN); err != nil {
				return err
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return nil
			}
		case OpPong:
			s.logger.Trace().Msg("pong")
		case OpPing:
			// Not in the protocol, but some gateways ping both ways.
			if err := s.writePayload(OpPong, nil); err != nil {
				s.logger.Warn().Err(err).Msg("pong send failed")
			}
		case OpMeta:
			m, err := p.DecodeMeta()
			if err != nil {
				s.logger.Warn().Err(err).Msg("skipping undecodable meta")
				continue
			}
			s.applyMeta(m)
		default:
			s.logger.Warn().Str("op", p.Op.String()).Msg("unexpected frame")
		}
	}
}

// checkSequence enforces contiguous delivery. The first event after a
// (re)connect sets the baseline; every later event must carry exactly the
// next number. A gap means events were lost with no replay path, so the
// resume cursor is cleared and the connection torn down for a full
// refresh.
func (s *session) checkSequence(sn int64) error {
	if s.seen && sn != s.lastSN+1 {
		s.resume = 0
		return fmt.Errorf("got sn %d after %d: %w", sn, s.lastSN, ErrSequenceGap)
	}
	s.seen = true
	s.lastSN = sn
	s.resume = sn
	return nil
}

func (s *session) writePayload(op Opcode, body any) error {
	data, err := EncodePayload(op, body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrSessionClosed
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) writeClose() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}
