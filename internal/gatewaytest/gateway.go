// Package gatewaytest provides a scriptable in-process Satori gateway for
// exercising the client against real WebSocket traffic: it answers
// IDENTIFY with READY, replies to pings, and lets tests push events,
// publish META updates, and kill connections at will.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nightcrane/satori-go/pkg/satori"
)

// Options scripts the gateway's behavior.
type Options struct {
	// Token, when set, must match the token in IDENTIFY; a mismatch is
	// answered with a policy-violation close.
	Token string

	// RejectUpgrade refuses the WebSocket upgrade itself with HTTP 401,
	// for clients that must treat the dial as an auth failure.
	RejectUpgrade bool

	// DropPings makes the gateway swallow PING frames without answering,
	// so clients watching for inbound traffic see a silent connection.
	DropPings bool

	// Logins are announced in READY.
	Logins []*satori.Login

	// ProxyURLs are announced in READY.
	ProxyURLs []string
}

// Gateway is one fake Satori gateway listening on a random local port.
type Gateway struct {
	opts     Options
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      map[*conn]struct{}
	sn         int64
	pings      int
	identifies []satori.Identify
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(op satori.Opcode, body any) error {
	data, err := satori.EncodePayload(op, body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// New starts a gateway. Callers must Close it.
func New(opts Options) *Gateway {
	g := &Gateway{
		opts:  opts,
		conns: make(map[*conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", g.handleEvents)
	g.srv = httptest.NewServer(mux)
	return g
}

// Close shuts the gateway down, dropping every live connection.
func (g *Gateway) Close() {
	g.DropConnections()
	g.srv.Close()
}

// Endpoint returns an endpoint config pointing at the gateway. Callers
// may tighten its heartbeat settings before use.
func (g *Gateway) Endpoint() satori.EndpointConfig {
	u, err := url.Parse(g.srv.URL)
	if err != nil {
		panic("gatewaytest: bad test server url: " + err.Error())
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		panic("gatewaytest: bad test server port: " + err.Error())
	}
	return satori.EndpointConfig{
		Host:  u.Hostname(),
		Port:  port,
		Token: g.opts.Token,
	}
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if g.opts.RejectUpgrade {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}

	if !g.handshake(c) {
		ws.Close()
		return
	}

	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.conns, c)
		g.mu.Unlock()
		ws.Close()
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var p satori.Payload
		if err := json.Unmarshal(msg, &p); err != nil {
			continue
		}
		if p.Op == satori.OpPing {
			g.mu.Lock()
			g.pings++
			g.mu.Unlock()
			if !g.opts.DropPings {
				_ = c.send(satori.OpPong, nil)
			}
		}
	}
}

// handshake reads IDENTIFY and answers READY, or refuses the session.
func (g *Gateway) handshake(c *conn) bool {
	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.ws.SetReadDeadline(time.Time{})

	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return false
	}
	var p satori.Payload
	if err := json.Unmarshal(msg, &p); err != nil {
		return false
	}
	if p.Op != satori.OpIdentify {
		return false
	}
	var id satori.Identify
	if len(p.Body) > 0 {
		if err := json.Unmarshal(p.Body, &id); err != nil {
			return false
		}
	}

	g.mu.Lock()
	g.identifies = append(g.identifies, id)
	g.mu.Unlock()

	if g.opts.Token != "" && id.Token != g.opts.Token {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			deadline,
		)
		return false
	}

	ready := satori.Ready{Logins: g.opts.Logins, ProxyURLs: g.opts.ProxyURLs}
	return c.send(satori.OpReady, ready) == nil
}

// Push sends an event on every live connection, stamping it with the next
// sequence number. It returns the number used.
func (g *Gateway) Push(ev *satori.Event) int64 {
	g.mu.Lock()
	g.sn++
	sn := g.sn
	g.mu.Unlock()
	g.PushWithSN(sn, ev)
	return sn
}

// PushWithSN sends an event with an explicit sequence number and moves
// the auto-numbering cursor there, so tests can force gaps.
func (g *Gateway) PushWithSN(sn int64, ev *satori.Event) {
	ev.SN = sn
	g.mu.Lock()
	g.sn = sn
	conns := g.liveConns()
	g.mu.Unlock()
	for _, c := range conns {
		_ = c.send(satori.OpEvent, ev)
	}
}

// SendMeta publishes a proxy URL update on every live connection.
func (g *Gateway) SendMeta(proxyURLs []string) {
	g.mu.Lock()
	conns := g.liveConns()
	g.mu.Unlock()
	for _, c := range conns {
		_ = c.send(satori.OpMeta, satori.Meta{ProxyURLs: proxyURLs})
	}
}

// DropConnections abruptly closes every live connection without a close
// frame, as a dying gateway would.
func (g *Gateway) DropConnections() {
	g.mu.Lock()
	conns := g.liveConns()
	g.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
}

// liveConns snapshots the connection set. Callers hold g.mu.
func (g *Gateway) liveConns() []*conn {
	out := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		out = append(out, c)
	}
	return out
}

// ConnCount returns the number of live event-stream connections.
func (g *Gateway) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Pings returns how many PING frames the gateway has received.
func (g *Gateway) Pings() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pings
}

// Identifies returns every IDENTIFY body received, in arrival order.
func (g *Gateway) Identifies() []satori.Identify {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]satori.Identify, len(g.identifies))
	copy(out, g.identifies)
	return out
}
