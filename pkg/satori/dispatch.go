package satori

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nightcrane/satori-go/pkg/satori/message"
)

// Handler is the host's event intake. HandleEvent is invoked once per
// event, in arrival order per endpoint. A slow handler applies
// backpressure to that endpoint's session; other endpoints keep flowing.
type Handler interface {
	HandleEvent(ctx context.Context, bot *Bot, event *Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, bot *Bot, event *Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, bot *Bot, event *Event) {
	f(ctx, bot, event)
}

// dispatcher drains one session's event queue: it keeps the registry in
// step with login lifecycle events, resolves the owning bot, decodes
// message content, and hands the event to the handler.
type dispatcher struct {
	sess     *session
	registry *Registry
	handler  Handler
	metrics  *Metrics
	logger   zerolog.Logger
}

func newDispatcher(sess *session, registry *Registry, handler Handler, metrics *Metrics, logger zerolog.Logger) *dispatcher {
	return &dispatcher{
		sess:     sess,
		registry: registry,
		handler:  handler,
		metrics:  metrics,
		logger: logger.With().
			Str("component", "dispatch").
			Str("endpoint", sess.cfg.Identity()).
			Logger(),
	}
}

// run consumes events until the session's queue is closed.
func (d *dispatcher) run(ctx context.Context) {
	for ev := range d.sess.events {
		d.dispatch(ctx, ev)
	}
}

func (d *dispatcher) dispatch(ctx context.Context, ev *Event) {
	endpoint := d.sess.cfg.Identity()

	identity := ev.Identity()
	if identity == "" {
		d.metrics.recordDrop(endpoint, "no_login")
		d.logger.Warn().Str("type", ev.Type).Int64("sn", ev.SN).Msg("event without login identity dropped")
		return
	}
	if !d.sess.cfg.Allows(identity) {
		d.metrics.recordDrop(endpoint, "filtered")
		d.logger.Debug().Str("identity", identity).Str("type", ev.Type).Msg("event outside allowlist dropped")
		return
	}

	bot, ok := d.resolve(ev, identity, endpoint)
	if !ok {
		return
	}

	if ev.Message != nil {
		ev.Content = message.Parse(ev.Message.Content)
	}

	bot.observe(ev)
	d.metrics.recordHandled(endpoint)
	d.handler.HandleEvent(ctx, bot, ev)
}

// resolve finds the bot an event belongs to, mutating the registry first
// when the event is itself a login lifecycle change. Events for logins
// the registry does not know are dropped quietly; that is the expected
// shape of a disconnect race, not an error.
func (d *dispatcher) resolve(ev *Event, identity, endpoint string) (*Bot, bool) {
	switch ev.Type {
	case EventLoginAdded:
		return d.upsertFromEvent(ev, endpoint)

	case EventLoginUpdated:
		if ev.Login == nil || ev.Login.User == nil {
			d.metrics.recordDrop(endpoint, "no_login")
			d.logger.Warn().Str("type", ev.Type).Msg("login event without user dropped")
			return nil, false
		}
		if _, ok := d.registry.Find(ev.Platform, ev.SelfID); !ok && ev.Login.Status != StatusOnline {
			d.metrics.recordDrop(endpoint, "unknown_login")
			d.logger.Debug().Str("identity", identity).Msg("login-updated for unknown offline login dropped")
			return nil, false
		}
		return d.upsertFromEvent(ev, endpoint)

	case EventLoginRemoved:
		bot, ok := d.registry.Find(ev.Platform, ev.SelfID)
		if !ok {
			d.metrics.recordDrop(endpoint, "unknown_login")
			d.logger.Debug().Str("identity", identity).Msg("login-removed for unknown login dropped")
			return nil, false
		}
		d.registry.Remove(ev.Platform, ev.SelfID)
		return bot, true
	}

	bot, ok := d.registry.Find(ev.Platform, ev.SelfID)
	if !ok {
		d.metrics.recordDrop(endpoint, "unknown_login")
		d.logger.Debug().Str("identity", identity).Str("type", ev.Type).Msg("event for unknown login dropped")
		return nil, false
	}
	return bot, true
}

func (d *dispatcher) upsertFromEvent(ev *Event, endpoint string) (*Bot, bool) {
	if ev.Login == nil || ev.Login.User == nil {
		d.metrics.recordDrop(endpoint, "no_login")
		d.logger.Warn().Str("type", ev.Type).Msg("login event without user dropped")
		return nil, false
	}
	bot := d.registry.Upsert(ev.Login, endpoint, d.sess.api)
	bot.setProxyURLs(d.sess.proxyList())
	return bot, true
}
