package satori

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcrane/satori-go/pkg/satori/message"
)

type collectingHandler struct {
	mu     sync.Mutex
	events []*Event
	bots   []*Bot
}

func (h *collectingHandler) HandleEvent(_ context.Context, bot *Bot, ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.bots = append(h.bots, bot)
}

func (h *collectingHandler) seen() []*Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Event(nil), h.events...)
}

func newTestDispatcher(t *testing.T, epCfg EndpointConfig) (*dispatcher, *session, *Registry, *collectingHandler) {
	t.Helper()
	reg := NewRegistry(time.Minute, zerolog.Nop())
	sess := newSession(epCfg.withDefaults(), 16, reg, nil, NewMetrics(), zerolog.Nop())
	h := &collectingHandler{}
	return newDispatcher(sess, reg, h, sess.metrics, zerolog.Nop()), sess, reg, h
}

// drain feeds events through the dispatcher exactly as the session
// would and waits for the queue to empty.
func drain(t *testing.T, d *dispatcher, sess *session, evs ...*Event) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		d.run(context.Background())
		close(done)
	}()
	for _, ev := range evs {
		ev.Normalize()
		sess.events <- ev
	}
	close(sess.events)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not drain")
	}
}

func TestDispatch_DeliversInArrivalOrder(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})
	reg.Upsert(onlineLogin("discord", "42"), sess.cfg.Identity(), nil)

	drain(t, d, sess,
		&Event{SN: 1, Type: EventMessageCreated, Platform: "discord", SelfID: "42"},
		&Event{SN: 2, Type: EventMessageUpdated, Platform: "discord", SelfID: "42"},
		&Event{SN: 3, Type: EventMessageDeleted, Platform: "discord", SelfID: "42"},
	)

	evs := h.seen()
	require.Len(t, evs, 3)
	assert.Equal(t, int64(1), evs[0].SN)
	assert.Equal(t, int64(2), evs[1].SN)
	assert.Equal(t, int64(3), evs[2].SN)
}

func TestDispatch_DropsEventWithoutIdentity(t *testing.T) {
	d, sess, _, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventMessageCreated})
	assert.Empty(t, h.seen())
}

func TestDispatch_DropsEventOutsideAllowlist(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1, Allowlist: []string{"discord:42"}})
	reg.Upsert(onlineLogin("discord", "42"), sess.cfg.Identity(), nil)

	drain(t, d, sess,
		&Event{SN: 1, Type: EventMessageCreated, Platform: "discord", SelfID: "43"},
		&Event{SN: 2, Type: EventMessageCreated, Platform: "discord", SelfID: "42"},
	)

	evs := h.seen()
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2), evs[0].SN)
}

func TestDispatch_DropsEventForUnknownLogin(t *testing.T) {
	d, sess, _, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventMessageCreated, Platform: "discord", SelfID: "42"})
	assert.Empty(t, h.seen())
}

func TestDispatch_LoginAddedRegistersBot(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventLoginAdded, Login: onlineLogin("discord", "42")})

	require.Len(t, h.seen(), 1)
	bot, ok := reg.Find("discord", "42")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, bot.Status())
}

func TestDispatch_LoginAddedWithoutUserDropped(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventLoginAdded, Login: &Login{Platform: "discord", Status: StatusOnline}})

	assert.Empty(t, h.seen())
	assert.Empty(t, reg.List())
}

func TestDispatch_LoginUpdated_UnknownOfflineDropped(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	offline := onlineLogin("discord", "42")
	offline.Status = StatusConnect
	drain(t, d, sess, &Event{SN: 1, Type: EventLoginUpdated, Login: offline})

	assert.Empty(t, h.seen(), "an update for a login never announced says nothing actionable")
	assert.Empty(t, reg.List())
}

func TestDispatch_LoginUpdated_UnknownOnlineRegisters(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventLoginUpdated, Login: onlineLogin("discord", "42")})

	require.Len(t, h.seen(), 1)
	_, ok := reg.Find("discord", "42")
	assert.True(t, ok)
}

func TestDispatch_LoginRemoved_DeliversThenRemoves(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})
	reg.Upsert(onlineLogin("discord", "42"), sess.cfg.Identity(), nil)

	removed := onlineLogin("discord", "42")
	removed.Status = StatusOffline
	drain(t, d, sess, &Event{SN: 1, Type: EventLoginRemoved, Login: removed})

	require.Len(t, h.seen(), 1, "the removal event itself is still delivered")
	_, ok := reg.Find("discord", "42")
	assert.False(t, ok)
}

func TestDispatch_LoginRemoved_UnknownDropped(t *testing.T) {
	d, sess, _, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})

	drain(t, d, sess, &Event{SN: 1, Type: EventLoginRemoved, Login: onlineLogin("discord", "42")})
	assert.Empty(t, h.seen())
}

func TestDispatch_DecodesMessageContent(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})
	reg.Upsert(onlineLogin("discord", "42"), sess.cfg.Identity(), nil)

	drain(t, d, sess, &Event{
		SN: 1, Type: EventMessageCreated, Platform: "discord", SelfID: "42",
		Message: &MessageObject{ID: "m1", Content: `hello <at id="7" name="ayu"/>`},
	})

	evs := h.seen()
	require.Len(t, evs, 1)
	require.Len(t, evs[0].Content, 2)
	assert.Equal(t, message.Text{Content: "hello "}, evs[0].Content[0])
	assert.Equal(t, message.At{ID: "7", Name: "ayu"}, evs[0].Content[1])
	assert.Equal(t, "hello ", evs[0].Content.Plain())
}

func TestDispatch_SeedsNewBotWithProxyURLs(t *testing.T) {
	d, sess, reg, h := newTestDispatcher(t, EndpointConfig{Host: "h", Port: 1})
	sess.proxyURLs = []string{"https://proxy.example.com"}

	drain(t, d, sess, &Event{SN: 1, Type: EventLoginAdded, Login: onlineLogin("discord", "42")})

	require.Len(t, h.seen(), 1)
	bot, ok := reg.Find("discord", "42")
	require.True(t, ok)
	assert.Equal(t, []string{"https://proxy.example.com"}, bot.ProxyURLs())
}
