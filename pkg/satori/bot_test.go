package satori

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBot_Accessors(t *testing.T) {
	login := onlineLogin("discord", "42")
	login.User.Name = "helper"
	b := newBot(login, "ep1", nil, zerolog.Nop())

	assert.Equal(t, "42", b.SelfID())
	assert.Equal(t, "discord", b.Platform())
	assert.Equal(t, "discord:42", b.Identity())
	assert.Equal(t, StatusOnline, b.Status())
	assert.True(t, b.Online())
	assert.Equal(t, "helper", b.Self().Name)
	assert.True(t, b.ownedBy("ep1"))
	assert.False(t, b.ownedBy("ep2"))
}

func TestBot_SetStatusReplacesSnapshot(t *testing.T) {
	b := newBot(onlineLogin("discord", "42"), "ep1", nil, zerolog.Nop())
	before := b.Login()

	b.setStatus(StatusDisconnect)

	assert.Equal(t, StatusDisconnect, b.Status())
	assert.Equal(t, StatusOnline, before.Status, "held snapshots never mutate")
}

func TestBot_ProxyURLsCopied(t *testing.T) {
	b := newBot(onlineLogin("discord", "42"), "ep1", nil, zerolog.Nop())
	b.setProxyURLs([]string{"https://proxy.example.com"})

	urls := b.ProxyURLs()
	urls[0] = "mutated"
	assert.Equal(t, []string{"https://proxy.example.com"}, b.ProxyURLs())
}

func TestBot_UpdateLoginKeepsProxyURLs(t *testing.T) {
	b := newBot(onlineLogin("discord", "42"), "ep1", nil, zerolog.Nop())
	b.setProxyURLs([]string{"https://proxy.example.com"})

	b.updateLogin(onlineLogin("discord", "42"), "ep1")
	assert.Equal(t, []string{"https://proxy.example.com"}, b.ProxyURLs())

	withOwn := onlineLogin("discord", "42")
	withOwn.ProxyURLs = []string{"https://other.example.com"}
	b.updateLogin(withOwn, "ep1")
	assert.Equal(t, []string{"https://other.example.com"}, b.ProxyURLs())
}

func TestBot_GuildCachedUntilInvalidated(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id": "g1", "name": "guild"}`))
	}))
	defer srv.Close()

	b := newBot(onlineLogin("discord", "42"), "ep1", testAPIClient(t, srv, ""), zerolog.Nop())
	ctx := context.Background()

	g, err := b.Guild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "guild", g.Name)

	_, err = b.Guild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "repeat lookup served from cache")

	b.observe(&Event{Type: EventGuildUpdated, Guild: &Guild{ID: "g1"}})

	_, err = b.Guild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, hits, "update event invalidates the cache entry")
}

func TestBot_UserCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id": "u1", "name": "someone"}`))
	}))
	defer srv.Close()

	b := newBot(onlineLogin("discord", "42"), "ep1", testAPIClient(t, srv, ""), zerolog.Nop())
	ctx := context.Background()

	u, err := b.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "someone", u.Name)

	_, err = b.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}
