package satori

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlineLogin(platform, id string) *Login {
	l := &Login{Platform: platform, User: &User{ID: id}, Status: StatusOnline}
	l.Normalize()
	return l
}

func TestRegistry_UpsertAndFind(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())

	bot := r.Upsert(onlineLogin("discord", "42"), "ep1", nil)
	require.NotNil(t, bot)
	assert.Equal(t, "discord:42", bot.Identity())

	found, ok := r.Find("discord", "42")
	require.True(t, ok)
	assert.Same(t, bot, found)

	_, ok = r.Find("discord", "43")
	assert.False(t, ok)
}

func TestRegistry_UpsertRefreshesHandleInPlace(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())

	bot := r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	update := onlineLogin("discord", "42")
	update.User.Name = "renamed"
	update.Status = StatusReconnect
	again := r.Upsert(update, "ep1", nil)

	assert.Same(t, bot, again, "existing holders keep working through the same handle")
	assert.Equal(t, "renamed", bot.Self().Name)
	assert.Equal(t, StatusReconnect, bot.Status())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	r.Remove("discord", "42")
	_, ok := r.Find("discord", "42")
	assert.False(t, ok)

	// Removing an unknown login is a no-op.
	r.Remove("discord", "nope")
}

func TestRegistry_ListSortedByIdentity(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	r.Upsert(onlineLogin("telegram", "7"), "ep1", nil)
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	bots := r.List()
	require.Len(t, bots, 2)
	assert.Equal(t, "discord:42", bots[0].Identity())
	assert.Equal(t, "telegram:7", bots[1].Identity())
}

func TestRegistry_DisconnectRemovesImmediatelyWithoutGrace(t *testing.T) {
	r := NewRegistry(0, zerolog.Nop())
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)
	r.Upsert(onlineLogin("telegram", "7"), "ep2", nil)

	r.MarkSessionDisconnected("ep1")

	_, ok := r.Find("discord", "42")
	assert.False(t, ok)
	// Logins of other endpoints are untouched.
	other, ok := r.Find("telegram", "7")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, other.Status())
}

func TestRegistry_DisconnectedLoginLingersThroughGrace(t *testing.T) {
	r := NewRegistry(30*time.Millisecond, zerolog.Nop())
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	r.MarkSessionDisconnected("ep1")

	bot, ok := r.Find("discord", "42")
	require.True(t, ok, "login lingers through the grace period")
	assert.Equal(t, StatusDisconnect, bot.Status())

	assert.Eventually(t, func() bool {
		_, ok := r.Find("discord", "42")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ReconnectCancelsScheduledRemoval(t *testing.T) {
	r := NewRegistry(30*time.Millisecond, zerolog.Nop())
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	r.MarkSessionDisconnected("ep1")
	r.Upsert(onlineLogin("discord", "42"), "ep1", nil)

	time.Sleep(80 * time.Millisecond)
	bot, ok := r.Find("discord", "42")
	require.True(t, ok, "re-announced login survives the old removal timer")
	assert.Equal(t, StatusOnline, bot.Status())
}
