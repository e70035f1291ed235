package satori

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nightcrane/satori-go/lru"
)

// infoCacheSize bounds each of the per-bot user/channel/guild caches.
const infoCacheSize = 128

// Bot is the long-lived handle for one login on one endpoint. Handles stay
// valid across reconnects: the registry refreshes them in place, so code
// holding a *Bot never works through a stale pointer.
type Bot struct {
	selfID   string
	platform string
	api      *APIClient
	logger   zerolog.Logger

	mu        sync.RWMutex
	login     *Login
	owner     string
	proxyURLs []string

	users    *lru.Cache[string, *User]
	channels *lru.Cache[string, *Channel]
	guilds   *lru.Cache[string, *Guild]
}

func newBot(login *Login, owner string, api *APIClient, logger zerolog.Logger) *Bot {
	return &Bot{
		selfID:   login.SelfID,
		platform: login.Platform,
		api:      api,
		logger: logger.With().
			Str("component", "bot").
			Str("platform", login.Platform).
			Str("self_id", login.SelfID).
			Logger(),
		login:     login,
		owner:     owner,
		proxyURLs: login.ProxyURLs,
		users:     lru.New[string, *User](infoCacheSize),
		channels:  lru.New[string, *Channel](infoCacheSize),
		guilds:    lru.New[string, *Guild](infoCacheSize),
	}
}

// SelfID returns the account's platform user ID.
func (b *Bot) SelfID() string { return b.selfID }

// Platform returns the account's platform name.
func (b *Bot) Platform() string { return b.platform }

// Identity returns the "platform:self_id" key the bot is registered under.
func (b *Bot) Identity() string { return b.platform + ":" + b.selfID }

// Login returns the most recent login snapshot. The returned value is
// replaced, never mutated, on updates; callers may hold it.
func (b *Bot) Login() *Login {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.login
}

// Status returns the login's last announced status.
func (b *Bot) Status() LoginStatus {
	return b.Login().Status
}

// Online reports whether the login is currently online.
func (b *Bot) Online() bool {
	return b.Status() == StatusOnline
}

// Self returns the account's own user object, if the gateway announced one.
func (b *Bot) Self() *User {
	return b.Login().User
}

// ProxyURLs returns the endpoint's current proxy URL prefixes, as
// announced by the READY frame and refreshed by META updates.
func (b *Bot) ProxyURLs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.proxyURLs))
	copy(out, b.proxyURLs)
	return out
}

func (b *Bot) updateLogin(login *Login, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.login = login
	b.owner = owner
	if len(login.ProxyURLs) > 0 {
		b.proxyURLs = login.ProxyURLs
	}
}

// setStatus replaces the login snapshot with a copy carrying the new
// status.
func (b *Bot) setStatus(s LoginStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	login := *b.login
	login.Status = s
	b.login = &login
}

func (b *Bot) setProxyURLs(urls []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proxyURLs = urls
}

func (b *Bot) ownedBy(endpoint string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.owner == endpoint
}

// observe keeps the info caches honest as events flow past.
func (b *Bot) observe(ev *Event) {
	switch ev.Type {
	case EventGuildUpdated, EventGuildRemoved:
		if ev.Guild != nil {
			b.guilds.Delete(ev.Guild.ID)
		}
	}
}

// User fetches a user profile, serving repeat lookups from the bot's LRU
// cache.
func (b *Bot) User(ctx context.Context, userID string) (*User, error) {
	if u, ok := b.users.Get(userID); ok {
		return u, nil
	}
	u, err := b.UserGet(ctx, userID)
	if err != nil {
		return nil, err
	}
	b.users.Put(userID, u)
	return u, nil
}

// Channel fetches a channel, serving repeat lookups from the bot's LRU
// cache.
func (b *Bot) Channel(ctx context.Context, channelID string) (*Channel, error) {
	if ch, ok := b.channels.Get(channelID); ok {
		return ch, nil
	}
	ch, err := b.ChannelGet(ctx, channelID)
	if err != nil {
		return nil, err
	}
	b.channels.Put(channelID, ch)
	return ch, nil
}

// Guild fetches a guild, serving repeat lookups from the bot's LRU cache.
func (b *Bot) Guild(ctx context.Context, guildID string) (*Guild, error) {
	if g, ok := b.guilds.Get(guildID); ok {
		return g, nil
	}
	g, err := b.GuildGet(ctx, guildID)
	if err != nil {
		return nil, err
	}
	b.guilds.Put(guildID, g)
	return g, nil
}

func (b *Bot) call(ctx context.Context, action string, params, out any) error {
	return b.api.Call(ctx, b.selfID, b.platform, action, params, out)
}
