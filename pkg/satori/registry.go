package satori

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry tracks every login announced by the active sessions and hands
// out Bot handles for them. Upserting an existing identity refreshes the
// handle in place so earlier holders keep working through it.
type Registry struct {
	grace  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	bots    map[string]*Bot
	pending map[string]*time.Timer
}

// NewRegistry creates a registry. Disconnected logins are removed after
// grace; a non-positive grace removes them immediately.
func NewRegistry(grace time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		grace:   grace,
		logger:  logger.With().Str("component", "registry").Logger(),
		bots:    make(map[string]*Bot),
		pending: make(map[string]*time.Timer),
	}
}

// Upsert registers a login under the given endpoint, or refreshes the
// existing handle. Any scheduled removal for the identity is cancelled.
func (r *Registry) Upsert(login *Login, endpoint string, api *APIClient) *Bot {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := login.Identity()
	if t, ok := r.pending[id]; ok {
		t.Stop()
		delete(r.pending, id)
	}

	if b, ok := r.bots[id]; ok {
		b.updateLogin(login, endpoint)
		return b
	}

	b := newBot(login, endpoint, api, r.logger)
	r.bots[id] = b
	r.logger.Info().
		Str("identity", id).
		Str("endpoint", endpoint).
		Str("status", login.Status.String()).
		Msg("login registered")
	return b
}

// Remove drops a login immediately.
func (r *Registry) Remove(platform, selfID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := platform + ":" + selfID
	if t, ok := r.pending[id]; ok {
		t.Stop()
		delete(r.pending, id)
	}
	if _, ok := r.bots[id]; !ok {
		return
	}
	delete(r.bots, id)
	r.logger.Info().Str("identity", id).Msg("login removed")
}

// Find looks up the bot handle for a login.
func (r *Registry) Find(platform, selfID string) (*Bot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bots[platform+":"+selfID]
	return b, ok
}

// List returns all registered bots, ordered by identity.
func (r *Registry) List() []*Bot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity() < out[j].Identity() })
	return out
}

// MarkSessionDisconnected flips every login owned by the endpoint to
// DISCONNECT and schedules its removal after the grace period. Logins
// linger through the grace so in-flight action calls can fail cleanly; a
// reconnect that re-announces them cancels the removal.
func (r *Registry) MarkSessionDisconnected(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.bots {
		if !b.ownedBy(endpoint) {
			continue
		}
		b.setStatus(StatusDisconnect)
		if t, ok := r.pending[id]; ok {
			t.Stop()
		}
		if r.grace <= 0 {
			delete(r.pending, id)
			delete(r.bots, id)
			r.logger.Info().Str("identity", id).Msg("login removed")
			continue
		}
		identity := id
		r.pending[id] = time.AfterFunc(r.grace, func() { r.expire(identity) })
		r.logger.Debug().
			Str("identity", id).
			Dur("grace", r.grace).
			Msg("login disconnected")
	}
}

// expire removes a login whose grace period ran out, unless a reconnect
// brought it back in the meantime.
func (r *Registry) expire(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, identity)
	b, ok := r.bots[identity]
	if !ok || b.Status() != StatusDisconnect {
		return
	}
	delete(r.bots, identity)
	r.logger.Info().Str("identity", identity).Msg("login expired")
}
