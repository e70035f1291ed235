package satori

import (
	"go.mau.fi/util/jsontime"
)

// LoginStatus is the connection state of one gateway login.
type LoginStatus int

const (
	StatusOffline LoginStatus = iota
	StatusOnline
	StatusConnect
	StatusDisconnect
	StatusReconnect
)

func (s LoginStatus) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusConnect:
		return "connect"
	case StatusDisconnect:
		return "disconnect"
	case StatusReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// User is one chat account, bot or human.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Nick   string `json:"nick,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// ChannelType discriminates channel kinds.
type ChannelType int

const (
	ChannelText ChannelType = iota
	ChannelDirect
	ChannelCategory
	ChannelVoice
)

// Channel is one conversation surface inside a guild, or a direct
// message channel.
type Channel struct {
	ID       string      `json:"id"`
	Type     ChannelType `json:"type"`
	Name     string      `json:"name,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
}

// Guild is one server/group.
type Guild struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Member is a user's guild-scoped profile.
type Member struct {
	User     *User              `json:"user,omitempty"`
	Nick     string             `json:"nick,omitempty"`
	Avatar   string             `json:"avatar,omitempty"`
	JoinedAt jsontime.UnixMilli `json:"joined_at,omitzero"`
}

// Role is one guild role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Login is one authenticated account surfaced by a gateway.
type Login struct {
	SN        int64       `json:"sn"`
	Adapter   string      `json:"adapter,omitempty"`
	Platform  string      `json:"platform,omitempty"`
	User      *User       `json:"user,omitempty"`
	Status    LoginStatus `json:"status"`
	Features  []string    `json:"features,omitempty"`
	ProxyURLs []string    `json:"proxy_urls,omitempty"`

	// Gateways speaking protocol versions before 1.2 identify the
	// account with a bare self_id instead of a user object.
	SelfID string `json:"self_id,omitempty"`
}

// Normalize applies the legacy-field compatibility rules in place: a
// bare self_id is lifted into a user object (such frames predate the
// status field, so the login counts as online), and the self_id field
// is backfilled from the user object for uniform access.
func (l *Login) Normalize() {
	if l.User == nil && l.SelfID != "" {
		l.User = &User{ID: l.SelfID}
		if l.Status == StatusOffline {
			l.Status = StatusOnline
		}
	}
	if l.SelfID == "" && l.User != nil {
		l.SelfID = l.User.ID
	}
	if l.Adapter == "" {
		l.Adapter = "satori"
	}
}

// Identity returns the platform-qualified account id, "platform:id".
func (l *Login) Identity() string {
	id := l.SelfID
	if id == "" && l.User != nil {
		id = l.User.ID
	}
	return l.Platform + ":" + id
}

// MessageObject is the wire representation of one message. Content is
// element markup; the message codec decodes it.
type MessageObject struct {
	ID        string             `json:"id"`
	Content   string             `json:"content,omitempty"`
	Channel   *Channel           `json:"channel,omitempty"`
	Guild     *Guild             `json:"guild,omitempty"`
	Member    *Member            `json:"member,omitempty"`
	User      *User              `json:"user,omitempty"`
	CreatedAt jsontime.UnixMilli `json:"created_at,omitzero"`
	UpdatedAt jsontime.UnixMilli `json:"updated_at,omitzero"`
}

// ArgvInteraction is the payload of an interaction/command event.
type ArgvInteraction struct {
	Name      string `json:"name"`
	Arguments []any  `json:"arguments"`
	Options   any    `json:"options,omitempty"`
}

// ButtonInteraction is the payload of an interaction/button event.
type ButtonInteraction struct {
	ID string `json:"id"`
}

// Page is one page of a list action's results.
type Page[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next,omitempty"`
}
