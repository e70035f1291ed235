package satori

import (
	"go.mau.fi/util/jsontime"

	"github.com/nightcrane/satori-go/pkg/satori/message"
)

// Standard event types. The type field is an open string: gateways may
// emit types outside this list and they flow through dispatch verbatim.
const (
	EventFriendRequest = "friend-request"

	EventGuildAdded   = "guild-added"
	EventGuildUpdated = "guild-updated"
	EventGuildRemoved = "guild-removed"
	EventGuildRequest = "guild-request"

	EventGuildMemberAdded   = "guild-member-added"
	EventGuildMemberUpdated = "guild-member-updated"
	EventGuildMemberRemoved = "guild-member-removed"
	EventGuildMemberRequest = "guild-member-request"

	EventGuildRoleCreated = "guild-role-created"
	EventGuildRoleUpdated = "guild-role-updated"
	EventGuildRoleDeleted = "guild-role-deleted"

	EventLoginAdded   = "login-added"
	EventLoginUpdated = "login-updated"
	EventLoginRemoved = "login-removed"

	EventMessageCreated = "message-created"
	EventMessageUpdated = "message-updated"
	EventMessageDeleted = "message-deleted"

	EventReactionAdded   = "reaction-added"
	EventReactionRemoved = "reaction-removed"

	EventInteractionButton  = "interaction/button"
	EventInteractionCommand = "interaction/command"

	EventInternal = "internal"
)

// Event is one decoded unit from a gateway's event stream.
type Event struct {
	SN        int64              `json:"sn"`
	Type      string             `json:"type"`
	Timestamp jsontime.UnixMilli `json:"timestamp"`
	Login     *Login             `json:"login,omitempty"`
	Argv      *ArgvInteraction   `json:"argv,omitempty"`
	Button    *ButtonInteraction `json:"button,omitempty"`
	Channel   *Channel           `json:"channel,omitempty"`
	Guild     *Guild             `json:"guild,omitempty"`
	Member    *Member            `json:"member,omitempty"`
	Message   *MessageObject     `json:"message,omitempty"`
	Operator  *User              `json:"operator,omitempty"`
	Role      *Role              `json:"role,omitempty"`
	User      *User              `json:"user,omitempty"`

	// Fields sent by gateways speaking protocol versions before 1.2.
	LegacyID int64  `json:"id,omitempty"`
	SelfID   string `json:"self_id,omitempty"`
	Platform string `json:"platform,omitempty"`

	// Content is Message.Content decoded into segments. The dispatcher
	// populates it before delivery; it is never on the wire.
	Content message.Message `json:"-"`
}

// Normalize applies legacy-field compatibility in place: the old id
// field backfills sn, and a top-level self_id/platform pair synthesizes
// the login object newer gateways embed.
func (e *Event) Normalize() {
	if e.SN == 0 && e.LegacyID != 0 {
		e.SN = e.LegacyID
	}
	if e.Login == nil && e.SelfID != "" && e.Platform != "" {
		e.Login = &Login{
			Platform: e.Platform,
			User:     &User{ID: e.SelfID},
			SelfID:   e.SelfID,
			Status:   StatusOnline,
			Adapter:  "satori",
		}
	}
	if e.Login != nil {
		e.Login.Normalize()
		if e.SelfID == "" {
			e.SelfID = e.Login.SelfID
		}
		if e.Platform == "" {
			e.Platform = e.Login.Platform
		}
	}
}

// Identity returns the "platform:self_id" key of the login the event
// belongs to, or "" when the event carries no identity.
func (e *Event) Identity() string {
	if e.Platform == "" || e.SelfID == "" {
		return ""
	}
	return e.Platform + ":" + e.SelfID
}
