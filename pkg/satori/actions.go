package satori

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nightcrane/satori-go/pkg/satori/message"
)

// Send delivers a message to a channel. It is shorthand for MessageCreate.
func (b *Bot) Send(ctx context.Context, channelID string, msg message.Message) ([]*MessageObject, error) {
	return b.MessageCreate(ctx, channelID, msg)
}

// SendPrivate opens (or reuses) the direct channel to a user and delivers
// a message there.
func (b *Bot) SendPrivate(ctx context.Context, userID string, msg message.Message) ([]*MessageObject, error) {
	ch, err := b.UserChannelCreate(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return b.MessageCreate(ctx, ch.ID, msg)
}

// MessageCreate posts a message; gateways may split long content, so the
// result is a list.
func (b *Bot) MessageCreate(ctx context.Context, channelID string, msg message.Message) ([]*MessageObject, error) {
	params := struct {
		ChannelID string `json:"channel_id"`
		Content   string `json:"content"`
	}{channelID, msg.String()}
	var out []*MessageObject
	if err := b.call(ctx, "message.create", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bot) MessageGet(ctx context.Context, channelID, messageID string) (*MessageObject, error) {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
	}{channelID, messageID}
	var out MessageObject
	if err := b.call(ctx, "message.get", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) MessageDelete(ctx context.Context, channelID, messageID string) error {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
	}{channelID, messageID}
	return b.call(ctx, "message.delete", params, nil)
}

func (b *Bot) MessageUpdate(ctx context.Context, channelID, messageID string, msg message.Message) error {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		Content   string `json:"content"`
	}{channelID, messageID, msg.String()}
	return b.call(ctx, "message.update", params, nil)
}

func (b *Bot) MessageList(ctx context.Context, channelID, next string) (*Page[MessageObject], error) {
	params := struct {
		ChannelID string `json:"channel_id"`
		Next      string `json:"next,omitempty"`
	}{channelID, next}
	var out Page[MessageObject]
	if err := b.call(ctx, "message.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) ChannelGet(ctx context.Context, channelID string) (*Channel, error) {
	params := struct {
		ChannelID string `json:"channel_id"`
	}{channelID}
	var out Channel
	if err := b.call(ctx, "channel.get", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) ChannelList(ctx context.Context, guildID, next string) (*Page[Channel], error) {
	params := struct {
		GuildID string `json:"guild_id"`
		Next    string `json:"next,omitempty"`
	}{guildID, next}
	var out Page[Channel]
	if err := b.call(ctx, "channel.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) ChannelCreate(ctx context.Context, guildID string, data *Channel) (*Channel, error) {
	params := struct {
		GuildID string   `json:"guild_id"`
		Data    *Channel `json:"data"`
	}{guildID, data}
	var out Channel
	if err := b.call(ctx, "channel.create", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) ChannelUpdate(ctx context.Context, channelID string, data *Channel) error {
	params := struct {
		ChannelID string   `json:"channel_id"`
		Data      *Channel `json:"data"`
	}{channelID, data}
	if err := b.call(ctx, "channel.update", params, nil); err != nil {
		return err
	}
	b.channels.Delete(channelID)
	return nil
}

func (b *Bot) ChannelDelete(ctx context.Context, channelID string) error {
	params := struct {
		ChannelID string `json:"channel_id"`
	}{channelID}
	if err := b.call(ctx, "channel.delete", params, nil); err != nil {
		return err
	}
	b.channels.Delete(channelID)
	return nil
}

// ChannelMute silences a channel. A zero duration unmutes.
func (b *Bot) ChannelMute(ctx context.Context, channelID string, duration time.Duration) error {
	params := struct {
		ChannelID string  `json:"channel_id"`
		Duration  float64 `json:"duration"`
	}{channelID, float64(duration.Milliseconds())}
	return b.call(ctx, "channel.mute", params, nil)
}

// UserChannelCreate opens the direct channel to a user. guildID may be
// empty when the platform does not scope direct channels to guilds.
func (b *Bot) UserChannelCreate(ctx context.Context, userID, guildID string) (*Channel, error) {
	params := struct {
		UserID  string `json:"user_id"`
		GuildID string `json:"guild_id,omitempty"`
	}{userID, guildID}
	var out Channel
	if err := b.call(ctx, "user.channel.create", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildGet(ctx context.Context, guildID string) (*Guild, error) {
	params := struct {
		GuildID string `json:"guild_id"`
	}{guildID}
	var out Guild
	if err := b.call(ctx, "guild.get", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildList(ctx context.Context, next string) (*Page[Guild], error) {
	params := struct {
		Next string `json:"next,omitempty"`
	}{next}
	var out Page[Guild]
	if err := b.call(ctx, "guild.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GuildApprove answers a guild invite request. requestID is the message ID
// of the request event.
func (b *Bot) GuildApprove(ctx context.Context, requestID string, approve bool, comment string) error {
	params := struct {
		MessageID string `json:"message_id"`
		Approve   bool   `json:"approve"`
		Comment   string `json:"comment"`
	}{requestID, approve, comment}
	return b.call(ctx, "guild.approve", params, nil)
}

func (b *Bot) GuildMemberGet(ctx context.Context, guildID, userID string) (*Member, error) {
	params := struct {
		GuildID string `json:"guild_id"`
		UserID  string `json:"user_id"`
	}{guildID, userID}
	var out Member
	if err := b.call(ctx, "guild.member.get", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildMemberList(ctx context.Context, guildID, next string) (*Page[Member], error) {
	params := struct {
		GuildID string `json:"guild_id"`
		Next    string `json:"next,omitempty"`
	}{guildID, next}
	var out Page[Member]
	if err := b.call(ctx, "guild.member.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildMemberKick(ctx context.Context, guildID, userID string, permanent bool) error {
	params := struct {
		GuildID   string `json:"guild_id"`
		UserID    string `json:"user_id"`
		Permanent bool   `json:"permanent"`
	}{guildID, userID, permanent}
	return b.call(ctx, "guild.member.kick", params, nil)
}

// GuildMemberMute silences a member. A zero duration unmutes.
func (b *Bot) GuildMemberMute(ctx context.Context, guildID, userID string, duration time.Duration) error {
	params := struct {
		GuildID  string  `json:"guild_id"`
		UserID   string  `json:"user_id"`
		Duration float64 `json:"duration"`
	}{guildID, userID, float64(duration.Milliseconds())}
	return b.call(ctx, "guild.member.mute", params, nil)
}

// GuildMemberApprove answers a guild join request.
func (b *Bot) GuildMemberApprove(ctx context.Context, requestID string, approve bool, comment string) error {
	params := struct {
		MessageID string `json:"message_id"`
		Approve   bool   `json:"approve"`
		Comment   string `json:"comment"`
	}{requestID, approve, comment}
	return b.call(ctx, "guild.member.approve", params, nil)
}

func (b *Bot) GuildMemberRoleSet(ctx context.Context, guildID, userID, roleID string) error {
	params := struct {
		GuildID string `json:"guild_id"`
		UserID  string `json:"user_id"`
		RoleID  string `json:"role_id"`
	}{guildID, userID, roleID}
	return b.call(ctx, "guild.member.role.set", params, nil)
}

func (b *Bot) GuildMemberRoleUnset(ctx context.Context, guildID, userID, roleID string) error {
	params := struct {
		GuildID string `json:"guild_id"`
		UserID  string `json:"user_id"`
		RoleID  string `json:"role_id"`
	}{guildID, userID, roleID}
	return b.call(ctx, "guild.member.role.unset", params, nil)
}

func (b *Bot) GuildRoleList(ctx context.Context, guildID, next string) (*Page[Role], error) {
	params := struct {
		GuildID string `json:"guild_id"`
		Next    string `json:"next,omitempty"`
	}{guildID, next}
	var out Page[Role]
	if err := b.call(ctx, "guild.role.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildRoleCreate(ctx context.Context, guildID string, role *Role) (*Role, error) {
	params := struct {
		GuildID string `json:"guild_id"`
		Role    *Role  `json:"role"`
	}{guildID, role}
	var out Role
	if err := b.call(ctx, "guild.role.create", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) GuildRoleUpdate(ctx context.Context, guildID, roleID string, role *Role) error {
	params := struct {
		GuildID string `json:"guild_id"`
		RoleID  string `json:"role_id"`
		Role    *Role  `json:"role"`
	}{guildID, roleID, role}
	return b.call(ctx, "guild.role.update", params, nil)
}

func (b *Bot) GuildRoleDelete(ctx context.Context, guildID, roleID string) error {
	params := struct {
		GuildID string `json:"guild_id"`
		RoleID  string `json:"role_id"`
	}{guildID, roleID}
	return b.call(ctx, "guild.role.delete", params, nil)
}

func (b *Bot) ReactionCreate(ctx context.Context, channelID, messageID, emoji string) error {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	}{channelID, messageID, emoji}
	return b.call(ctx, "reaction.create", params, nil)
}

// ReactionDelete removes one reaction; an empty userID targets the bot's
// own reaction.
func (b *Bot) ReactionDelete(ctx context.Context, channelID, messageID, emoji, userID string) error {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
		UserID    string `json:"user_id,omitempty"`
	}{channelID, messageID, emoji, userID}
	return b.call(ctx, "reaction.delete", params, nil)
}

// ReactionClear removes all reactions; an empty emoji clears every emoji.
func (b *Bot) ReactionClear(ctx context.Context, channelID, messageID, emoji string) error {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji,omitempty"`
	}{channelID, messageID, emoji}
	return b.call(ctx, "reaction.clear", params, nil)
}

func (b *Bot) ReactionList(ctx context.Context, channelID, messageID, emoji, next string) (*Page[User], error) {
	params := struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
		Next      string `json:"next,omitempty"`
	}{channelID, messageID, emoji, next}
	var out Page[User]
	if err := b.call(ctx, "reaction.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginGet fetches the gateway's view of this login.
func (b *Bot) LoginGet(ctx context.Context) (*Login, error) {
	var out Login
	if err := b.call(ctx, "login.get", nil, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

func (b *Bot) UserGet(ctx context.Context, userID string) (*User, error) {
	params := struct {
		UserID string `json:"user_id"`
	}{userID}
	var out User
	if err := b.call(ctx, "user.get", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Bot) FriendList(ctx context.Context, next string) (*Page[User], error) {
	params := struct {
		Next string `json:"next,omitempty"`
	}{next}
	var out Page[User]
	if err := b.call(ctx, "friend.list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FriendApprove answers a friend request.
func (b *Bot) FriendApprove(ctx context.Context, requestID string, approve bool, comment string) error {
	params := struct {
		MessageID string `json:"message_id"`
		Approve   bool   `json:"approve"`
		Comment   string `json:"comment"`
	}{requestID, approve, comment}
	return b.call(ctx, "friend.approve", params, nil)
}

// Internal passes a platform-specific action through the gateway's
// internal API, returning the raw response body.
func (b *Bot) Internal(ctx context.Context, action string, params any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := b.call(ctx, "internal/"+action, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}
