package satori

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcrane/satori-go/pkg/satori/message"
)

// recordingServer captures the last action path and body and answers
// with a fixed response.
func recordingServer(response string) (*httptest.Server, *string, *string) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		path = r.URL.Path
		body = string(raw)
		w.Write([]byte(response))
	}))
	return srv, &path, &body
}

func testBot(t *testing.T, srv *httptest.Server) *Bot {
	t.Helper()
	return newBot(onlineLogin("discord", "42"), "ep1", testAPIClient(t, srv, "tok"), zerolog.Nop())
}

func TestActions_Send(t *testing.T) {
	srv, path, body := recordingServer(`[{"id": "m1"}]`)
	defer srv.Close()
	b := testBot(t, srv)

	msgs, err := b.Send(context.Background(), "c1", message.Message{
		message.Text{Content: "hi "},
		message.At{ID: "7"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "/v1/message.create", *path)
	assert.JSONEq(t, `{"channel_id": "c1", "content": "hi <at id=\"7\"/>"}`, *body)
}

func TestActions_MessageList_OmitsEmptyCursor(t *testing.T) {
	srv, path, body := recordingServer(`{"data": [{"id": "m1"}], "next": "page2"}`)
	defer srv.Close()
	b := testBot(t, srv)

	page, err := b.MessageList(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "/v1/message.list", *path)
	assert.JSONEq(t, `{"channel_id": "c1"}`, *body)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "page2", page.Next)

	_, err = b.MessageList(context.Background(), "c1", "page2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel_id": "c1", "next": "page2"}`, *body)
}

func TestActions_ChannelMute_DurationInMilliseconds(t *testing.T) {
	srv, path, body := recordingServer(``)
	defer srv.Close()
	b := testBot(t, srv)

	require.NoError(t, b.ChannelMute(context.Background(), "c1", 90*time.Second))
	assert.Equal(t, "/v1/channel.mute", *path)
	assert.JSONEq(t, `{"channel_id": "c1", "duration": 90000}`, *body)
}

func TestActions_GuildApprove_TargetsRequestMessage(t *testing.T) {
	srv, path, body := recordingServer(``)
	defer srv.Close()
	b := testBot(t, srv)

	require.NoError(t, b.GuildApprove(context.Background(), "req1", true, "welcome"))
	assert.Equal(t, "/v1/guild.approve", *path)
	assert.JSONEq(t, `{"message_id": "req1", "approve": true, "comment": "welcome"}`, *body)
}

func TestActions_ChannelCreate_WrapsChannelInData(t *testing.T) {
	srv, _, body := recordingServer(`{"id": "c9", "type": 0, "name": "general"}`)
	defer srv.Close()
	b := testBot(t, srv)

	ch, err := b.ChannelCreate(context.Background(), "g1", &Channel{Name: "general"})
	require.NoError(t, err)
	assert.Equal(t, "c9", ch.ID)
	assert.JSONEq(t, `{"guild_id": "g1", "data": {"id": "", "type": 0, "name": "general"}}`, *body)
}

func TestActions_GuildRoleCreate_WrapsRoleInRole(t *testing.T) {
	srv, _, body := recordingServer(`{"id": "r1", "name": "mods"}`)
	defer srv.Close()
	b := testBot(t, srv)

	role, err := b.GuildRoleCreate(context.Background(), "g1", &Role{Name: "mods"})
	require.NoError(t, err)
	assert.Equal(t, "r1", role.ID)
	assert.JSONEq(t, `{"guild_id": "g1", "role": {"id": "", "name": "mods"}}`, *body)
}

func TestActions_SendPrivate_OpensDirectChannelFirst(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/v1/user.channel.create":
			w.Write([]byte(`{"id": "dm1", "type": 1}`))
		case "/v1/message.create":
			w.Write([]byte(`[{"id": "m1"}]`))
		}
	}))
	defer srv.Close()
	b := testBot(t, srv)

	msgs, err := b.SendPrivate(context.Background(), "u7", message.Message{message.Text{Content: "psst"}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"/v1/user.channel.create", "/v1/message.create"}, paths)
}

func TestActions_ChannelUpdate_InvalidatesCache(t *testing.T) {
	gets := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/channel.get" {
			gets++
		}
		w.Write([]byte(`{"id": "c1", "type": 0}`))
	}))
	defer srv.Close()
	b := testBot(t, srv)
	ctx := context.Background()

	_, err := b.Channel(ctx, "c1")
	require.NoError(t, err)
	_, err = b.Channel(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, gets)

	require.NoError(t, b.ChannelUpdate(ctx, "c1", &Channel{Name: "renamed"}))

	_, err = b.Channel(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, gets)
}

func TestActions_Internal_Passthrough(t *testing.T) {
	srv, path, body := recordingServer(`{"custom": true}`)
	defer srv.Close()
	b := testBot(t, srv)

	raw, err := b.Internal(context.Background(), "guild.emoji.list", map[string]string{"guild_id": "g1"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/internal/guild.emoji.list", *path)
	assert.JSONEq(t, `{"guild_id": "g1"}`, *body)
	assert.JSONEq(t, `{"custom": true}`, string(raw))
}

func TestActions_LoginGet_NormalizesResult(t *testing.T) {
	srv, _, body := recordingServer(`{"sn": 1, "platform": "discord", "self_id": "42", "status": 1}`)
	defer srv.Close()
	b := testBot(t, srv)

	login, err := b.LoginGet(context.Background())
	require.NoError(t, err)
	assert.Empty(t, *body, "login.get sends no parameters")
	require.NotNil(t, login.User)
	assert.Equal(t, "42", login.User.ID)
}
