// ABOUTME: Tests for the Matrix frontend event filtering and reply channel
// ABOUTME: Uses a recording fake in place of the mautrix client

package matrix

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/dispatch"
	"github.com/2389/coven-relay/internal/router"
)

type sentEvent struct {
	roomID  id.RoomID
	content *event.MessageEventContent
}

type fakeRoomAPI struct {
	sent     []sentEvent
	redacted []id.EventID
	err      error
}

func (f *fakeRoomAPI) SendMessageEvent(_ context.Context, roomID id.RoomID, _ event.Type, contentJSON any, _ ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentEvent{roomID: roomID, content: contentJSON.(*event.MessageEventContent)})
	return &mautrix.RespSendEvent{EventID: id.EventID("$placeholder")}, nil
}

func (f *fakeRoomAPI) RedactEvent(_ context.Context, _ id.RoomID, eventID id.EventID, _ ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error) {
	f.redacted = append(f.redacted, eventID)
	return &mautrix.RespSendEvent{}, f.err
}

func testFrontend(allowed ...string) *Frontend {
	return &Frontend{
		config: Config{UserID: "@relay:example.org", AllowedRooms: allowed},
		logger: slog.Default(),
	}
}

func textEvent(sender, room, body string) *event.Event {
	return &event.Event{
		ID:     id.EventID("$evt1"),
		Sender: id.UserID(sender),
		RoomID: id.RoomID(room),
		Type:   event.EventMessage,
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func TestMessageEvent(t *testing.T) {
	f := testFrontend()

	ev, ok := f.messageEvent(&fakeRoomAPI{}, textEvent("@alice:example.org", "!room:example.org", "-chat davinci hi"))
	require.True(t, ok)

	assert.Equal(t, dispatch.KindMessage, ev.Kind)
	assert.Equal(t, Name, ev.Frontend)
	assert.Equal(t, "$evt1", ev.ID)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "@alice:example.org", ev.Message.UserID)
	assert.Equal(t, "alice", ev.Message.DisplayName)
	assert.Equal(t, "-chat davinci hi", ev.Message.Content)
}

func TestMessageEvent_Filters(t *testing.T) {
	f := testFrontend("!allowed:example.org")

	_, ok := f.messageEvent(&fakeRoomAPI{}, textEvent("@relay:example.org", "!allowed:example.org", "-clear"))
	assert.False(t, ok, "own message")

	_, ok = f.messageEvent(&fakeRoomAPI{}, textEvent("@alice:example.org", "!other:example.org", "-clear"))
	assert.False(t, ok, "room not allowed")

	notice := textEvent("@alice:example.org", "!allowed:example.org", "-clear")
	notice.Content.Parsed.(*event.MessageEventContent).MsgType = event.MsgNotice
	_, ok = f.messageEvent(&fakeRoomAPI{}, notice)
	assert.False(t, ok, "notice")

	unparsed := textEvent("@alice:example.org", "!allowed:example.org", "-clear")
	unparsed.Content.Parsed = nil
	_, ok = f.messageEvent(&fakeRoomAPI{}, unparsed)
	assert.False(t, ok, "unparsed content")

	_, ok = f.messageEvent(&fakeRoomAPI{}, textEvent("@alice:example.org", "!allowed:example.org", "-clear"))
	assert.True(t, ok)
}

func TestRoomChannel_Reply(t *testing.T) {
	api := &fakeRoomAPI{}
	ch := &roomChannel{api: api, roomID: "!room:example.org", eventID: "$evt1", sender: "@alice:example.org"}

	require.NoError(t, ch.Reply(context.Background(), router.Reply{Content: "hi **there**", SuppressMentions: true}))

	require.Len(t, api.sent, 1)
	sent := api.sent[0]
	assert.Equal(t, id.RoomID("!room:example.org"), sent.roomID)
	assert.Equal(t, event.MsgText, sent.content.MsgType)
	assert.Equal(t, "hi **there**", sent.content.Body)
	assert.Equal(t, event.FormatHTML, sent.content.Format)
	assert.Contains(t, sent.content.FormattedBody, "<strong>there</strong>")
	require.NotNil(t, sent.content.RelatesTo)
	require.NotNil(t, sent.content.RelatesTo.InReplyTo)
	assert.Equal(t, id.EventID("$evt1"), sent.content.RelatesTo.InReplyTo.EventID)
	require.NotNil(t, sent.content.Mentions)
	assert.Equal(t, []id.UserID{"@alice:example.org"}, sent.content.Mentions.UserIDs)
}

func TestRoomChannel_ReplyError(t *testing.T) {
	ch := &roomChannel{api: &fakeRoomAPI{err: errors.New("M_FORBIDDEN")}, roomID: "!room:example.org"}

	err := ch.Reply(context.Background(), router.Reply{Content: "x"})
	assert.ErrorContains(t, err, "M_FORBIDDEN")
}

func TestRoomChannel_Placeholder(t *testing.T) {
	api := &fakeRoomAPI{}
	ch := &roomChannel{api: api, roomID: "!room:example.org", eventID: "$evt1", sender: "@alice:example.org"}

	p, err := ch.SendPlaceholder(context.Background(), router.ThinkingMessage)
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, event.MsgNotice, api.sent[0].content.MsgType)
	assert.Equal(t, router.ThinkingMessage, api.sent[0].content.Body)

	require.NoError(t, p.Delete(context.Background()))
	assert.Equal(t, []id.EventID{"$placeholder"}, api.redacted)
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "alice", localpart("@alice:example.org"))
	assert.Equal(t, "bob", localpart("@bob"))
	assert.Equal(t, "carol", localpart("carol"))
}
