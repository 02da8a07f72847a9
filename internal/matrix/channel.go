// ABOUTME: Reply channel for Matrix room messages
// ABOUTME: Replies thread onto the original event and carry a goldmark-rendered formatted body

package matrix

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/router"
)

// roomAPI is the subset of *mautrix.Client the reply channel calls.
type roomAPI interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error)
}

var _ roomAPI = (*mautrix.Client)(nil)

// roomChannel replies to one event in one room.
type roomChannel struct {
	api     roomAPI
	roomID  id.RoomID
	eventID id.EventID
	sender  id.UserID
}

func (c *roomChannel) Reply(ctx context.Context, reply router.Reply) error {
	content := c.content(event.MsgText, reply.Content)
	if reply.SuppressMentions {
		content.Mentions = &event.Mentions{UserIDs: []id.UserID{c.sender}}
	}
	if _, err := c.api.SendMessageEvent(ctx, c.roomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("sending reply to room %s: %w", c.roomID, err)
	}
	return nil
}

func (c *roomChannel) SendPlaceholder(ctx context.Context, text string) (router.Placeholder, error) {
	content := c.content(event.MsgNotice, text)
	content.Mentions = &event.Mentions{}
	resp, err := c.api.SendMessageEvent(ctx, c.roomID, event.EventMessage, content)
	if err != nil {
		return nil, fmt.Errorf("sending placeholder to room %s: %w", c.roomID, err)
	}
	return &placeholder{api: c.api, roomID: c.roomID, eventID: resp.EventID}, nil
}

func (c *roomChannel) content(msgType event.MessageType, body string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType:   msgType,
		Body:      body,
		RelatesTo: &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: c.eventID}},
	}
	if html, ok := renderMarkdown(body); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}
	return content
}

// renderMarkdown converts completion text to HTML. It reports false when
// conversion fails so the plain body is sent alone.
func renderMarkdown(body string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return "", false
	}
	return buf.String(), true
}

type placeholder struct {
	api     roomAPI
	roomID  id.RoomID
	eventID id.EventID
}

func (p *placeholder) Delete(ctx context.Context) error {
	if _, err := p.api.RedactEvent(ctx, p.roomID, p.eventID); err != nil {
		return fmt.Errorf("redacting placeholder %s: %w", p.eventID, err)
	}
	return nil
}

var _ router.ProgressChannel = (*roomChannel)(nil)
