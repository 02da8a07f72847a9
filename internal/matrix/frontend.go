// ABOUTME: Matrix frontend for coven-relay
// ABOUTME: Syncs joined rooms and hands text messages to the dispatcher as legacy command candidates

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/dispatch"
	"github.com/2389/coven-relay/internal/router"
)

// Name is the frontend tag used in log lines and dedupe keys.
const Name = "matrix"

// Config holds the Matrix account and room filter.
type Config struct {
	Homeserver   string
	UserID       string
	AccessToken  string
	AllowedRooms []string
}

// Dispatcher receives translated events.
type Dispatcher interface {
	Dispatch(ev dispatch.Event)
}

// Frontend connects one Matrix account to the dispatcher.
type Frontend struct {
	config     Config
	client     *mautrix.Client
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New creates a Matrix frontend. Nothing is contacted until Run.
func New(cfg Config, dispatcher Dispatcher, logger *slog.Logger) (*Frontend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return &Frontend{
		config:     cfg,
		client:     client,
		dispatcher: dispatcher,
		logger:     logger.With("component", "matrix"),
	}, nil
}

// Run syncs with the homeserver and blocks until ctx is cancelled or sync fails.
func (f *Frontend) Run(ctx context.Context) error {
	f.logger.Info("starting matrix frontend",
		"homeserver", f.config.Homeserver,
		"user_id", f.config.UserID,
	)

	syncer, ok := f.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", f.client.Syncer)
	}
	// Skip the backlog delivered by the initial sync.
	syncer.OnSync(f.client.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, f.handleMessageEvent)

	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- f.client.SyncWithContext(syncCtx)
	}()

	f.dispatcher.Dispatch(dispatch.Event{Kind: dispatch.KindReady, Frontend: Name})
	f.logger.Info("matrix frontend running")

	select {
	case <-ctx.Done():
		f.logger.Info("shutting down matrix frontend")
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

func (f *Frontend) handleMessageEvent(ctx context.Context, evt *event.Event) {
	ev, ok := f.messageEvent(f.client, evt)
	if !ok {
		return
	}
	f.dispatcher.Dispatch(ev)
}

// messageEvent converts a room message. Our own messages, non-text messages and
// rooms outside the allow list are dropped.
func (f *Frontend) messageEvent(api roomAPI, evt *event.Event) (dispatch.Event, bool) {
	if evt.Sender == id.UserID(f.config.UserID) {
		return dispatch.Event{}, false
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return dispatch.Event{}, false
	}

	roomID := evt.RoomID.String()
	if !f.isRoomAllowed(roomID) {
		f.logger.Debug("ignoring message from non-allowed room", "room", roomID)
		return dispatch.Event{}, false
	}

	return dispatch.Event{
		Kind:     dispatch.KindMessage,
		Frontend: Name,
		ID:       evt.ID.String(),
		Message: &router.Message{
			ID:          evt.ID.String(),
			Frontend:    Name,
			UserID:      evt.Sender.String(),
			DisplayName: localpart(evt.Sender),
			Content:     content.Body,
			Channel: &roomChannel{
				api:     api,
				roomID:  evt.RoomID,
				eventID: evt.ID,
				sender:  evt.Sender,
			},
		},
	}, true
}

// isRoomAllowed checks if the room is in the allowed list.
func (f *Frontend) isRoomAllowed(roomID string) bool {
	if len(f.config.AllowedRooms) == 0 {
		return true
	}
	return slices.Contains(f.config.AllowedRooms, roomID)
}

// localpart returns "alice" for "@alice:example.org".
func localpart(userID id.UserID) string {
	s := strings.TrimPrefix(userID.String(), "@")
	if name, _, found := strings.Cut(s, ":"); found {
		return name
	}
	return s
}
