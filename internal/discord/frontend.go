// ABOUTME: Discord gateway frontend for coven-relay
// ABOUTME: Translates discordgo gateway events into dispatcher events and runs the websocket session

package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/2389/coven-relay/internal/dispatch"
	"github.com/2389/coven-relay/internal/router"
)

// Name is the frontend tag used in log lines and dedupe keys.
const Name = "discord"

// Intents requests guild and direct messages with content.
const Intents = discordgo.IntentsAllWithoutPrivileged | discordgo.IntentMessageContent

// Dispatcher receives translated events.
type Dispatcher interface {
	Dispatch(ev dispatch.Event)
}

// Frontend owns one Discord gateway session.
type Frontend struct {
	session    *discordgo.Session
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New creates a Discord frontend for a bot token. The session is not opened until Run.
func New(token string, dispatcher Dispatcher, logger *slog.Logger) (*Frontend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = Intents

	f := &Frontend{
		session:    session,
		dispatcher: dispatcher,
		logger:     logger.With("component", "discord"),
	}
	session.AddHandler(f.onReady)
	session.AddHandler(f.onMessageCreate)
	session.AddHandler(f.onInteractionCreate)
	return f, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (f *Frontend) Run(ctx context.Context) error {
	f.logger.Info("connecting to discord gateway")
	if err := f.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	f.logger.Info("discord frontend running")

	<-ctx.Done()

	f.logger.Info("shutting down discord frontend")
	if err := f.session.Close(); err != nil {
		return fmt.Errorf("closing discord gateway: %w", err)
	}
	return nil
}

func (f *Frontend) onReady(s *discordgo.Session, r *discordgo.Ready) {
	f.dispatcher.Dispatch(readyEvent(s, r))
}

func (f *Frontend) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	ev, ok := messageEvent(s, selfID, m.Message)
	if !ok {
		return
	}
	f.dispatcher.Dispatch(ev)
}

func (f *Frontend) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := interactionEvent(s, i.Interaction)
	if !ok {
		f.logger.Warn("unhandled interaction type", "interaction", i.ID, "type", int(i.Type))
		return
	}
	f.dispatcher.Dispatch(ev)
}

func readyEvent(api restAPI, r *discordgo.Ready) dispatch.Event {
	appID := ""
	if r.Application != nil {
		appID = r.Application.ID
	}
	if appID == "" && r.User != nil {
		appID = r.User.ID
	}
	return dispatch.Event{
		Kind:     dispatch.KindReady,
		Frontend: Name,
		ID:       r.SessionID,
		Registry: &registry{api: api, appID: appID},
	}
}

// messageEvent converts a created message. Messages from selfID are dropped.
func messageEvent(api restAPI, selfID string, m *discordgo.Message) (dispatch.Event, bool) {
	if m == nil || m.Author == nil {
		return dispatch.Event{}, false
	}
	if selfID != "" && m.Author.ID == selfID {
		return dispatch.Event{}, false
	}
	return dispatch.Event{
		Kind:     dispatch.KindMessage,
		Frontend: Name,
		ID:       m.ID,
		Message: &router.Message{
			ID:          m.ID,
			Frontend:    Name,
			UserID:      m.Author.ID,
			DisplayName: m.Author.Username,
			Content:     m.Content,
			Channel:     newMessageChannel(api, m),
		},
	}, true
}

func interactionEvent(api restAPI, i *discordgo.Interaction) (dispatch.Event, bool) {
	ev := dispatch.Event{Frontend: Name, ID: i.ID}

	switch i.Type {
	case discordgo.InteractionPing:
		ev.Kind = dispatch.KindPing
	case discordgo.InteractionModalSubmit:
		ev.Kind = dispatch.KindModalSubmit
	case discordgo.InteractionApplicationCommandAutocomplete:
		ev.Kind = dispatch.KindAutocomplete
		ev.Ack = func(ctx context.Context) error {
			return api.InteractionRespond(i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionApplicationCommandAutocompleteResult,
				Data: &discordgo.InteractionResponseData{
					Choices: []*discordgo.ApplicationCommandOptionChoice{},
				},
			}, discordgo.WithContext(ctx))
		}
	case discordgo.InteractionMessageComponent:
		ev.Kind = dispatch.KindComponent
		ev.Ack = func(ctx context.Context) error {
			return api.InteractionRespond(i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseDeferredMessageUpdate,
			}, discordgo.WithContext(ctx))
		}
	case discordgo.InteractionApplicationCommand:
		ev.Kind = dispatch.KindCommand
		ev.Command = commandFrom(api, i)
	default:
		return dispatch.Event{}, false
	}
	return ev, true
}

func commandFrom(api restAPI, i *discordgo.Interaction) *router.Command {
	data := i.ApplicationCommandData()
	cmd := &router.Command{
		ID:       i.ID,
		Frontend: Name,
		Name:     data.Name,
		Options:  make(map[string]string, len(data.Options)),
		Channel:  &interactionChannel{api: api, interaction: i},
	}
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			cmd.Options[opt.Name] = opt.StringValue()
			continue
		}
		cmd.Options[opt.Name] = fmt.Sprint(opt.Value)
	}
	if user := interactionUser(i); user != nil {
		cmd.UserID = user.ID
		cmd.DisplayName = user.Username
	}
	return cmd
}

// interactionUser returns the invoking user; guild interactions carry it on Member.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
