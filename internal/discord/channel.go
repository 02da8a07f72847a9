// ABOUTME: Reply channels for Discord messages and application command interactions
// ABOUTME: Message replies reference the original; interaction replies are followups

package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/2389/coven-relay/internal/router"
)

// allowedMentions returns the mention policy for a reply. Suppressed replies
// parse no mentions from the content but still ping the replied-to user.
func allowedMentions(suppress bool) *discordgo.MessageAllowedMentions {
	if !suppress {
		return nil
	}
	return &discordgo.MessageAllowedMentions{
		Parse:       []discordgo.AllowedMentionType{},
		RepliedUser: true,
	}
}

// messageChannel replies to a plain text message in its channel.
type messageChannel struct {
	api       restAPI
	channelID string
	ref       *discordgo.MessageReference
}

func newMessageChannel(api restAPI, m *discordgo.Message) *messageChannel {
	return &messageChannel{api: api, channelID: m.ChannelID, ref: m.Reference()}
}

func (c *messageChannel) Reply(ctx context.Context, reply router.Reply) error {
	_, err := c.api.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Content:         reply.Content,
		Reference:       c.ref,
		AllowedMentions: allowedMentions(reply.SuppressMentions),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending reply to channel %s: %w", c.channelID, err)
	}
	return nil
}

func (c *messageChannel) SendPlaceholder(ctx context.Context, text string) (router.Placeholder, error) {
	msg, err := c.api.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Content:         text,
		Reference:       c.ref,
		AllowedMentions: allowedMentions(true),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("sending placeholder to channel %s: %w", c.channelID, err)
	}
	return &placeholder{api: c.api, channelID: msg.ChannelID, messageID: msg.ID}, nil
}

type placeholder struct {
	api       restAPI
	channelID string
	messageID string
}

func (p *placeholder) Delete(ctx context.Context) error {
	if err := p.api.ChannelMessageDelete(p.channelID, p.messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting placeholder %s: %w", p.messageID, err)
	}
	return nil
}

// interactionChannel answers an application command through its webhook.
type interactionChannel struct {
	api         restAPI
	interaction *discordgo.Interaction
}

func (c *interactionChannel) Defer(ctx context.Context) error {
	err := c.api.InteractionRespond(c.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("deferring interaction %s: %w", c.interaction.ID, err)
	}
	return nil
}

func (c *interactionChannel) Reply(ctx context.Context, reply router.Reply) error {
	_, err := c.api.FollowupMessageCreate(c.interaction, false, &discordgo.WebhookParams{
		Content:         reply.Content,
		AllowedMentions: allowedMentions(reply.SuppressMentions),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending followup for interaction %s: %w", c.interaction.ID, err)
	}
	return nil
}

var (
	_ router.ProgressChannel    = (*messageChannel)(nil)
	_ router.InteractionChannel = (*interactionChannel)(nil)
)
