// ABOUTME: Global application command registration for Discord
// ABOUTME: Converts the router's command schema into discordgo application commands

package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/2389/coven-relay/internal/router"
)

// registry overwrites the global commands of one application. Bulk overwrite
// replaces the whole set, so registering the same schema twice is harmless.
type registry struct {
	api   restAPI
	appID string
}

func (r *registry) RegisterCommands(ctx context.Context, specs []router.CommandSpec) error {
	if r.appID == "" {
		return fmt.Errorf("no application id available for command registration")
	}
	if _, err := r.api.ApplicationCommandBulkOverwrite(r.appID, "", toApplicationCommands(specs), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("overwriting global commands: %w", err)
	}
	return nil
}

func toApplicationCommands(specs []router.CommandSpec) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, def := range specs {
		cmd := &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
			Type:        discordgo.ChatApplicationCommand,
		}
		for _, opt := range def.Options {
			option := &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			}
			for _, choice := range opt.Choices {
				option.Choices = append(option.Choices, &discordgo.ApplicationCommandOptionChoice{
					Name:  choice.Name,
					Value: choice.Value,
				})
			}
			cmd.Options = append(cmd.Options, option)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}
