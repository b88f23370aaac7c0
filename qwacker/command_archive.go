package qwacker

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	archiveOptionCategoryID    = "category_id"
	archiveOptionDestinationID = "destination_id"
	archiveOptionSuffix        = "suffix"
)

// handleArchive moves every text channel under the given category into
// the destination category, optionally appending a suffix to each
// channel's name, and replies with a count of channels moved.
// Admin only.
func (q *Qwacker) handleArchive(
	ctx context.Context,
	handler InteractionHandler,
	i *discordgo.InteractionCreate,
) {
	logger := handler.Logger()

	if !memberIsAdministrator(i) {
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: noPermissionResponse,
				},
			},
		)
		return
	}

	if err := handler.Respond(ctx, ackResponse()); err != nil {
		return
	}

	opts := discordInteractionOptions(i.ApplicationCommandData().Options)
	categoryID := opts[archiveOptionCategoryID].Value.(string)
	destinationID := opts[archiveOptionDestinationID].Value.(string)
	var suffix string
	if opt, ok := opts[archiveOptionSuffix]; ok {
		suffix = opt.Value.(string)
	}

	report := func(content string) {
		if _, err := handler.Edit(
			ctx, &discordgo.WebhookEdit{Content: &content},
		); err != nil {
			logger.ErrorContext(ctx, "error editing response", tint.Err(err))
		}
	}

	channels, err := q.discord.session.GuildChannels(
		i.GuildID, discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error listing guild channels", tint.Err(err))
		report("Could not list the server's channels.")
		return
	}

	moved := 0
	for _, channel := range channels {
		if channel.ParentID != categoryID ||
			channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}

		edit := &discordgo.ChannelEdit{ParentID: destinationID}
		if suffix != "" {
			edit.Name = channel.Name + suffix
		}
		if _, err = q.discord.session.ChannelEdit(
			channel.ID, edit, discordgo.WithContext(ctx),
		); err != nil {
			logger.ErrorContext(
				ctx,
				"error moving channel",
				tint.Err(err),
				"channel_id", channel.ID,
			)
			report(fmt.Sprintf(
				"Stopped after moving %d channels: could not move <#%s>.",
				moved, channel.ID,
			))
			return
		}
		moved++
	}

	report(fmt.Sprintf("Moved %d channels to <#%s>.", moved, destinationID))
}
