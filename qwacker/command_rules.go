package qwacker

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	rulesOptionDestination = "destination"
	rulesOptionChannel     = "channel"
	rulesOptionMessageID   = "message_id"

	rulesWelcomeMessage = "# Welcome to CSC Duclings!"

	rulesReactionReminder = "Make sure that carl-bot is set up to assign role for the reaction."
)

// rulesEmbed and disclaimerEmbed are process-wide constant data, loaded
// once; they are never recomputed per invocation.
var rulesEmbed = &discordgo.MessageEmbed{
	Title: "Rules",
	Description: "Welcome! This is a student-run Discord server for Professor " +
		"Ta’s classes. To keep things running smoothly, we kindly ask that you " +
		"follow a few simple rules.",
	Fields: []*discordgo.MessageEmbedField{
		{
			Name:  "😀 Don’t be an asshole",
			Value: "No harassment of any kind. Be nice to one another.",
		},
		{
			Name: "🤓 Do not violate the course guidelines and/or policies",
			Value: "Don’t do anything that will get you kicked out of the class " +
				"here, like cheating or sharing your solutions on this server.",
		},
		{
			Name: "😴 Respect people’s boundaries",
			Value: "This server was created to help students connect with their " +
				"graders and mentors, who are here voluntarily to support your " +
				"success in the course. Please feel free to reach out for help " +
				"but also be considerate of their time.",
		},
	},
}

var disclaimerEmbed = &discordgo.MessageEmbed{
	Title: "Disclaimer",
	Description: "This Discord server is independently managed by current and " +
		"former students of Professor Ta and is not affiliated, authorized, " +
		"endorsed by, or in any way officially associated with the University " +
		"or the Department of Computer Science.\n\n" +
		"**Your participation is entirely optional**, and the content shared " +
		"here is for informational purposes only. Any announcements or " +
		"communications from tutors, graders, discussion leaders, or any " +
		"members acting on official capacity on Discord are provided for your " +
		"convenience and do not replace official channels such as email and " +
		"Canvas discussion forums.\n\n" +
		"The Department of Computer Science, Professor Ta, and members of his " +
		"team are not affiliated with this server and are not responsible for " +
		"moderating its content. Any advice or information shared here should " +
		"be cross-referenced with official resources. The maintainers of this " +
		"server are not responsible for any inaccuracies or issues that may " +
		"arise from the use of this server.\n\n" +
		"We’ve kept this space running for our fellow Duclings since Spring " +
		"2021 and hope to pass it on to future cohorts — please help us " +
		"maintain it by adhering to the rules and using common sense.",
}

// pickRolesEmbed points freshly agreed members at the class-selection
// channel. The channel reference comes from config, so it's built per
// call rather than stored.
func pickRolesEmbed(selectClassChannelID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Ready?",
		Description: fmt.Sprintf(
			"Click on the reaction below to indicate your agreement with the "+
				"rules and gain access to the server. After that, proceed to "+
				"<#%s> to obtain your roles!",
			selectClassChannelID,
		),
	}
}

func rulesMessageEmbeds(selectClassChannelID string) []*discordgo.MessageEmbed {
	return []*discordgo.MessageEmbed{
		rulesEmbed,
		disclaimerEmbed,
		pickRolesEmbed(selectClassChannelID),
	}
}

// handleRulesPost posts the rules messages. With a destination channel,
// the post goes there, the invoker gets the jump URL, and a 👍 reaction
// primes the agreement reaction-role. Without one, the rules are posted
// as the interaction response in the current channel.
func (q *Qwacker) handleRulesPost(
	ctx context.Context,
	handler InteractionHandler,
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
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

	embeds := rulesMessageEmbeds(q.config.Guild.SelectClassChannelID)
	opts := discordInteractionOptions(options)

	destination, hasDestination := opts[rulesOptionDestination]
	if !hasDestination {
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: rulesWelcomeMessage,
					Embeds:  embeds,
				},
			},
		)
		return
	}

	destinationID := destination.Value.(string)
	message, err := q.discord.session.ChannelMessageSendComplex(
		destinationID,
		&discordgo.MessageSend{Content: rulesWelcomeMessage, Embeds: embeds},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error posting rules", tint.Err(err))
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: fmt.Sprintf("Could not post to <#%s>.", destinationID),
				},
			},
		)
		return
	}

	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: messageJumpURL(i.GuildID, message.ChannelID, message.ID),
			},
		},
	)

	if err = q.discord.session.MessageReactionAdd(
		message.ChannelID, message.ID, "👍", discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error adding rules reaction", tint.Err(err))
	}

	if _, err = handler.Followup(
		ctx, &discordgo.WebhookParams{Content: rulesReactionReminder},
	); err != nil {
		logger.ErrorContext(ctx, "error sending followup", tint.Err(err))
	}
}

// handleRulesUpdate edits a previously posted rules message in place.
// Only messages authored by the bot itself can be edited.
func (q *Qwacker) handleRulesUpdate(
	ctx context.Context,
	handler InteractionHandler,
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
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

	opts := discordInteractionOptions(options)
	channelID := opts[rulesOptionChannel].Value.(string)
	messageID := opts[rulesOptionMessageID].Value.(string)

	followup := func(content string) {
		if _, err := handler.Followup(
			ctx, &discordgo.WebhookParams{Content: content},
		); err != nil {
			logger.ErrorContext(ctx, "error sending followup", tint.Err(err))
		}
	}

	message, err := q.discord.session.ChannelMessage(
		channelID, messageID, discordgo.WithContext(ctx),
	)
	if err != nil {
		followup(fmt.Sprintf(
			"Could not find message with ID %s in <#%s>.", messageID, channelID,
		))
		return
	}

	if message.Author == nil || message.Author.ID != q.botUserID() {
		followup("The bot is not the author of this message.")
		return
	}

	edit := discordgo.NewMessageEdit(channelID, messageID).
		SetContent(rulesWelcomeMessage)
	edit.SetEmbeds(rulesMessageEmbeds(q.config.Guild.SelectClassChannelID))
	if _, err = q.discord.session.ChannelMessageEditComplex(
		edit, discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error editing rules message", tint.Err(err))
		followup("Could not edit that message.")
		return
	}

	if err = q.discord.session.MessageReactionAdd(
		channelID, messageID, "👍", discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error adding rules reaction", tint.Err(err))
	}

	followup(fmt.Sprintf(
		"Edited %s. %s",
		messageJumpURL(i.GuildID, channelID, messageID),
		rulesReactionReminder,
	))
}
