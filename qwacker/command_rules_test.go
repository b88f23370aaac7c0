package qwacker

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rulesTestQwacker(session DiscordSessionHandler) *Qwacker {
	q := newTestQwacker(session, nil)
	q.config.Guild.SelectClassChannelID = "select-class"
	return q
}

func adminInteraction() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction-1",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: "admin-1", Username: "admin"},
				Permissions: discordgo.PermissionAdministrator,
			},
		},
	}
}

func memberInteraction() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction-1",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1", Username: "student"},
			},
		},
	}
}

func TestRulesPostRequiresAdministrator(t *testing.T) {
	session := &mockDiscordSession{}
	q := rulesTestQwacker(session)

	i := memberInteraction()
	handler := &mockInteractionHandler{interaction: i}

	q.handleRulesPost(context.Background(), handler, i, nil)

	require.Len(t, handler.responses, 1)
	assert.Equal(t, noPermissionResponse, handler.responses[0].Data.Content)
	assert.Empty(t, session.messagesSent)
}

func TestRulesPostCurrentChannel(t *testing.T) {
	session := &mockDiscordSession{}
	q := rulesTestQwacker(session)

	i := adminInteraction()
	handler := &mockInteractionHandler{interaction: i}

	q.handleRulesPost(context.Background(), handler, i, nil)

	// Without a destination the rules go out as the response itself.
	require.Len(t, handler.responses, 1)
	resp := handler.responses[0].Data
	assert.Equal(t, rulesWelcomeMessage, resp.Content)
	require.Len(t, resp.Embeds, 3)
	assert.Equal(t, "Rules", resp.Embeds[0].Title)
	assert.Equal(t, "Disclaimer", resp.Embeds[1].Title)
	assert.Contains(t, resp.Embeds[2].Description, "<#select-class>")

	assert.Empty(t, session.messagesSent)
	assert.Empty(t, session.reactions)
}

func TestRulesPostToDestination(t *testing.T) {
	session := &mockDiscordSession{}
	q := rulesTestQwacker(session)

	i := adminInteraction()
	handler := &mockInteractionHandler{interaction: i}

	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name:  rulesOptionDestination,
			Type:  discordgo.ApplicationCommandOptionChannel,
			Value: "rules-channel",
		},
	}
	q.handleRulesPost(context.Background(), handler, i, options)

	require.Len(t, session.messagesSent, 1)
	sent := session.messagesSent[0]
	assert.Equal(t, "rules-channel", sent.channelID)
	assert.Equal(t, rulesWelcomeMessage, sent.data.Content)
	assert.Len(t, sent.data.Embeds, 3)

	// Invoker gets the jump URL, the post gets its agreement reaction.
	require.Len(t, handler.responses, 1)
	assert.Equal(
		t,
		messageJumpURL("guild-1", "rules-channel", "msg-1"),
		handler.responses[0].Data.Content,
	)

	require.Len(t, session.reactions, 1)
	assert.Equal(t, "👍", session.reactions[0].emoji)
	assert.Equal(t, "msg-1", session.reactions[0].messageID)

	require.Len(t, handler.followups, 1)
	assert.Equal(t, rulesReactionReminder, handler.followups[0].Content)
}

func TestRulesUpdate(t *testing.T) {
	session := &mockDiscordSession{
		channelMessages: map[string]*discordgo.Message{
			"msg-9": {
				ID:        "msg-9",
				ChannelID: "rules-channel",
				Author:    &discordgo.User{ID: "bot-1"},
			},
		},
	}
	q := rulesTestQwacker(session)
	q.storeBotUser(&discordgo.User{ID: "bot-1"})

	i := adminInteraction()
	handler := &mockInteractionHandler{interaction: i}

	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name:  rulesOptionChannel,
			Type:  discordgo.ApplicationCommandOptionChannel,
			Value: "rules-channel",
		},
		{
			Name:  rulesOptionMessageID,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "msg-9",
		},
	}
	q.handleRulesUpdate(context.Background(), handler, i, options)

	require.Len(t, handler.responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredChannelMessageWithSource,
		handler.responses[0].Type,
	)

	require.Len(t, session.messageEdits, 1)
	edit := session.messageEdits[0]
	assert.Equal(t, "msg-9", edit.ID)
	assert.Equal(t, "rules-channel", edit.Channel)
	assert.Equal(t, rulesWelcomeMessage, stringPointerValue(edit.Content))
	require.NotNil(t, edit.Embeds)
	assert.Len(t, *edit.Embeds, 3)

	require.Len(t, session.reactions, 1)
	assert.Equal(t, "👍", session.reactions[0].emoji)

	require.NotEmpty(t, handler.followups)
	last := handler.followups[len(handler.followups)-1].Content
	assert.Contains(t, last, "Edited")
	assert.Contains(t, last, rulesReactionReminder)
}

func TestRulesUpdateRejectsForeignMessage(t *testing.T) {
	session := &mockDiscordSession{
		channelMessages: map[string]*discordgo.Message{
			"msg-9": {
				ID:        "msg-9",
				ChannelID: "rules-channel",
				Author:    &discordgo.User{ID: "someone-else"},
			},
		},
	}
	q := rulesTestQwacker(session)
	q.storeBotUser(&discordgo.User{ID: "bot-1"})

	i := adminInteraction()
	handler := &mockInteractionHandler{interaction: i}

	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: rulesOptionChannel, Value: "rules-channel"},
		{Name: rulesOptionMessageID, Value: "msg-9"},
	}
	q.handleRulesUpdate(context.Background(), handler, i, options)

	assert.Empty(t, session.messageEdits)
	require.NotEmpty(t, handler.followups)
	assert.Equal(
		t,
		"The bot is not the author of this message.",
		handler.followups[0].Content,
	)
}

func TestRulesUpdateMissingMessage(t *testing.T) {
	session := &mockDiscordSession{}
	q := rulesTestQwacker(session)
	q.storeBotUser(&discordgo.User{ID: "bot-1"})

	i := adminInteraction()
	handler := &mockInteractionHandler{interaction: i}

	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: rulesOptionChannel, Value: "rules-channel"},
		{Name: rulesOptionMessageID, Value: "nope"},
	}
	q.handleRulesUpdate(context.Background(), handler, i, options)

	assert.Empty(t, session.messageEdits)
	require.NotEmpty(t, handler.followups)
	assert.Contains(t, handler.followups[0].Content, "Could not find message")
}
