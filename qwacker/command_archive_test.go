package qwacker

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveInteraction(suffix string) *discordgo.InteractionCreate {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name:  archiveOptionCategoryID,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "old-category",
		},
		{
			Name:  archiveOptionDestinationID,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "archive-category",
		},
	}
	if suffix != "" {
		options = append(
			options, &discordgo.ApplicationCommandInteractionDataOption{
				Name:  archiveOptionSuffix,
				Type:  discordgo.ApplicationCommandOptionString,
				Value: suffix,
			},
		)
	}

	i := adminInteraction()
	i.Data = discordgo.ApplicationCommandInteractionData{
		Name:    DiscordSlashCommandArchive,
		Options: options,
	}
	return i
}

func TestArchive(t *testing.T) {
	session := &mockDiscordSession{
		guildChannels: []*discordgo.Channel{
			{
				ID:       "ask-1",
				Name:     "❓ask-alice",
				Type:     discordgo.ChannelTypeGuildText,
				ParentID: "old-category",
			},
			{
				ID:       "ask-2",
				Name:     "❓ask-zoe",
				Type:     discordgo.ChannelTypeGuildText,
				ParentID: "old-category",
			},
			{
				// Different category: untouched.
				ID:       "general",
				Type:     discordgo.ChannelTypeGuildText,
				ParentID: "other-category",
			},
			{
				// Voice channel in the target category: untouched.
				ID:       "voice-1",
				Type:     discordgo.ChannelTypeGuildVoice,
				ParentID: "old-category",
			},
		},
	}
	q := newTestQwacker(session, nil)

	i := archiveInteraction("-f24")
	handler := &mockInteractionHandler{interaction: i}

	q.handleArchive(context.Background(), handler, i)

	require.Len(t, handler.responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredChannelMessageWithSource,
		handler.responses[0].Type,
	)

	require.Len(t, session.channelEdits, 2)
	assert.Equal(t, "ask-1", session.channelEdits[0].channelID)
	assert.Equal(t, "archive-category", session.channelEdits[0].edit.ParentID)
	assert.Equal(t, "❓ask-alice-f24", session.channelEdits[0].edit.Name)
	assert.Equal(t, "❓ask-zoe-f24", session.channelEdits[1].edit.Name)

	require.NotEmpty(t, handler.edits)
	assert.Equal(
		t,
		"Moved 2 channels to <#archive-category>.",
		stringPointerValue(handler.edits[0].Content),
	)
}

func TestArchiveWithoutSuffixKeepsNames(t *testing.T) {
	session := &mockDiscordSession{
		guildChannels: []*discordgo.Channel{
			{
				ID:       "ask-1",
				Name:     "❓ask-alice",
				Type:     discordgo.ChannelTypeGuildText,
				ParentID: "old-category",
			},
		},
	}
	q := newTestQwacker(session, nil)

	i := archiveInteraction("")
	handler := &mockInteractionHandler{interaction: i}

	q.handleArchive(context.Background(), handler, i)

	require.Len(t, session.channelEdits, 1)
	assert.Empty(t, session.channelEdits[0].edit.Name)
	assert.Equal(t, "archive-category", session.channelEdits[0].edit.ParentID)
}

func TestArchiveRequiresAdministrator(t *testing.T) {
	session := &mockDiscordSession{}
	q := newTestQwacker(session, nil)

	i := archiveInteraction("")
	i.Member = &discordgo.Member{User: &discordgo.User{ID: "user-1"}}
	handler := &mockInteractionHandler{interaction: i}

	q.handleArchive(context.Background(), handler, i)

	require.Len(t, handler.responses, 1)
	assert.Equal(t, noPermissionResponse, handler.responses[0].Data.Content)
	assert.Empty(t, session.channelEdits)
}

func TestArchiveStopsOnEditFailure(t *testing.T) {
	session := &mockDiscordSession{
		guildChannels: []*discordgo.Channel{
			{
				ID:       "ask-1",
				Type:     discordgo.ChannelTypeGuildText,
				ParentID: "old-category",
			},
		},
		channelEditErr: errors.New("missing permissions"),
	}
	q := newTestQwacker(session, nil)

	i := archiveInteraction("")
	handler := &mockInteractionHandler{interaction: i}

	q.handleArchive(context.Background(), handler, i)

	require.NotEmpty(t, handler.edits)
	assert.Contains(
		t,
		stringPointerValue(handler.edits[0].Content),
		"Stopped after moving 0 channels",
	)
}
