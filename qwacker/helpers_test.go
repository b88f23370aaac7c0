package qwacker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordInteractionOptions(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "category", Value: "cat-1"},
		{Name: "suffix", Value: "-f24"},
	}

	opts := discordInteractionOptions(options)
	require.Len(t, opts, 2)
	assert.Equal(t, "cat-1", opts["category"].Value)
	assert.Equal(t, "-f24", opts["suffix"].Value)

	_, ok := opts["missing"]
	assert.False(t, ok)
}

func TestGetDiscordUser(t *testing.T) {
	fromUser := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "dm-user"},
		},
	}
	assert.Equal(t, "dm-user", getDiscordUser(fromUser).ID)

	fromMember := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: "guild-user"}},
		},
	}
	assert.Equal(t, "guild-user", getDiscordUser(fromMember).ID)

	empty := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	assert.Nil(t, getDiscordUser(empty))
}

func TestMemberIsAdministrator(t *testing.T) {
	admin := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				Permissions: discordgo.PermissionAdministrator,
			},
		},
	}
	assert.True(t, memberIsAdministrator(admin))

	plain := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				Permissions: discordgo.PermissionSendMessages,
			},
		},
	}
	assert.False(t, memberIsAdministrator(plain))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	assert.False(t, memberIsAdministrator(dm))
}

func TestCodeBlock(t *testing.T) {
	wrapped := codeBlock("some error detail")
	assert.Equal(t, "```\nsome error detail\n```", wrapped)

	// Oversized content is truncated so the whole block fits in one
	// Discord message.
	big := codeBlock(strings.Repeat("x", discordMaxMessageLength*2))
	assert.LessOrEqual(
		t, utf8.RuneCountInString(big), discordMaxMessageLength,
	)
	assert.True(t, strings.HasPrefix(big, "```"))
	assert.True(t, strings.HasSuffix(big, "```"))
}

func TestMessageJumpURL(t *testing.T) {
	assert.Equal(
		t,
		"https://discord.com/channels/g1/c1/m1",
		messageJumpURL("g1", "c1", "m1"),
	)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "🦆🐸", truncate("🦆🐸🐙", 2))
}

func TestStringPointerValue(t *testing.T) {
	assert.Equal(t, "", stringPointerValue(nil))
	s := "value"
	assert.Equal(t, "value", stringPointerValue(&s))
}

func TestContextLogger(t *testing.T) {
	_, ok := ContextLogger(context.Background())
	assert.False(t, ok)

	logger := testLogger()
	ctx := WithLogger(context.Background(), logger)
	got, ok := ContextLogger(ctx)
	require.True(t, ok)
	assert.Same(t, logger, got)
}

func TestStructToSlogValue(t *testing.T) {
	type inner struct {
		Password string `json:"password" log:"[redacted]"`
		Host     string `json:"host"`
	}
	type outer struct {
		Name    string `json:"name"`
		Skipped string `json:"skipped"`
		Inner   *inner `json:"inner"`
	}

	v := structToSlogValue(
		outer{
			Name:  "qwacker",
			Inner: &inner{Password: "hunter2", Host: "localhost"},
		},
	)
	s := v.String()
	assert.Contains(t, s, "qwacker")
	assert.Contains(t, s, "localhost")
	assert.Contains(t, s, "[redacted]")
	assert.NotContains(t, s, "hunter2")
	// Empty fields are omitted.
	assert.NotContains(t, s, "skipped")
}
