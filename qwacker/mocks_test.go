package qwacker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type permissionSetCall struct {
	channelID  string
	targetID   string
	targetType discordgo.PermissionOverwriteType
	allow      int64
	deny       int64
}

type reactionCall struct {
	channelID string
	messageID string
	emoji     string
}

type channelEditCall struct {
	channelID string
	edit      *discordgo.ChannelEdit
}

type messageSendCall struct {
	channelID string
	data      *discordgo.MessageSend
}

// mockDiscordSession implements DiscordSessionHandler, recording every
// mutating call and optionally failing specific operations.
type mockDiscordSession struct {
	rolesCreated    []*discordgo.RoleParams
	channelsCreated []discordgo.GuildChannelCreateData
	channelEdits    []channelEditCall
	permissionSets  []permissionSetCall
	reactions       []reactionCall
	messagesSent    []messageSendCall
	guildChannels   []*discordgo.Channel
	channelMessages map[string]*discordgo.Message
	messageEdits    []*discordgo.MessageEdit

	roleCreateErr    error
	channelCreateErr error
	channelEditErr   error
	permissionSetErr error
	reactionErr      error
	sendComplexErr   error
	guildChannelsErr error
	channelMsgErr    error
	msgEditErr       error
}

var _ DiscordSessionHandler = (*mockDiscordSession)(nil)

func (m *mockDiscordSession) Open() error  { return nil }
func (m *mockDiscordSession) Close() error { return nil }

func (m *mockDiscordSession) AddHandler(handler any) func() {
	return func() {}
}

func (m *mockDiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return commands, nil
}

func (m *mockDiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{ID: "msg", ChannelID: channelID, Content: message}, nil
}

func (m *mockDiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	if m.sendComplexErr != nil {
		return nil, m.sendComplexErr
	}
	m.messagesSent = append(m.messagesSent, messageSendCall{channelID, data})
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", len(m.messagesSent)),
		ChannelID: channelID,
	}, nil
}

func (m *mockDiscordSession) ChannelMessage(
	channelID string,
	messageID string,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	if m.channelMsgErr != nil {
		return nil, m.channelMsgErr
	}
	msg, ok := m.channelMessages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	return msg, nil
}

func (m *mockDiscordSession) ChannelMessageEditComplex(
	e *discordgo.MessageEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	if m.msgEditErr != nil {
		return nil, m.msgEditErr
	}
	m.messageEdits = append(m.messageEdits, e)
	return &discordgo.Message{ID: e.ID, ChannelID: e.Channel}, nil
}

func (m *mockDiscordSession) GuildRoleCreate(
	guildID string,
	data *discordgo.RoleParams,
	options ...discordgo.RequestOption,
) (*discordgo.Role, error) {
	if m.roleCreateErr != nil {
		return nil, m.roleCreateErr
	}
	m.rolesCreated = append(m.rolesCreated, data)
	return &discordgo.Role{
		ID:   fmt.Sprintf("role-%d", len(m.rolesCreated)),
		Name: data.Name,
	}, nil
}

func (m *mockDiscordSession) GuildChannelCreateComplex(
	guildID string,
	data discordgo.GuildChannelCreateData,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	if m.channelCreateErr != nil {
		return nil, m.channelCreateErr
	}
	m.channelsCreated = append(m.channelsCreated, data)
	return &discordgo.Channel{
		ID:       fmt.Sprintf("channel-%d", len(m.channelsCreated)),
		Name:     data.Name,
		Type:     data.Type,
		ParentID: data.ParentID,
	}, nil
}

func (m *mockDiscordSession) GuildChannels(
	guildID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Channel, error) {
	if m.guildChannelsErr != nil {
		return nil, m.guildChannelsErr
	}
	return m.guildChannels, nil
}

func (m *mockDiscordSession) ChannelEdit(
	channelID string,
	data *discordgo.ChannelEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	if m.channelEditErr != nil {
		return nil, m.channelEditErr
	}
	m.channelEdits = append(m.channelEdits, channelEditCall{channelID, data})
	return &discordgo.Channel{ID: channelID}, nil
}

func (m *mockDiscordSession) ChannelPermissionSet(
	channelID string,
	targetID string,
	targetType discordgo.PermissionOverwriteType,
	allow int64,
	deny int64,
	options ...discordgo.RequestOption,
) error {
	if m.permissionSetErr != nil {
		return m.permissionSetErr
	}
	m.permissionSets = append(
		m.permissionSets,
		permissionSetCall{channelID, targetID, targetType, allow, deny},
	)
	return nil
}

func (m *mockDiscordSession) MessageReactionAdd(
	channelID string,
	messageID string,
	emojiID string,
	options ...discordgo.RequestOption,
) error {
	if m.reactionErr != nil {
		return m.reactionErr
	}
	m.reactions = append(m.reactions, reactionCall{channelID, messageID, emojiID})
	return nil
}

func (m *mockDiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return nil
}

func (m *mockDiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (m *mockDiscordSession) FollowupMessageCreate(
	interaction *discordgo.Interaction,
	wait bool,
	data *discordgo.WebhookParams,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (m *mockDiscordSession) SetHTTPClient(client *http.Client) {}

// mockInteractionHandler implements InteractionHandler, recording the
// responses, edits and followups a command sends.
type mockInteractionHandler struct {
	interaction *discordgo.InteractionCreate
	responses   []*discordgo.InteractionResponse
	edits       []*discordgo.WebhookEdit
	followups   []*discordgo.WebhookParams
	respondErr  error
}

var _ InteractionHandler = (*mockInteractionHandler)(nil)

func (m *mockInteractionHandler) Respond(
	_ context.Context,
	resp *discordgo.InteractionResponse,
) error {
	if m.respondErr != nil {
		return m.respondErr
	}
	m.responses = append(m.responses, resp)
	return nil
}

func (m *mockInteractionHandler) Edit(
	_ context.Context,
	e *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.edits = append(m.edits, e)
	return &discordgo.Message{}, nil
}

func (m *mockInteractionHandler) Followup(
	_ context.Context,
	params *discordgo.WebhookParams,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.followups = append(m.followups, params)
	return &discordgo.Message{}, nil
}

func (m *mockInteractionHandler) GetInteraction() *discordgo.InteractionCreate {
	return m.interaction
}

func (m *mockInteractionHandler) Logger() *slog.Logger {
	return testLogger()
}
