package qwacker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

const (
	dlSetupOptionCategory    = "category"
	dlSetupOptionRoleChannel = "role_channel"
	dlSetupOptionCSVFile     = "csv_file"
)

const (
	SetupStateAwaitingInput     SetupState = "awaiting_input"
	SetupStateParsing           SetupState = "parsing"
	SetupStateEmojiAssignment   SetupState = "emoji_assignment"
	SetupStateCreatingResources SetupState = "creating_per_leader_resources"
	SetupStatePostingSummary    SetupState = "posting_summary"
	SetupStateAddingReactions   SetupState = "adding_reactions"
	SetupStateDone              SetupState = "done"

	// SetupStateAborted is reached before any remote object is created:
	// no file attached, or the CSV failed to parse.
	SetupStateAborted SetupState = "aborted"

	// SetupStateFailed is reached when a remote create/edit/send/react
	// call fails mid-run. Objects created before the failure stay.
	SetupStateFailed SetupState = "failed"
)

// dlSetupMissingFileResponse is the guidance shown when /dl setup is
// invoked without an attachment.
var dlSetupMissingFileResponse = strings.Join(
	[]string{
		"Attach a CSV export of the DL roster to run setup.",
		"",
		"Required columns: `First, Last, Email, Sections, Username`",
		"Optional columns: `Preferred, Emojis, Timestamp`",
		"",
		"`Sections` is a comma-separated list of section numbers (e.g. `1,2`). " +
			"`Emojis` is free text; literal emoji and `:alias:` codes are both fine. " +
			"`Timestamp` is ISO 8601.",
	},
	"\n",
)

type SetupState string

// IsFinal reports whether the run has reached a terminal state.
func (s SetupState) IsFinal() bool {
	switch s {
	case SetupStateDone, SetupStateAborted, SetupStateFailed:
		return true
	default:
		return false
	}
}

// RemoteOperationError indicates a remote create/edit/send/react call
// failed while provisioning. Step names the operation; Leader is empty
// for steps that aren't tied to one leader (summary, reactions).
type RemoteOperationError struct {
	Leader string
	Step   string
	Err    error
}

func (e RemoteOperationError) Error() string {
	if e.Leader == "" {
		return fmt.Sprintf("%s failed: %s", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %s", e.Step, e.Leader, e.Err)
}

func (e RemoteOperationError) Unwrap() error { return e.Err }

// SetupRun is a snapshot of one provisioning run, published for the
// status API.
type SetupRun struct {
	ID              string     `json:"id"`
	State           SetupState `json:"state"`
	Leaders         int        `json:"leaders"`
	RolesCreated    int        `json:"roles_created"`
	ChannelsCreated int        `json:"channels_created"`
	ReactionsAdded  int        `json:"reactions_added"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// SetupCommand drives one `/dl setup` invocation: parse the uploaded
// roster, assign emojis, create one role and one ask-channel per leader,
// post the role-selection embed and attach its reactions.
//
// Execution is strictly sequential; each remote call completes before the
// next is issued. There is no cross-invocation lock: two concurrent runs
// against the same category will create duplicate roles and channels.
// Re-running with the same CSV likewise creates a second, duplicate set —
// that is expected, not a bug.
type SetupCommand struct {
	run      SetupRun
	logger   *slog.Logger
	handler  InteractionHandler
	session  DiscordSessionHandler
	http     *http.Client
	rng      *rand.Rand
	publish  func(SetupRun)
	guildID  string
	category string
	channel  string
	fileURL  string
}

// newSetupCommand extracts the subcommand options from the interaction.
// A missing attachment is not an error here; execute replies with
// guidance and aborts.
func newSetupCommand(
	q *Qwacker,
	handler InteractionHandler,
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) *SetupCommand {
	opts := discordInteractionOptions(options)

	c := &SetupCommand{
		run: SetupRun{
			ID:        uuid.NewString(),
			State:     SetupStateAwaitingInput,
			StartedAt: time.Now().UTC(),
		},
		handler: handler,
		session: q.discord.session,
		http:    q.config.HTTPClient,
		rng:     q.rng,
		publish: q.publishSetupRun,
		guildID: i.GuildID,
	}
	c.logger = handler.Logger().With("setup_run_id", c.run.ID)

	if opt, ok := opts[dlSetupOptionCategory]; ok {
		c.category = opt.Value.(string)
	}
	if opt, ok := opts[dlSetupOptionRoleChannel]; ok {
		c.channel = opt.Value.(string)
	}
	if opt, ok := opts[dlSetupOptionCSVFile]; ok {
		attachmentID := opt.Value.(string)
		if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
			if attachment, found := resolved.Attachments[attachmentID]; found {
				c.fileURL = attachment.URL
			}
		}
	}

	return c
}

func (c *SetupCommand) setState(state SetupState) {
	c.run.State = state
	if state.IsFinal() {
		finished := time.Now().UTC()
		c.run.FinishedAt = &finished
	}
	if c.publish != nil {
		c.publish(c.run)
	}
	c.logger.Info("setup state", "state", string(state))
}

// execute runs the provisioning pipeline for one invocation.
//
// The interaction is acknowledged (deferred) before the attachment is
// even fetched, so the interaction token can't expire during the run.
// Parse failures are reported verbatim and abort before any remote
// mutation. A remote failure aborts the remainder of the run and reports
// the failing leader and step; roles and channels created before the
// failure are left in place, since no compensating rollback exists.
func (c *SetupCommand) execute(ctx context.Context) error {
	c.setState(SetupStateAwaitingInput)

	if c.fileURL == "" {
		err := c.handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: dlSetupMissingFileResponse,
				},
			},
		)
		c.setState(SetupStateAborted)
		return err
	}

	// Ack before any slow work.
	if err := c.handler.Respond(ctx, ackResponse()); err != nil {
		c.run.Error = err.Error()
		c.setState(SetupStateFailed)
		return err
	}

	c.setState(SetupStateParsing)
	rawCSV, err := c.fetchCSV(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "error fetching attachment", tint.Err(err))
		c.run.Error = err.Error()
		c.reportFailure(ctx, "I couldn't read the attached file.", err)
		c.setState(SetupStateFailed)
		return err
	}

	dls, err := parseRoster(rawCSV)
	if err != nil {
		c.logger.WarnContext(ctx, "roster failed to parse", tint.Err(err))
		c.run.Error = err.Error()
		c.reportFailure(ctx, "That CSV didn't parse. Fix the file and resubmit:", err)
		c.setState(SetupStateAborted)
		return err
	}
	c.run.Leaders = len(dls)

	c.setState(SetupStateEmojiAssignment)
	assignRoleEmojis(dls, c.rng)

	c.setState(SetupStateCreatingResources)
	if err = c.createLeaderResources(ctx, dls); err != nil {
		c.run.Error = err.Error()
		c.reportFailure(ctx, "Setup stopped partway through.", err)
		c.setState(SetupStateFailed)
		return err
	}

	c.setState(SetupStatePostingSummary)
	message, err := c.postSummary(ctx, dls)
	if err != nil {
		c.run.Error = err.Error()
		c.reportFailure(ctx, "Setup stopped partway through.", err)
		c.setState(SetupStateFailed)
		return err
	}

	c.setState(SetupStateAddingReactions)
	if err = c.addReactions(ctx, dls, message); err != nil {
		c.run.Error = err.Error()
		c.reportFailure(ctx, "Setup stopped partway through.", err)
		c.setState(SetupStateFailed)
		return err
	}

	done := fmt.Sprintf(
		"Done! Created %d roles and %d ask-channels, and posted the "+
			"role-selection message to <#%s>.",
		c.run.RolesCreated, c.run.ChannelsCreated, c.channel,
	)
	if _, err = c.handler.Edit(
		ctx, &discordgo.WebhookEdit{Content: &done},
	); err != nil {
		c.logger.ErrorContext(ctx, "error editing final response", tint.Err(err))
	}

	if _, err = c.handler.Followup(
		ctx, &discordgo.WebhookParams{
			Content: reactionRoleCommand(dls, message.ID),
		},
	); err != nil {
		c.logger.ErrorContext(ctx, "error sending reaction-role command", tint.Err(err))
	}

	c.setState(SetupStateDone)
	return nil
}

func (c *SetupCommand) fetchCSV(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL, nil)
	if err != nil {
		return "", err
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status fetching attachment: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// createLeaderResources creates one role and one ask-channel per leader,
// in preferred-name order so the creation order is predictable regardless
// of the order rows arrived in. A progress followup is sent after each
// leader's resources exist.
func (c *SetupCommand) createLeaderResources(
	ctx context.Context,
	dls []*DiscussionLeader,
) error {
	sort.SliceStable(dls, func(i, j int) bool {
		return dls[i].PreferredName() < dls[j].PreferredName()
	})

	for n, dl := range dls {
		role, err := c.session.GuildRoleCreate(
			c.guildID,
			&discordgo.RoleParams{Name: dl.RoleName()},
			discordgo.WithContext(ctx),
		)
		if err != nil {
			return RemoteOperationError{Leader: dl.FullName(), Step: "create role", Err: err}
		}
		dl.Role = role
		c.run.RolesCreated++

		if err = c.createAskChannel(ctx, dl); err != nil {
			return err
		}
		c.run.ChannelsCreated++
		c.publish(c.run)

		progress := fmt.Sprintf(
			"Created %s and <#%s> for %s. (%d/%d)",
			dl.RoleName(), dl.Channel.ID, dl.FullName(), n+1, len(dls),
		)
		if _, err = c.handler.Followup(
			ctx, &discordgo.WebhookParams{Content: progress},
		); err != nil {
			c.logger.ErrorContext(ctx, "error sending progress followup", tint.Err(err))
		}
	}

	return nil
}

// createAskChannel creates the leader's private ask-channel under the
// target category, sets its topic, and grants the leader's role read
// access. The leader's role must already be created.
func (c *SetupCommand) createAskChannel(
	ctx context.Context,
	dl *DiscussionLeader,
) error {
	channel, err := c.session.GuildChannelCreateComplex(
		c.guildID,
		discordgo.GuildChannelCreateData{
			Name:     dl.AskChannelName(),
			Type:     discordgo.ChannelTypeGuildText,
			ParentID: c.category,
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return RemoteOperationError{Leader: dl.FullName(), Step: "create channel", Err: err}
	}
	dl.Channel = channel

	topic := fmt.Sprintf(
		"%s **%s** \n\nFor sensitive issues, please email %s. "+
			"For session times and agenda, visit %s.",
		dl.Role.Mention(), dl.SectionsString(), dl.Email, dlTabsURL,
	)
	if _, err = c.session.ChannelEdit(
		channel.ID,
		&discordgo.ChannelEdit{Topic: topic},
		discordgo.WithContext(ctx),
	); err != nil {
		return RemoteOperationError{Leader: dl.FullName(), Step: "edit channel topic", Err: err}
	}

	if err = c.session.ChannelPermissionSet(
		channel.ID,
		dl.Role.ID,
		discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel,
		0,
		discordgo.WithContext(ctx),
	); err != nil {
		return RemoteOperationError{Leader: dl.FullName(), Step: "set channel permission", Err: err}
	}

	return nil
}

// postSummary sends the role-selection embed to the designated channel.
// Leaders appear in last-name order; this is the canonical ordering the
// reaction-role integration must match.
func (c *SetupCommand) postSummary(
	ctx context.Context,
	dls []*DiscussionLeader,
) (*discordgo.Message, error) {
	sort.SliceStable(dls, func(i, j int) bool {
		return dls[i].Last < dls[j].Last
	})

	message, err := c.session.ChannelMessageSendComplex(
		c.channel,
		&discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{roleSelectionEmbed(dls)},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return nil, RemoteOperationError{Step: "post summary", Err: err}
	}
	return message, nil
}

// addReactions attaches one reaction per leader to the summary message,
// in the same last-name order used to build it. The order matters: it is
// the only thing keeping the reaction row visually aligned with the embed
// fields, because the reaction-role bot consuming them doesn't preserve
// input order itself.
func (c *SetupCommand) addReactions(
	ctx context.Context,
	dls []*DiscussionLeader,
	message *discordgo.Message,
) error {
	for _, dl := range dls {
		if err := c.session.MessageReactionAdd(
			message.ChannelID,
			message.ID,
			dl.RoleEmoji,
			discordgo.WithContext(ctx),
		); err != nil {
			return RemoteOperationError{Leader: dl.FullName(), Step: "add reaction", Err: err}
		}
		c.run.ReactionsAdded++
	}
	c.publish(c.run)
	return nil
}

// reportFailure edits the acknowledged response with a short lead-in and
// the failure detail in a code block.
func (c *SetupCommand) reportFailure(ctx context.Context, lead string, err error) {
	content := fmt.Sprintf("%s\n%s", lead, codeBlock(err.Error()))
	if _, editErr := c.handler.Edit(
		ctx, &discordgo.WebhookEdit{Content: &content},
	); editErr != nil {
		c.logger.ErrorContext(ctx, "error reporting failure", tint.Err(editErr))
	}
}

// roleSelectionEmbed builds the summary embed: one inline field per
// leader, in the order given (callers sort by last name first).
func roleSelectionEmbed(dls []*DiscussionLeader) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{Name: "For CSC 215 Duclings"},
		Description: "Click on the reactions below to access the channel for " +
			"your Discussion Section. You will also be notified for any " +
			"notifications your Discussion Leader sends.",
	}
	for _, dl := range dls {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name: dl.FullName(),
				Value: fmt.Sprintf(
					"%s %s\n-# %s",
					dl.RoleEmoji, dl.Role.Mention(), dl.SectionsString(),
				),
				Inline: true,
			},
		)
	}
	return embed
}

// reactionRoleCommand renders the ready-to-copy command line for the
// external reaction-role bot, pairing each emoji with its role in the
// same order the reactions were added.
func reactionRoleCommand(dls []*DiscussionLeader, messageID string) string {
	var b strings.Builder
	b.WriteString("Paste this to configure the reaction roles:\n```\n")
	b.WriteString(fmt.Sprintf("!rr addmany %s", messageID))
	for _, dl := range dls {
		b.WriteString(fmt.Sprintf(" %s %s", dl.RoleEmoji, dl.RoleName()))
	}
	b.WriteString("\n```")
	return b.String()
}
