package qwacker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/mosguinz/qwacker/qwacker.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var (
	defaultLogWriter io.Writer = os.Stdout

	structValidator = validator.New()
)

//nolint:gochecknoinits // config structs carry gin-style binding tags
func init() {
	structValidator.SetTagName("binding")
}

// Qwacker is the bot process: configuration, logging, the Discord
// integration and the optional status API.
//
// One provisioning run is owned entirely by one command invocation;
// Qwacker itself only keeps a snapshot of the most recent run for the
// status API.
type Qwacker struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	// Handles discord integration, sessions
	discord *Discord

	// Read-only status API server
	api *API

	// rng feeds the fallback emoji draw
	rng *rand.Rand

	botUser   *discordgo.User
	botUserMu sync.RWMutex

	lastRun   *SetupRun
	lastRunMu sync.RWMutex
}

// New creates and initializes a new Qwacker instance from the given
// config: logging, the Discord integration and (if enabled) the status
// API server. Call Run on the result to connect.
func New(config *Config) (*Qwacker, error) {
	var errs []error

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	q := &Qwacker{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	q.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     config.LogLevel,
			AddSource: true,
		},
	)
	q.logger = slog.New(q.logHandler)
	slog.SetDefault(q.logger)

	config.Discord.httpClient = config.HTTPClient

	disc, err := newDiscord(config.Discord)
	if err != nil {
		errs = append(errs, err)
	} else {
		discordgo.Logger = discordgoLoggerFunc(
			context.Background(),
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.Discord.DiscordGoLogLevel,
					AddSource: true,
				},
			).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
		)

		disc.logger = slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.Discord.LogLevel,
					AddSource: true,
				},
			),
		).With(loggerNameKey, "discord")

		disc.q = q
		q.discord = disc
	}

	if config.API.Enabled {
		q.api = newAPI(q, config.API)
	}

	return q, errors.Join(errs...)
}

// ValidateConfig checks the loaded config against its binding tags.
func (q *Qwacker) ValidateConfig() error {
	return structValidator.Struct(q.config)
}

// Run connects to the Discord gateway, registers the slash commands and
// serves until the context is canceled.
func (q *Qwacker) Run(ctx context.Context) error {
	if err := q.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	session, err := q.discord.newSession()
	if err != nil {
		return err
	}
	q.discord.session = session

	q.discord.discordgoRemoveHandlerFuncs = []func(){
		session.AddHandler(q.discord.handlerReady()),
		session.AddHandler(q.discord.handlerConnect()),
		session.AddHandler(q.discord.handlerDisconnect()),
		session.AddHandler(q.handlerInteractionCreate(ctx)),
	}

	startupCtx, cancel := context.WithTimeout(ctx, q.config.StartupTimeout)
	defer cancel()

	if err = session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}

	if _, err = q.discord.registerCommands(
		discordgo.WithContext(startupCtx),
	); err != nil {
		_ = session.Close()
		return fmt.Errorf("error registering commands: %w", err)
	}

	if q.api != nil {
		go func() {
			if serveErr := q.api.Serve(ctx); serveErr != nil &&
				!errors.Is(serveErr, http.ErrServerClosed) {
				q.logger.Error("status api stopped", tint.Err(serveErr))
			}
		}()
	}

	q.logger.Info("running", "version", Version)
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		q.config.ShutdownTimeout,
	)
	defer shutdownCancel()

	if q.api != nil {
		q.api.Shutdown(shutdownCtx)
	}

	for _, removeHandler := range q.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	if err = session.Close(); err != nil {
		q.logger.Error("error closing discord session", tint.Err(err))
		return err
	}
	return nil
}

// handlerInteractionCreate returns the gateway handler that dispatches
// incoming interactions. Each interaction is processed on its own
// goroutine; the provisioning run itself is strictly sequential within
// that goroutine.
func (q *Qwacker) handlerInteractionCreate(ctx context.Context) func(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handler := GatewayHandler{
			session:     q.discord.session,
			interaction: i,
			logger: q.discord.logger.With(
				slog.Group("interaction", interactionLogAttrs(*i)...),
			),
		}
		go q.handleInteraction(ctx, handler)
	}
}

// handleInteraction processes one incoming Discord interaction.
func (q *Qwacker) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.ErrorContext(ctx, "no user found in interaction")
		return
	}
	if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring")
		return
	}

	ctx = WithLogger(ctx, logger)

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponsePong,
			},
		)
	case discordgo.InteractionApplicationCommand:
		q.handleApplicationCommand(ctx, handler, i)
	default:
		logger.WarnContext(ctx, "unhandled interaction type")
	}
}

func (q *Qwacker) handleApplicationCommand(
	ctx context.Context,
	handler InteractionHandler,
	i *discordgo.InteractionCreate,
) {
	logger := handler.Logger()
	data := i.ApplicationCommandData()
	logger.InfoContext(ctx, "received command", "command", data.Name)

	switch data.Name {
	case DiscordSlashCommandDL:
		if len(data.Options) == 0 {
			return
		}
		sub := data.Options[0]
		switch sub.Name {
		case DiscordSubCommandDLSetup:
			cmd := newSetupCommand(q, handler, i, sub.Options)
			if err := cmd.execute(ctx); err != nil {
				logger.ErrorContext(ctx, "setup run failed", tint.Err(err))
			}
		case DiscordSubCommandDLAdd:
			_ = handler.Respond(
				ctx, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: "Not implemented yet. Use `/dl setup` with a CSV.",
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				},
			)
		}
	case DiscordSlashCommandArchive:
		q.handleArchive(ctx, handler, i)
	case DiscordSlashCommandRules:
		if len(data.Options) == 0 {
			return
		}
		sub := data.Options[0]
		switch sub.Name {
		case DiscordSubCommandRulesPost:
			q.handleRulesPost(ctx, handler, i, sub.Options)
		case DiscordSubCommandRulesEdit:
			q.handleRulesUpdate(ctx, handler, i, sub.Options)
		}
	default:
		logger.WarnContext(ctx, "unknown command", "command", data.Name)
	}
}

func (q *Qwacker) storeBotUser(u *discordgo.User) {
	q.botUserMu.Lock()
	defer q.botUserMu.Unlock()
	q.botUser = u
}

func (q *Qwacker) botUserID() string {
	q.botUserMu.RLock()
	defer q.botUserMu.RUnlock()
	if q.botUser == nil {
		return ""
	}
	return q.botUser.ID
}

// publishSetupRun records the latest snapshot of a provisioning run for
// the status API.
func (q *Qwacker) publishSetupRun(run SetupRun) {
	q.lastRunMu.Lock()
	defer q.lastRunMu.Unlock()
	q.lastRun = &run
}

// LastSetupRun returns a copy of the most recent provisioning run, if
// any.
func (q *Qwacker) LastSetupRun() (SetupRun, bool) {
	q.lastRunMu.RLock()
	defer q.lastRunMu.RUnlock()
	if q.lastRun == nil {
		return SetupRun{}, false
	}
	return *q.lastRun, true
}
