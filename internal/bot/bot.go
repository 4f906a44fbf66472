package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/bot/commands"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
)

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	logger  *slog.Logger
	tp      trace.TracerProvider
	rooms   *commands.Rooms
	cmds    []*discordgo.ApplicationCommand
}

// New creates a new Bot instance. The connection opens in Start.
func New(cfg config.DiscordConfig, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Bot{
		session: session,
		cfg:     cfg,
		logger:  logger,
		tp:      tp,
		rooms:   commands.NewRooms(),
	}, nil
}

// Sink returns the event sink that posts auction events to the channel
// each room was opened in.
func (b *Bot) Sink() event.Sink {
	return commands.NewChannelSink(b.session, b.rooms, b.logger)
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context, auctions commands.Auctions) error {
	handlers := commands.NewHandlers(auctions, b.rooms, b.logger, b.tp)

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})
	b.session.AddHandler(handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop removes the registered commands and closes the Discord connection.
func (b *Bot) Stop() error {
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}
