package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/auction"
)

// Auctions is the slice of auction.Manager the handlers drive.
type Auctions interface {
	CreateSession(ctx context.Context, admin string, budget decimal.Decimal, bots int) (auction.State, error)
	JoinSession(ctx context.Context, code, name string) (auction.State, error)
	LeaveSession(ctx context.Context, code, name string) error
	Start(ctx context.Context, code, by string) error
	Pause(ctx context.Context, code, by string) error
	Resume(ctx context.Context, code, by string) error
	End(ctx context.Context, code, by string) error
	PlaceBid(ctx context.Context, code, bidder string, amount decimal.Decimal) error
	NextBid(ctx context.Context, code string) (decimal.Decimal, error)
	State(ctx context.Context, code string) (auction.State, error)
	Standings(ctx context.Context, code string) ([]auction.Standing, error)
}

// Handlers process Discord interactions.
type Handlers struct {
	auctions Auctions
	rooms    *Rooms
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(auctions Auctions, rooms *Rooms, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		auctions: auctions,
		rooms:    rooms,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/draft-auction/internal/bot/commands"),
	}
}

func codeOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "code",
		Description: "Room code (defaults to the room opened in this channel)",
		Required:    required,
		MinLength:   ptr(4),
		MaxLength:   4,
	}
}

func ptr[T any](v T) *T { return &v }

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	minBots := float64(0)
	minBudget := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "auction-create",
			Description: "Open an auction room in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "bots",
					Description: "Number of automated bidders",
					MinValue:    &minBots,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "budget",
					Description: "Budget per participant in crores",
					MinValue:    &minBudget,
				},
			},
		},
		{
			Name:        "auction-join",
			Description: "Join an auction room",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(true)},
		},
		{
			Name:        "auction-leave",
			Description: "Leave an auction room",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "auction-start",
			Description: "Start or restart the auction (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "auction-pause",
			Description: "Pause the auction (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "auction-resume",
			Description: "Resume a paused auction (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "auction-end",
			Description: "End the auction (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "bid",
			Description: "Bid on the player under the hammer",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "amount",
					Description: "Bid in crores (defaults to the next step)",
				},
				codeOption(false),
			},
		},
		{
			Name:        "auction-status",
			Description: "Show the player under the hammer",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
		{
			Name:        "auction-standings",
			Description: "Show every squad, best rated first",
			Options:     []*discordgo.ApplicationCommandOption{codeOption(false)},
		},
	}
}

// Request is a transport-neutral slash command invocation.
type Request struct {
	Command string
	User    string
	Channel string
	Options map[string]any
}

func (r Request) str(name string) string {
	s, _ := r.Options[name].(string)
	return strings.TrimSpace(s)
}

func (r Request) number(name string) (float64, bool) {
	switch v := r.Options[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Reply is what the caller sees. Ephemeral replies are visible to the
// caller only.
type Reply struct {
	Content   string
	Ephemeral bool
}

func private(format string, args ...any) Reply {
	return Reply{Content: fmt.Sprintf(format, args...), Ephemeral: true}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	req := Request{
		Command: data.Name,
		User:    caller(i),
		Channel: i.ChannelID,
		Options: make(map[string]any, len(data.Options)),
	}
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			req.Options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			req.Options[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionNumber:
			req.Options[opt.Name] = opt.FloatValue()
		}
	}

	reply := h.Handle(ctx, req)
	if err := respond(s, i, reply); err != nil {
		h.logger.ErrorContext(ctx, "failed to respond to interaction",
			slog.String("command", data.Name), slog.Any("error", err))
	}
}

// Handle runs one command and returns the reply for the caller.
func (h *Handlers) Handle(ctx context.Context, req Request) Reply {
	if req.User == "" {
		return private("Could not tell who you are.")
	}
	switch req.Command {
	case "auction-create":
		return h.handleCreate(ctx, req)
	case "auction-join":
		return h.handleJoin(ctx, req)
	}

	code, ok := h.resolve(req)
	if !ok {
		return private("No auction room is open in this channel. Pass a `code`.")
	}
	switch req.Command {
	case "auction-leave":
		return h.simple(ctx, "Left room **%s**.", code, func() error { return h.auctions.LeaveSession(ctx, code, req.User) })
	case "auction-start":
		return h.simple(ctx, "Auction **%s** started.", code, func() error { return h.auctions.Start(ctx, code, req.User) })
	case "auction-pause":
		return h.simple(ctx, "Auction **%s** paused.", code, func() error { return h.auctions.Pause(ctx, code, req.User) })
	case "auction-resume":
		return h.simple(ctx, "Auction **%s** resumed.", code, func() error { return h.auctions.Resume(ctx, code, req.User) })
	case "auction-end":
		return h.simple(ctx, "Auction **%s** ended.", code, func() error { return h.auctions.End(ctx, code, req.User) })
	case "bid":
		return h.handleBid(ctx, req, code)
	case "auction-status":
		return h.handleStatus(ctx, code)
	case "auction-standings":
		return h.handleStandings(ctx, code)
	default:
		return private("Unknown command")
	}
}

func (h *Handlers) resolve(req Request) (string, bool) {
	if code := req.str("code"); code != "" {
		return strings.ToUpper(code), true
	}
	return h.rooms.CodeFor(req.Channel)
}

func (h *Handlers) simple(ctx context.Context, done, code string, fn func() error) Reply {
	if err := fn(); err != nil {
		return h.failure(ctx, err)
	}
	return private(done, code)
}

func (h *Handlers) handleCreate(ctx context.Context, req Request) Reply {
	bots := 0
	if n, ok := req.number("bots"); ok {
		bots = int(n)
	}
	budget := decimal.Zero
	if v, ok := req.number("budget"); ok {
		budget = decimal.NewFromFloat(v).Round(2)
	}

	st, err := h.auctions.CreateSession(ctx, req.User, budget, bots)
	if err != nil {
		return h.failure(ctx, err)
	}
	h.rooms.Bind(req.Channel, st.Code, st.SessionID)
	return Reply{Content: fmt.Sprintf(
		"Auction room **%s** is open with %d automated bidders. Join with `/auction-join code:%s`, then **%s** can `/auction-start`.",
		st.Code, bots, st.Code, st.Admin)}
}

func (h *Handlers) handleJoin(ctx context.Context, req Request) Reply {
	code := strings.ToUpper(req.str("code"))
	if code == "" {
		return private("Pass the room `code` to join.")
	}
	st, err := h.auctions.JoinSession(ctx, code, req.User)
	if err != nil {
		return h.failure(ctx, err)
	}
	franchise := ""
	for _, p := range st.Participants {
		if strings.EqualFold(p.Name, req.User) {
			franchise = p.Franchise
		}
	}
	return private("You are in room **%s** as **%s**.", st.Code, franchise)
}

func (h *Handlers) handleBid(ctx context.Context, req Request, code string) Reply {
	var amount decimal.Decimal
	if v, ok := req.number("amount"); ok {
		amount = decimal.NewFromFloat(v).Round(2)
	} else {
		next, err := h.auctions.NextBid(ctx, code)
		if err != nil {
			return h.failure(ctx, err)
		}
		amount = next
	}
	if err := h.auctions.PlaceBid(ctx, code, req.User, amount); err != nil {
		return h.failure(ctx, err)
	}
	return private("Bid of **%s cr** placed.", amount)
}

func (h *Handlers) handleStatus(ctx context.Context, code string) Reply {
	st, err := h.auctions.State(ctx, code)
	if err != nil {
		return h.failure(ctx, err)
	}
	return Reply{Content: FormatState(st)}
}

func (h *Handlers) handleStandings(ctx context.Context, code string) Reply {
	standings, err := h.auctions.Standings(ctx, code)
	if err != nil {
		return h.failure(ctx, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Standings for %s:**\n", code)
	for idx, s := range standings {
		done := ""
		if s.Status.Complete {
			done = " (complete)"
		}
		fmt.Fprintf(&b, "%d. %s [%s] rating %.1f, %d players, %s cr left%s\n",
			idx+1, s.Name, s.Franchise, s.Status.Rating, s.Status.Players, s.Status.Remaining, done)
	}
	return Reply{Content: b.String()}
}

// failure turns a manager error into a private reply. Rejections go only
// to the caller.
func (h *Handlers) failure(ctx context.Context, err error) Reply {
	var verr *auction.ValidationError
	switch {
	case errors.As(err, &verr):
		return private("Bid rejected: %s.", verr.Reason)
	case errors.Is(err, auction.ErrNotAdmin):
		return private("Only the room admin can do that.")
	case errors.Is(err, auction.ErrSessionNotFound):
		return private("No such auction room.")
	}
	h.logger.DebugContext(ctx, "command failed", slog.Any("error", err))
	return private("Failed: %s", err)
}

func caller(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.Username
	case i.User != nil:
		return i.User.Username
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, r Reply) error {
	data := &discordgo.InteractionResponseData{Content: r.Content}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}
