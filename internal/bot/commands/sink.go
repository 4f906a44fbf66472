package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/draft-auction/internal/auction"
	"github.com/jensholdgaard/draft-auction/internal/event"
)

// Sender posts a message to a channel. *discordgo.Session satisfies it.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelSink broadcasts session events to the channel the room was
// opened in.
type ChannelSink struct {
	sender Sender
	rooms  *Rooms
	logger *slog.Logger
}

// NewChannelSink returns a sink posting through sender.
func NewChannelSink(sender Sender, rooms *Rooms, logger *slog.Logger) *ChannelSink {
	return &ChannelSink{sender: sender, rooms: rooms, logger: logger}
}

// Publish posts e if its session is bound to a channel and the event has a
// public rendering.
func (c *ChannelSink) Publish(ctx context.Context, e event.Event) error {
	channel, ok := c.rooms.ChannelFor(e.AggregateID)
	if !ok {
		c.logger.DebugContext(ctx, "no channel bound for session",
			slog.String("session", e.AggregateID), slog.String("type", string(e.Type)))
		return nil
	}
	msg, ok := Format(e)
	if !ok {
		return nil
	}
	if _, err := c.sender.ChannelMessageSend(channel, msg); err != nil {
		return fmt.Errorf("posting %s to channel %s: %w", e.Type, channel, err)
	}
	return nil
}

// Format renders an event as a channel message. It reports false for
// events that are not broadcast.
func Format(e event.Event) (string, bool) {
	switch e.Type {
	case event.ParticipantJoined:
		var d event.ParticipantData
		if e.Decode(&d) != nil {
			return "", false
		}
		verb := "joined"
		if d.Reconnected {
			verb = "is back"
		}
		who := d.Name
		if d.Bot {
			who += " (bot)"
		}
		return fmt.Sprintf("**%s** %s as **%s**.", who, verb, d.Franchise), true

	case event.ParticipantLeft:
		var d event.ParticipantData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("**%s** left.", d.Name), true

	case event.AdminChanged:
		var d event.AdminChangedData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("**%s** is now the room admin.", d.Admin), true

	case event.PhaseChanged:
		var d event.PhaseChangedData
		if e.Decode(&d) != nil {
			return "", false
		}
		switch auction.Phase(d.To) {
		case auction.PhaseActive:
			if d.From == string(auction.PhasePaused) {
				return "Auction resumed.", true
			}
			return "The auction has started!", true
		case auction.PhasePaused:
			return "Auction paused.", true
		case auction.PhaseEnded:
			return "The auction is over. `/auction-standings` shows the squads.", true
		}
		return "", false

	case event.ItemOffered:
		var d event.ItemOfferedData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("Up next: **%s** (%s, rating %.1f). Base price **%s cr**.",
			d.Name, d.Role, d.Rating, d.BasePrice), true

	case event.BidAccepted:
		var d event.BidAcceptedData
		if e.Decode(&d) != nil {
			return "", false
		}
		if d.Reason != "" {
			return fmt.Sprintf("**%s** bids **%s cr** (%s).", d.Bidder, d.Amount, d.Reason), true
		}
		return fmt.Sprintf("**%s** bids **%s cr**.", d.Bidder, d.Amount), true

	case event.ItemSold:
		var d event.ItemSoldData
		if e.Decode(&d) != nil {
			return "", false
		}
		msg := fmt.Sprintf("SOLD! **%s** goes to **%s** for **%s cr**.", d.Name, d.Buyer, d.Price)
		if d.Complete {
			msg += fmt.Sprintf(" %s's squad is complete.", d.Buyer)
		}
		return msg, true

	case event.ItemUnsold:
		var d event.ItemUnsoldData
		if e.Decode(&d) != nil {
			return "", false
		}
		return fmt.Sprintf("**%s** goes unsold.", d.Name), true
	}
	return "", false
}

// FormatState renders a session snapshot.
func FormatState(st auction.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Room %s** (%s, %s stage). Admin: %s. Sold %d, %d left in the pool.\n",
		st.Code, st.Phase, st.Stage, st.Admin, st.Sold, st.Unsold)
	if st.Item != nil {
		fmt.Fprintf(&b, "Under the hammer: **%s** (%s, rating %.1f). ", st.Item.Name, st.Item.Role, st.Item.Rating)
		if st.Holder != "" {
			fmt.Fprintf(&b, "Top bid **%s cr** by %s. ", st.Current, st.Holder)
		}
		fmt.Fprintf(&b, "Next bid **%s cr**.\n", st.Next)
	}
	names := make([]string, 0, len(st.Participants))
	for _, p := range st.Participants {
		name := fmt.Sprintf("%s [%s]", p.Name, p.Franchise)
		if !p.Connected {
			name += " (away)"
		}
		names = append(names, name)
	}
	fmt.Fprintf(&b, "Participants: %s", strings.Join(names, ", "))
	return b.String()
}
