package auction_test

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/auction"
	"github.com/jensholdgaard/draft-auction/internal/bidding"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
)

func bids(t *testing.T, events []event.Event) []event.BidAcceptedData {
	t.Helper()
	var out []event.BidAcceptedData
	for _, e := range events {
		if e.Type != event.BidAccepted {
			continue
		}
		var d event.BidAcceptedData
		assert.NoError(t, e.Decode(&d))
		out = append(out, d)
	}
	return out
}

// reactionClock reports every timer armed for the bot reaction delay, so a
// test knows a round is in flight with its bots asleep.
type reactionClock struct {
	*clock.Mock
	reaction time.Duration
	asleep   chan struct{}
}

func (c *reactionClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := c.Mock.AfterFunc(d, f)
	if d == c.reaction {
		c.asleep <- struct{}{}
	}
	return t
}

func within(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestCascade_FirstRoundOpensAtBasePrice(t *testing.T) {
	h := newHarness(t, newCatalog(t, item("b1", catalog.Batter, 8)), nil)
	ctx := context.Background()
	st := h.create(t, "alice", 3)
	assert.NoError(t, h.mgr.Start(ctx, st.Code, "alice"))

	st, err := h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.True(t, st.BotsBidding)

	h.clk.Advance(h.cfg.FirstRoundDelay)
	got := bids(t, h.rec.Events())
	assert.Equal(t, 1, len(got))
	check.True(t, got[0].Bot)
	check.Equal(t, "0.2", got[0].Amount.String())
	check.Equal(t, "bot-1", got[0].BidderID)
	check.NotEqual(t, "", got[0].Reason)
}

func TestCascade_AnswersHumanBid(t *testing.T) {
	h := newHarness(t, newCatalog(t, item("b1", catalog.Batter, 8)), nil)
	ctx := context.Background()
	st := h.create(t, "alice", 2)
	assert.NoError(t, h.mgr.Start(ctx, st.Code, "alice"))
	h.clk.Advance(h.cfg.FirstRoundDelay)

	assert.NoError(t, h.mgr.PlaceBid(ctx, st.Code, "alice", dec("0.25")))
	h.clk.Advance(h.cfg.InterRoundDelay)

	got := bids(t, h.rec.Events())
	assert.Equal(t, 3, len(got))
	check.False(t, got[1].Bot)
	check.True(t, got[2].Bot)
	check.Equal(t, "0.3", got[2].Amount.String())

	st, err := h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.NotEqual(t, "alice", st.Holder)
	check.Equal(t, "0.35", st.Next.String())
}

func TestCascade_PauseCancelsRounds(t *testing.T) {
	h := newHarness(t, newCatalog(t, item("b1", catalog.Batter, 8)), nil)
	ctx := context.Background()
	st := h.create(t, "alice", 3)
	assert.NoError(t, h.mgr.Start(ctx, st.Code, "alice"))
	h.clk.Advance(h.cfg.FirstRoundDelay)
	before := len(bids(t, h.rec.Events()))

	assert.NoError(t, h.mgr.Pause(ctx, st.Code, "alice"))
	check.Equal(t, 0, h.clk.Pending())
	h.clk.Advance(time.Hour)
	check.Equal(t, before, len(bids(t, h.rec.Events())))

	st, err := h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.False(t, st.BotsBidding)
}

func TestCascade_RunsAuctionToCompletion(t *testing.T) {
	cat := newCatalog(t,
		item("b1", catalog.Batter, 9),
		item("b2", catalog.Batter, 7),
		item("w1", catalog.WicketKeeper, 8),
		item("s1", catalog.Spinner, 6),
	)
	h := newHarness(t, cat, nil)
	ctx := context.Background()
	st := h.create(t, "alice", 3)
	assert.NoError(t, h.mgr.Start(ctx, st.Code, "alice"))

	h.clk.Advance(24 * time.Hour)
	check.Equal(t, 0, h.clk.Pending())

	st, err := h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.Equal(t, auction.PhaseEnded, st.Phase)
	check.Equal(t, 4, st.Sold)
	check.False(t, st.BotsBidding)

	events := h.rec.Events()
	for i, e := range events {
		check.Equal(t, i+1, e.Version)
	}

	// Every item climbs the ladder one step at a time, never with the same
	// bidder twice in a row.
	byItem := make(map[string][]event.BidAcceptedData)
	for _, b := range bids(t, events) {
		check.True(t, b.Bot)
		byItem[b.ItemID] = append(byItem[b.ItemID], b)
	}
	check.Equal(t, 4, len(byItem))
	for id, seq := range byItem {
		it, ok := cat.Get(id)
		assert.True(t, ok)
		prev := decimal.Zero
		for i, b := range seq {
			check.Equal(t, bidding.Next(prev, it.BasePrice).String(), b.Amount.String())
			if i > 0 {
				check.NotEqual(t, seq[i-1].BidderID, b.BidderID)
			}
			prev = b.Amount
		}
	}

	for _, p := range st.Participants {
		if !p.Bot {
			continue
		}
		history, err := h.mgr.BotHistory(ctx, st.Code, p.Name)
		assert.NoError(t, err)
		for _, d := range history {
			check.True(t, d.Amount.LessThanOrEqual(d.Ceiling))
		}
	}

	standings, err := h.mgr.Standings(ctx, st.Code)
	assert.NoError(t, err)
	players := 0
	for _, s := range standings {
		check.False(t, s.Status.Remaining.IsNegative())
		players += s.Status.Players
	}
	check.Equal(t, 4, players)
	for i := 1; i < len(standings); i++ {
		check.True(t, standings[i-1].Status.Rating >= standings[i].Status.Rating)
	}

	sales, err := h.repos.Sales.ListBySession(ctx, st.SessionID)
	assert.NoError(t, err)
	check.Equal(t, 4, len(sales))
}

func TestBotHistory_RejectsHumans(t *testing.T) {
	h := newHarness(t, newCatalog(t, item("b1", catalog.Batter, 8)), nil)
	st := h.create(t, "alice", 1)

	_, err := h.mgr.BotHistory(context.Background(), st.Code, "alice")
	check.Error(t, err)
}

func TestCascade_HumanBidAndEndDuringRound(t *testing.T) {
	const reaction = 700 * time.Millisecond
	rc := &reactionClock{reaction: reaction, asleep: make(chan struct{}, 4)}
	h := newHarnessWith(t, newCatalog(t, item("b1", catalog.Batter, 8)), func(c *config.AuctionConfig) {
		c.BotReactionMin = reaction
	}, func(d *auction.Deps) {
		rc.Mock = d.Clock.(*clock.Mock)
		d.Clock = rc
	})
	ctx := context.Background()
	st := h.create(t, "alice", 1)
	assert.NoError(t, h.mgr.Start(ctx, st.Code, "alice"))

	// The opening round fires and the bot sleeps on its reaction.
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.clk.Advance(h.cfg.FirstRoundDelay)
	}()
	within(t, "bot to start deciding", rc.asleep)

	// Alice opens first, so the bot's raise at the same price is dropped and
	// the round runs again on the new price.
	assert.NoError(t, h.mgr.PlaceBid(ctx, st.Code, "alice", dec("0.2")))
	h.clk.Advance(reaction)
	within(t, "opening round to finish", done)

	got := bids(t, h.rec.Events())
	assert.Equal(t, 1, len(got))
	check.False(t, got[0].Bot)
	check.Equal(t, "0.2", got[0].Amount.String())

	st, err := h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.Equal(t, "alice", st.Holder)
	check.Equal(t, "0.2", st.Current.String())
	check.True(t, st.BotsBidding)

	// Ending the auction mid-round throws the round away.
	done = make(chan struct{})
	go func() {
		defer close(done)
		h.clk.Advance(h.cfg.InterRoundDelay)
	}()
	within(t, "bot to answer alice", rc.asleep)
	assert.NoError(t, h.mgr.End(ctx, st.Code, "alice"))
	within(t, "cancelled round to finish", done)

	check.Equal(t, 1, len(bids(t, h.rec.Events())))
	st, err = h.mgr.State(ctx, st.Code)
	assert.NoError(t, err)
	check.Equal(t, auction.PhaseEnded, st.Phase)
	check.Equal(t, "", st.Holder)
	check.True(t, st.Current.IsZero())
	check.False(t, st.BotsBidding)
	check.Equal(t, 0, h.clk.Pending())
}
