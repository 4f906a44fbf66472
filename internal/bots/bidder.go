// Package bots implements automated bidders and the pool that runs one
// bidding round across all of them.
package bots

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/bidding"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/rng"
	"github.com/jensholdgaard/draft-auction/internal/roster"
	"github.com/jensholdgaard/draft-auction/internal/valuation"
)

// State is where a bidder is in its decision cycle.
type State int32

const (
	Idle State = iota
	Evaluating
	Bidding
	Abstaining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Evaluating:
		return "evaluating"
	case Bidding:
		return "bidding"
	case Abstaining:
		return "abstaining"
	default:
		return "unknown"
	}
}

// Round is an immutable snapshot of the live item and every roster, taken
// under the session lock.
type Round struct {
	Item    catalog.Item
	Current decimal.Decimal
	Holder  string
	Rosters map[string]*roster.Roster
	// Available counts unsold pool items per role, the live item included.
	Available map[catalog.Role]int
}

// Raise is a proposed bid from one bidder.
type Raise struct {
	BidderID string
	Amount   decimal.Decimal
	// Ceiling is the bidder's valuation; Amount never exceeds it.
	Ceiling decimal.Decimal
	Reason  string
}

// Decision is one entry of a bidder's history.
type Decision struct {
	ItemID  string
	Role    catalog.Role
	Amount  decimal.Decimal
	Ceiling decimal.Decimal
	Reason  string
	At      time.Time
}

// Env carries the collaborators every bidder shares.
type Env struct {
	Engine         *valuation.Engine
	Ledger         *roster.Ledger
	Clock          clock.Clock
	Rand           rng.Source
	ReactionMin    time.Duration
	ReactionJitter time.Duration
}

// Bidder is one automated participant. Decide may run concurrently with
// other bidders but not with itself.
type Bidder struct {
	ID      string
	Name    string
	Profile valuation.Profile

	env   Env
	state atomic.Int32

	mu      sync.Mutex
	history []Decision
}

// NewBidder returns an idle bidder.
func NewBidder(id, name string, profile valuation.Profile, env Env) *Bidder {
	if env.Rand == nil {
		env.Rand = rng.Fast{}
	}
	if env.Clock == nil {
		env.Clock = clock.Real{}
	}
	return &Bidder{ID: id, Name: name, Profile: profile, env: env}
}

// State returns the current decision state.
func (b *Bidder) State() State { return State(b.state.Load()) }

// History returns the raises this bidder has proposed.
func (b *Bidder) History() []Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Decision, len(b.history))
	copy(out, b.history)
	return out
}

// Decide evaluates the round and returns the raise this bidder wants to
// make. The reaction delay is the only point where Decide blocks; a
// cancelled context turns the decision into an abstention.
func (b *Bidder) Decide(ctx context.Context, round Round) (Raise, bool) {
	b.state.Store(int32(Evaluating))
	raise, ok := b.evaluate(round)
	if !ok {
		b.state.Store(int32(Abstaining))
		defer b.state.Store(int32(Idle))
		return Raise{}, false
	}

	delay := b.env.ReactionMin
	if b.env.ReactionJitter > 0 {
		delay += time.Duration(b.env.Rand.Intn(int(b.env.ReactionJitter)))
	}
	if err := clock.Sleep(ctx, b.env.Clock, delay); err != nil {
		b.state.Store(int32(Abstaining))
		defer b.state.Store(int32(Idle))
		return Raise{}, false
	}

	b.state.Store(int32(Bidding))
	defer b.state.Store(int32(Idle))

	b.mu.Lock()
	b.history = append(b.history, Decision{
		ItemID:  round.Item.ID,
		Role:    round.Item.Role,
		Amount:  raise.Amount,
		Ceiling: raise.Ceiling,
		Reason:  raise.Reason,
		At:      b.env.Clock.Now(),
	})
	b.mu.Unlock()
	return raise, true
}

func (b *Bidder) evaluate(round Round) (Raise, bool) {
	own, ok := round.Rosters[b.ID]
	if !ok || round.Holder == b.ID {
		return Raise{}, false
	}
	next := bidding.Next(round.Current, round.Item.BasePrice)
	if own.Remaining().LessThan(next) || b.env.Ledger.SlotsLeft(own) == 0 {
		return Raise{}, false
	}
	if !b.env.Ledger.CanBid(own, round.Item.Role) {
		return Raise{}, false
	}

	others := make([]*roster.Roster, 0, len(round.Rosters))
	for id, r := range round.Rosters {
		if id != b.ID {
			others = append(others, r)
		}
	}
	a := b.env.Engine.Assess(valuation.Input{
		Item:      round.Item,
		Roster:    own,
		Others:    others,
		Profile:   b.Profile,
		Available: round.Available,
	})
	if !a.Eligible || !b.accept(a, round.Current, round.Item.Rating) {
		return Raise{}, false
	}
	if next.GreaterThan(a.Value) || next.GreaterThan(own.Remaining()) {
		return Raise{}, false
	}
	return Raise{
		BidderID: b.ID,
		Amount:   next,
		Ceiling:  a.Value,
		Reason:   valuation.Reason(a, round.Item.Rating),
	}, true
}

// accept applies the tiered willingness thresholds to the current price.
func (b *Bidder) accept(a valuation.Assessment, current decimal.Decimal, rating float64) bool {
	below := func(fraction string) bool {
		return current.LessThan(a.Value.Mul(decimal.RequireFromString(fraction)))
	}
	switch {
	case a.Critical && a.Urgency > 0.8:
		return below("0.95")
	case a.Required && rating >= 8.0:
		return below("0.85")
	case a.Required && a.Urgency > 0.5:
		return below("0.75")
	}
	if a.Required && below("0.65") {
		return true
	}
	if below("0.6") {
		return true
	}
	return b.env.Rand.Float64() < b.Profile.BidChance*0.3 && below("0.5")
}
