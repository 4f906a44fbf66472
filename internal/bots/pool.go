package bots

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/draft-auction/internal/bidding"
	"github.com/jensholdgaard/draft-auction/internal/roster"
)

// Pool runs bidding rounds across a fixed set of bidders.
type Pool struct {
	bidders []*Bidder
	ledger  *roster.Ledger
}

// NewPool returns a pool over bidders. Pool order breaks ties.
func NewPool(ledger *roster.Ledger, bidders ...*Bidder) *Pool {
	return &Pool{bidders: bidders, ledger: ledger}
}

// Bidders returns the pool members in pool order.
func (p *Pool) Bidders() []*Bidder {
	out := make([]*Bidder, len(p.bidders))
	copy(out, p.bidders)
	return out
}

// Len returns the number of bidders.
func (p *Pool) Len() int { return len(p.bidders) }

// Eligible returns the bidders that may take part in round: not the
// current holder, holding more than the next acceptable bid and with an
// incomplete roster. Before the opening bid that is the base price.
func (p *Pool) Eligible(round Round) []*Bidder {
	floor := bidding.Next(round.Current, round.Item.BasePrice)
	var out []*Bidder
	for _, b := range p.bidders {
		if b.ID == round.Holder {
			continue
		}
		own, ok := round.Rosters[b.ID]
		if !ok || !own.Remaining().GreaterThan(floor) || p.ledger.IsComplete(own) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// RunRound asks every eligible bidder for a decision concurrently and
// returns the single highest raise. Ties go to the earlier bidder in pool
// order. It reports false when nobody raises.
func (p *Pool) RunRound(ctx context.Context, round Round) (Raise, bool) {
	eligible := p.Eligible(round)
	if len(eligible) == 0 {
		return Raise{}, false
	}

	type result struct {
		raise Raise
		ok    bool
	}
	results := make([]result, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range eligible {
		g.Go(func() error {
			r, ok := b.Decide(gctx, round)
			results[i] = result{raise: r, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return Raise{}, false
	}

	var best Raise
	found := false
	for _, r := range results {
		if !r.ok {
			continue
		}
		if !found || r.raise.Amount.GreaterThan(best.Amount) {
			best, found = r.raise, true
		}
	}
	return best, found
}
