package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/bidding"
	"github.com/jensholdgaard/draft-auction/internal/bots"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/roster"
	"github.com/jensholdgaard/draft-auction/internal/valuation"
)

func profileFor(seat bots.Seat) (valuation.Profile, error) {
	p, err := valuation.ProfileFor(seat.Archetype)
	if err != nil {
		return valuation.Profile{}, fmt.Errorf("seating %s: %w", seat.Name, err)
	}
	return p, nil
}

// triggerCascade starts automated bidding on the live item unless a
// cascade is already running. The running cascade notices price changes
// on its own. Callers hold mu.
func (s *Session) triggerCascade(delay time.Duration) {
	if s.bots.Len() == 0 || s.biddingInProgress || s.item == nil {
		return
	}
	s.biddingInProgress = true
	s.cascadeSeq++
	ctx, cancel := context.WithCancel(s.bg)
	s.cancelRound = cancel
	s.scheduleRound(ctx, s.cascadeSeq, delay)
}

func (s *Session) scheduleRound(ctx context.Context, seq uint64, delay time.Duration) {
	s.roundTimer = s.env.clock.AfterFunc(delay, func() { s.runRound(ctx, seq) })
}

// cancelCascade stops the running cascade; any round in flight discards
// its result. Callers hold mu.
func (s *Session) cancelCascade() {
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}
	if s.cancelRound != nil {
		s.cancelRound()
		s.cancelRound = nil
	}
	s.biddingInProgress = false
	s.cascadeSeq++
}

// converge ends the cascade after a round without raises. Callers hold mu.
func (s *Session) converge() {
	if s.cancelRound != nil {
		s.cancelRound()
		s.cancelRound = nil
	}
	s.biddingInProgress = false
}

// runRound is one step of the cascade loop: snapshot, let every bot decide
// without the lock, then apply at most one raise if the snapshot still
// describes the live item. A moved price schedules another round; a round
// with no raise on an unmoved price ends the loop.
func (s *Session) runRound(ctx context.Context, seq uint64) {
	s.mu.Lock()
	if seq != s.cascadeSeq || s.phase != PhaseActive || s.item == nil {
		s.mu.Unlock()
		return
	}
	s.roundTimer = nil
	round := s.snapshot()
	s.mu.Unlock()

	roundCtx, span := s.env.tracer.Start(ctx, "Session.RunRound",
		trace.WithAttributes(
			attribute.String("session.code", s.Code),
			attribute.String("item.id", round.Item.ID),
			attribute.String("bid.current", round.Current.String()),
		),
	)
	s.env.metrics.botRounds.Add(roundCtx, 1)
	raise, ok := s.bots.RunRound(roundCtx, round)
	span.SetAttributes(attribute.Bool("round.raised", ok))
	span.End()

	s.mu.Lock()
	if seq != s.cascadeSeq || s.phase != PhaseActive || s.item == nil || s.item.ID != round.Item.ID {
		s.mu.Unlock()
		s.env.logger.DebugContext(ctx, "discarding stale bot round",
			slog.String("session", s.Code), slog.String("item", round.Item.ID))
		return
	}
	if !s.current.Equal(round.Current) || s.holder != round.Holder {
		s.scheduleRound(ctx, seq, s.settings.InterRoundDelay)
		s.mu.Unlock()
		return
	}
	if !ok {
		s.converge()
		s.mu.Unlock()
		return
	}
	if err := s.applyRaise(raise); err != nil {
		s.env.logger.WarnContext(ctx, "bot raise refused",
			slog.String("session", s.Code),
			slog.String("bidder", raise.BidderID),
			slog.Any("error", err))
		s.converge()
		s.mu.Unlock()
		return
	}
	s.scheduleRound(ctx, seq, s.settings.InterRoundDelay)
	s.mu.Unlock()
	s.flush(s.bg)
}

// applyRaise re-checks a bot raise against live state before applying it.
// Callers hold mu.
func (s *Session) applyRaise(r bots.Raise) error {
	p := s.byID[r.BidderID]
	if p == nil || !p.Bot {
		return ErrUnknownBidder
	}
	if s.holder == p.ID {
		return ErrAlreadyHighest
	}
	if !r.Amount.IsPositive() || !r.Amount.GreaterThan(s.current) {
		return ErrBidTooLow
	}
	if !r.Amount.Equal(bidding.Next(s.current, s.item.BasePrice)) {
		return ErrOffLadder
	}
	if r.Amount.GreaterThan(r.Ceiling) {
		return fmt.Errorf("raise %s above ceiling %s", r.Amount, r.Ceiling)
	}
	if err := s.env.ledger.Check(p.roster, s.item.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrRoleForbidden, err)
	}
	if r.Amount.GreaterThan(p.roster.Remaining()) {
		return ErrInsufficientBudget
	}
	s.apply(p, r.Amount, r.Reason)
	return nil
}

// snapshot copies everything a bot round reads. Callers hold mu.
func (s *Session) snapshot() bots.Round {
	rosters := make(map[string]*roster.Roster, len(s.participants))
	for _, p := range s.participants {
		rosters[p.ID] = p.roster.Clone()
	}
	available := make(map[catalog.Role]int)
	for _, role := range s.pool.Categories() {
		available[role] = s.pool.Count(func(it catalog.Item) bool { return !s.awarded[it.ID] }, role)
	}
	return bots.Round{
		Item:      *s.item,
		Current:   s.current,
		Holder:    s.holder,
		Rosters:   rosters,
		Available: available,
	}
}
