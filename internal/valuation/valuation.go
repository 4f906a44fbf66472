// Package valuation prices an item for an automated bidder from its
// rating, the bidder's roster needs and the competition for the role.
package valuation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/roster"
)

const (
	baseMultiplier     = 1.5
	minimumBaseValue   = 0.3
	requiredRoleFactor = 2.2
	criticalRoleFactor = 3.0
	criticalUrgency    = 0.7
	criticalSlotShare  = 3.5
	normalSlotShare    = 2.5
)

// Input is an immutable view of everything a valuation depends on.
type Input struct {
	Item    catalog.Item
	Roster  *roster.Roster
	Others  []*roster.Roster
	Profile Profile
	// Available counts unsold pool items per role, the current item
	// included.
	Available map[catalog.Role]int
}

// Assessment is a valuation together with the signals behind it.
type Assessment struct {
	Value       decimal.Decimal
	Eligible    bool
	Required    bool
	Mandatory   bool
	Critical    bool
	Urgency     float64
	Priority    float64
	Competitors int
}

// Engine values items against a quota table.
type Engine struct {
	ledger *roster.Ledger
}

// New returns an Engine that consults l for roster needs.
func New(l *roster.Ledger) *Engine {
	return &Engine{ledger: l}
}

// Value returns the most in.Roster's owner should pay for in.Item, or zero
// when the roster may not take it.
func (e *Engine) Value(in Input) decimal.Decimal {
	return e.Assess(in).Value
}

// Assess computes the valuation and its inputs.
func (e *Engine) Assess(in Input) Assessment {
	role := in.Item.Role
	if !e.ledger.CanBid(in.Roster, role) {
		return Assessment{Value: decimal.Zero}
	}

	a := Assessment{Eligible: true, Competitors: e.Competitors(in.Others, role)}
	if req, ok := e.ledger.RequirementFor(in.Roster, role); ok {
		a.Required = true
		a.Mandatory = req.Kind == roster.Mandatory
		a.Priority = req.Priority
		available := 0
		for _, r := range req.Roles {
			available += in.Available[r]
		}
		a.Urgency = Urgency(req.Count, available, a.Competitors)
		a.Critical = a.Mandatory && a.Urgency > criticalUrgency
	}

	base, _ := in.Item.BasePrice.Float64()
	value := math.Max(base*baseMultiplier, minimumBaseValue)
	value *= ratingMultiplier(in.Item.Rating)
	value *= roleMultiplier(a)
	value *= in.Profile.Aggression
	value *= math.Min(1.5, 1+0.1*float64(a.Competitors))

	raw := decimal.NewFromFloat(value)
	caps := []decimal.Decimal{
		in.Roster.Budget.Mul(decimal.NewFromFloat(in.Profile.MaxBidFraction)),
		e.slotShare(in.Roster, a.Critical),
		in.Roster.Remaining(),
	}
	for _, c := range caps {
		if c.LessThan(raw) {
			raw = c
		}
	}
	if raw.IsNegative() {
		raw = decimal.Zero
	}
	a.Value = raw.Round(4)
	return a
}

// Competitors counts the other rosters that could still take role.
func (e *Engine) Competitors(others []*roster.Roster, role catalog.Role) int {
	n := 0
	for _, o := range others {
		if e.ledger.CanBid(o, role) {
			n++
		}
	}
	return n
}

// Urgency scores in [0,1] how pressing a requirement of remaining items is
// given available candidates and competing rosters.
func Urgency(remaining, available, competitors int) float64 {
	if remaining <= 0 {
		return 0
	}
	if available == 0 {
		return 1
	}
	scarcity := math.Min(1, float64(remaining)/float64(available))
	competition := math.Min(1.5, 1+0.5*float64(competitors))
	return math.Min(1, scarcity*competition)
}

func ratingMultiplier(rating float64) float64 {
	rating = math.Max(0, math.Min(10, rating))
	return 0.9 + rating/10*1.5
}

func roleMultiplier(a Assessment) float64 {
	if !a.Required {
		return 1
	}
	factor := requiredRoleFactor
	if a.Critical {
		factor = criticalRoleFactor
	}
	return factor * a.Priority * (0.5 + 0.8*a.Urgency)
}

func (e *Engine) slotShare(r *roster.Roster, critical bool) decimal.Decimal {
	slots := e.ledger.SlotsLeft(r)
	if slots < 1 {
		slots = 1
	}
	share := normalSlotShare
	if critical {
		share = criticalSlotShare
	}
	return r.Remaining().Div(decimal.NewFromInt(int64(slots))).Mul(decimal.NewFromFloat(share))
}

// Reason labels why a bidder chased an item.
func Reason(a Assessment, rating float64) string {
	switch {
	case a.Critical:
		return "CRITICAL NEED"
	case rating >= 8.5:
		return "STAR PLAYER"
	case a.Required:
		return "TEAM NEED"
	case rating >= 7.5:
		return "HIGH VALUE"
	default:
		return "GOOD DEAL"
	}
}
