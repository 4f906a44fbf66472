package valuation

import "fmt"

// Archetype names a bidding personality.
type Archetype string

const (
	Aggressive Archetype = "aggressive"
	Strategic  Archetype = "strategic"
	Balanced   Archetype = "balanced"
)

// Profile fixes how an automated bidder values and chases items.
type Profile struct {
	Archetype Archetype
	// Aggression multiplies every valuation.
	Aggression float64
	// MaxBidFraction caps any single valuation as a share of the budget.
	MaxBidFraction float64
	// BidChance drives the occasional low-value bid kept for activity.
	BidChance float64
}

var profiles = map[Archetype]Profile{
	Aggressive: {Archetype: Aggressive, Aggression: 2.2, MaxBidFraction: 0.25, BidChance: 0.8},
	Strategic:  {Archetype: Strategic, Aggression: 1.7, MaxBidFraction: 0.20, BidChance: 0.6},
	Balanced:   {Archetype: Balanced, Aggression: 1.4, MaxBidFraction: 0.18, BidChance: 0.5},
}

// ProfileFor returns the profile of archetype a.
func ProfileFor(a Archetype) (Profile, error) {
	p, ok := profiles[a]
	if !ok {
		return Profile{}, fmt.Errorf("unknown archetype %q", a)
	}
	return p, nil
}

// Mix is the archetype distribution bots are drawn from.
var Mix = []Archetype{Aggressive, Aggressive, Strategic, Aggressive, Strategic, Balanced}
