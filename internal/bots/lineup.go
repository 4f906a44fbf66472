package bots

import (
	"fmt"

	"github.com/jensholdgaard/draft-auction/internal/rng"
	"github.com/jensholdgaard/draft-auction/internal/valuation"
)

// Names are handed out to automated participants in shuffled order.
var Names = []string{"Jarvis", "Tars", "G-one", "Thala", "Ultron", "Ghost", "Vader", "Terminator"}

// Seat is a name and archetype for one automated participant.
type Seat struct {
	Name      string
	Archetype valuation.Archetype
}

// Lineup draws n seats. Names past the end of Names get a numeric suffix.
func Lineup(n int, src rng.Source) []Seat {
	names := make([]string, len(Names))
	copy(names, Names)
	rng.Shuffle(src, len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	mix := make([]valuation.Archetype, len(valuation.Mix))
	copy(mix, valuation.Mix)
	rng.Shuffle(src, len(mix), func(i, j int) { mix[i], mix[j] = mix[j], mix[i] })

	seats := make([]Seat, n)
	for i := range seats {
		name := names[i%len(names)]
		if round := i / len(names); round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}
		seats[i] = Seat{Name: name, Archetype: mix[i%len(mix)]}
	}
	return seats
}

// Stage is the coarse progress of an auction from a bidder's view.
type Stage string

const (
	Early Stage = "early"
	Mid   Stage = "mid"
	Late  Stage = "late"
)

// StageOf places sold items against the number expected to fill teams
// rosters of size slots.
func StageOf(sold, teams, size int) Stage {
	expected := float64(teams * size)
	switch {
	case float64(sold) < expected*0.3:
		return Early
	case float64(sold) < expected*0.7:
		return Mid
	default:
		return Late
	}
}
