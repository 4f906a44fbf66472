package catalog

import "strings"

// Role is the closed set of positions an item can fill.
type Role string

const (
	Batter          Role = "BAT"
	WicketKeeper    Role = "BAT WK"
	AllRounder      Role = "ALL"
	FastBowler      Role = "FBOWL"
	Spinner         Role = "SPIN"
	UncappedBatter  Role = "UC-BAT"
	UncappedAll     Role = "UC-ALL"
	UncappedBowler  Role = "UC-BOWL"
	UncappedSpinner Role = "UC-SPIN"
)

// Order is the category precedence items are offered in.
var Order = []Role{
	Batter,
	WicketKeeper,
	AllRounder,
	FastBowler,
	Spinner,
	UncappedBatter,
	UncappedAll,
	UncappedBowler,
	UncappedSpinner,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, o := range Order {
		if r == o {
			return true
		}
	}
	return false
}

// Rank returns r's position in Order, or len(Order) for unknown roles.
func (r Role) Rank() int {
	for i, o := range Order {
		if r == o {
			return i
		}
	}
	return len(Order)
}

// ParseRole maps a raw role tag to a Role. Tags that do not name a known
// role fold into the uncapped bucket they most resemble.
func ParseRole(tag string) Role {
	norm := strings.Join(strings.Fields(strings.ToUpper(tag)), " ")
	if r := Role(norm); r.Valid() {
		return r
	}
	switch {
	case strings.Contains(norm, "BAT"):
		return UncappedBatter
	case strings.Contains(norm, "ALL"):
		return UncappedAll
	case strings.Contains(norm, "SPIN"):
		return UncappedSpinner
	default:
		return UncappedBowler
	}
}
