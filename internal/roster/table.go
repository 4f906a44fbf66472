// Package roster tracks the items each participant has won and enforces
// the role quotas every roster must satisfy.
package roster

import (
	"fmt"

	"github.com/jensholdgaard/draft-auction/internal/catalog"
)

// Size is the number of slots in a full roster.
const Size = 11

// Rule is one quota bucket. A roster must hold at least Mandatory and at
// most Max items whose role is in Roles.
type Rule struct {
	Name      string
	Roles     []catalog.Role
	Mandatory int
	Max       int
	Priority  float64
}

// Covers reports whether role counts toward r.
func (r Rule) Covers(role catalog.Role) bool {
	for _, x := range r.Roles {
		if x == role {
			return true
		}
	}
	return false
}

// Table is an immutable, validated set of quota rules.
type Table struct {
	size  int
	rules []Rule
}

// NewTable validates rules for a roster of size slots. Buckets with a
// mandatory count must not share roles, and mandatory counts must fit.
func NewTable(size int, rules ...Rule) (*Table, error) {
	if size <= 0 {
		return nil, fmt.Errorf("roster size must be positive, got %d", size)
	}
	owner := make(map[catalog.Role]string)
	mandatory := 0
	for _, r := range rules {
		if r.Max < r.Mandatory {
			return nil, fmt.Errorf("rule %s: max %d below mandatory %d", r.Name, r.Max, r.Mandatory)
		}
		if r.Mandatory == 0 {
			continue
		}
		mandatory += r.Mandatory
		for _, role := range r.Roles {
			if prev, ok := owner[role]; ok {
				return nil, fmt.Errorf("rules %s and %s both mandate role %s", prev, r.Name, role)
			}
			owner[role] = r.Name
		}
	}
	if mandatory > size {
		return nil, fmt.Errorf("mandatory total %d exceeds roster size %d", mandatory, size)
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Table{size: size, rules: cp}, nil
}

// MustTable is like NewTable but panics on an invalid table.
func MustTable(size int, rules ...Rule) *Table {
	t, err := NewTable(size, rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable pools both bowling styles into one mandatory bucket of four
// while each style keeps its own cap.
var DefaultTable = MustTable(Size,
	Rule{Name: "BAT", Roles: []catalog.Role{catalog.Batter}, Mandatory: 3, Max: 5, Priority: 0.95},
	Rule{Name: "BAT WK", Roles: []catalog.Role{catalog.WicketKeeper}, Mandatory: 1, Max: 3, Priority: 1.0},
	Rule{Name: "ALL", Roles: []catalog.Role{catalog.AllRounder}, Mandatory: 1, Max: 3, Priority: 1.0},
	Rule{Name: "BOWL", Roles: []catalog.Role{catalog.FastBowler, catalog.Spinner}, Mandatory: 4, Max: 6, Priority: 0.9},
	Rule{Name: "FBOWL", Roles: []catalog.Role{catalog.FastBowler}, Max: 4, Priority: 0.9},
	Rule{Name: "SPIN", Roles: []catalog.Role{catalog.Spinner}, Max: 4, Priority: 0.9},
	Rule{Name: "UC-BAT", Roles: []catalog.Role{catalog.UncappedBatter}, Max: 2, Priority: 0.4},
	Rule{Name: "UC-ALL", Roles: []catalog.Role{catalog.UncappedAll}, Max: 2, Priority: 0.5},
	Rule{Name: "UC-BOWL", Roles: []catalog.Role{catalog.UncappedBowler}, Max: 2, Priority: 0.3},
	Rule{Name: "UC-SPIN", Roles: []catalog.Role{catalog.UncappedSpinner}, Max: 2, Priority: 0.3},
)

// Size returns the roster size.
func (t *Table) Size() int { return t.size }

// Rules returns a copy of the rules in table order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Covering returns the rules that count role.
func (t *Table) Covering(role catalog.Role) []Rule {
	var out []Rule
	for _, r := range t.rules {
		if r.Covers(role) {
			out = append(out, r)
		}
	}
	return out
}
