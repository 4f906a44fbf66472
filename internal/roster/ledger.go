package roster

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/catalog"
)

// Reasons a roster may not take another item.
var (
	ErrRosterFull    = errors.New("roster is full")
	ErrRoleCapped    = errors.New("role limit reached")
	ErrSlotsReserved = errors.New("remaining slots are reserved for mandatory roles")
	ErrOverBudget    = errors.New("price exceeds remaining budget")
)

// ExtraPriorityFactor discounts the priority of slots beyond the mandatory
// minimum.
const ExtraPriorityFactor = 0.7

// Kind classifies a remaining requirement.
type Kind int

const (
	Mandatory Kind = iota
	Extra
)

func (k Kind) String() string {
	if k == Mandatory {
		return "mandatory"
	}
	return "extra"
}

// Requirement is an outstanding need of one bucket.
type Requirement struct {
	Rule     string
	Roles    []catalog.Role
	Count    int
	Kind     Kind
	Priority float64
}

// Ledger applies a quota table to rosters. It holds no roster state and
// is safe for concurrent use.
type Ledger struct {
	table *Table
}

// NewLedger returns a Ledger enforcing t.
func NewLedger(t *Table) *Ledger {
	return &Ledger{table: t}
}

// Table returns the quota table.
func (l *Ledger) Table() *Table { return l.table }

// Reserved returns the number of slots still owed to mandatory buckets.
func (l *Ledger) Reserved(r *Roster) int {
	n := 0
	for _, rule := range l.table.rules {
		if d := rule.Mandatory - r.bucketCount(rule); d > 0 {
			n += d
		}
	}
	return n
}

// SlotsLeft returns the number of empty slots.
func (l *Ledger) SlotsLeft(r *Roster) int {
	if n := l.table.size - r.Len(); n > 0 {
		return n
	}
	return 0
}

// Remaining lists every outstanding requirement of r: mandatory deficits
// first, then extra capacity in buckets that have met their minimum.
// Extra counts never exceed the slots left after mandatory reservations.
func (l *Ledger) Remaining(r *Roster) []Requirement {
	var out []Requirement
	for _, rule := range l.table.rules {
		if d := rule.Mandatory - r.bucketCount(rule); d > 0 {
			out = append(out, Requirement{
				Rule:     rule.Name,
				Roles:    rule.Roles,
				Count:    d,
				Kind:     Mandatory,
				Priority: rule.Priority,
			})
		}
	}
	free := l.SlotsLeft(r) - l.Reserved(r)
	if free <= 0 {
		return out
	}
	for _, rule := range l.table.rules {
		have := r.bucketCount(rule)
		if have < rule.Mandatory || have >= rule.Max {
			continue
		}
		out = append(out, Requirement{
			Rule:     rule.Name,
			Roles:    rule.Roles,
			Count:    min(rule.Max-have, free),
			Kind:     Extra,
			Priority: rule.Priority * ExtraPriorityFactor,
		})
	}
	return out
}

// RequirementFor returns the strongest outstanding requirement that role
// would fill: a mandatory one if any, else the highest-priority extra.
func (l *Ledger) RequirementFor(r *Roster, role catalog.Role) (Requirement, bool) {
	var best Requirement
	found := false
	for _, req := range l.Remaining(r) {
		covers := false
		for _, x := range req.Roles {
			if x == role {
				covers = true
				break
			}
		}
		if !covers {
			continue
		}
		switch {
		case !found:
			best, found = req, true
		case req.Kind == Mandatory && best.Kind != Mandatory:
			best = req
		case req.Kind == best.Kind && req.Priority > best.Priority:
			best = req
		}
	}
	return best, found
}

// Check returns nil if r may take one more item of role, or the reason it
// may not. Mandatory deficits of other buckets always keep their slots.
func (l *Ledger) Check(r *Roster, role catalog.Role) error {
	if r.Len() >= l.table.size {
		return ErrRosterFull
	}
	covering := l.table.Covering(role)
	for _, rule := range covering {
		if r.bucketCount(rule) >= rule.Max {
			return fmt.Errorf("%w: %s at %d", ErrRoleCapped, rule.Name, rule.Max)
		}
	}
	for _, rule := range covering {
		if r.bucketCount(rule) < rule.Mandatory {
			return nil
		}
	}
	owed := 0
	for _, rule := range l.table.rules {
		if rule.Covers(role) {
			continue
		}
		if d := rule.Mandatory - r.bucketCount(rule); d > 0 {
			owed += d
		}
	}
	if l.table.size-r.Len()-owed <= 0 {
		return ErrSlotsReserved
	}
	return nil
}

// CanBid reports whether r may take one more item of role.
func (l *Ledger) CanBid(r *Roster, role catalog.Role) bool {
	return l.Check(r, role) == nil
}

// IsComplete reports whether every slot is filled and every mandatory
// bucket is satisfied.
func (l *Ledger) IsComplete(r *Roster) bool {
	return r.Len() == l.table.size && l.Reserved(r) == 0
}

// Award adds item to r at price. It is the only way a roster grows and
// re-checks composition and budget.
func (l *Ledger) Award(r *Roster, item catalog.Item, price decimal.Decimal) error {
	if err := l.Check(r, item.Role); err != nil {
		return err
	}
	if price.GreaterThan(r.Remaining()) {
		return ErrOverBudget
	}
	r.add(item, price)
	return nil
}

// Status summarizes a roster for display.
type Status struct {
	Owner     string
	Players   int
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	Rating    float64
	Complete  bool
	Mandatory bool
	Buckets   []BucketStatus
}

// BucketStatus is the fill level of one rule.
type BucketStatus struct {
	Rule      string
	Count     int
	Mandatory int
	Max       int
}

// Status reports r's composition against the table.
func (l *Ledger) Status(r *Roster) Status {
	s := Status{
		Owner:     r.Owner,
		Players:   r.Len(),
		Spent:     r.Spent(),
		Remaining: r.Remaining(),
		Rating:    r.TotalRating(),
		Complete:  l.IsComplete(r),
		Mandatory: l.Reserved(r) == 0,
	}
	for _, rule := range l.table.rules {
		s.Buckets = append(s.Buckets, BucketStatus{
			Rule:      rule.Name,
			Count:     r.bucketCount(rule),
			Mandatory: rule.Mandatory,
			Max:       rule.Max,
		})
	}
	return s
}
