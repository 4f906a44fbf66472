package roster

import (
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/catalog"
)

// Entry is one won item and the price paid for it.
type Entry struct {
	Item  catalog.Item
	Price decimal.Decimal
}

// Roster is the ordered set of items one participant has won. It is not
// safe for concurrent use; the owning session serializes access.
type Roster struct {
	Owner  string
	Budget decimal.Decimal

	entries []Entry
	counts  map[catalog.Role]int
	spent   decimal.Decimal
	rating  float64
}

// New returns an empty roster for owner with the given budget.
func New(owner string, budget decimal.Decimal) *Roster {
	return &Roster{
		Owner:  owner,
		Budget: budget,
		counts: make(map[catalog.Role]int),
	}
}

// Len returns the number of filled slots.
func (r *Roster) Len() int { return len(r.entries) }

// Count returns how many items of role the roster holds.
func (r *Roster) Count(role catalog.Role) int { return r.counts[role] }

// Spent returns the total paid so far.
func (r *Roster) Spent() decimal.Decimal { return r.spent }

// Remaining returns the unspent budget.
func (r *Roster) Remaining() decimal.Decimal { return r.Budget.Sub(r.spent) }

// TotalRating returns the summed rating of all won items.
func (r *Roster) TotalRating() float64 { return r.rating }

// Entries returns a copy of the won items in award order.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clone returns an independent copy of r.
func (r *Roster) Clone() *Roster {
	c := &Roster{
		Owner:   r.Owner,
		Budget:  r.Budget,
		entries: make([]Entry, len(r.entries)),
		counts:  make(map[catalog.Role]int, len(r.counts)),
		spent:   r.spent,
		rating:  r.rating,
	}
	copy(c.entries, r.entries)
	for k, v := range r.counts {
		c.counts[k] = v
	}
	return c
}

func (r *Roster) bucketCount(rule Rule) int {
	n := 0
	for _, role := range rule.Roles {
		n += r.counts[role]
	}
	return n
}

func (r *Roster) add(item catalog.Item, price decimal.Decimal) {
	r.entries = append(r.entries, Entry{Item: item, Price: price})
	r.counts[item.Role]++
	r.spent = r.spent.Add(price)
	r.rating += item.Rating
}
