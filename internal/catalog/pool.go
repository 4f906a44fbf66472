package catalog

import "math"

// PoolQuota is the per-team mandatory demand used to size an auction pool
// for each primary role.
var PoolQuota = map[Role]int{
	Batter:       3,
	WicketKeeper: 1,
	AllRounder:   1,
	FastBowler:   2,
	Spinner:      2,
}

// poolBuffer is how many candidates per mandatory slot a role receives.
func poolBuffer(r Role) float64 {
	if r == WicketKeeper || r == AllRounder {
		return 2.0
	}
	return 1.5
}

// Pool is the ordered subset of the catalog a session auctions.
type Pool struct {
	categories []Role
	byRole     map[Role][]Item
	total      int
}

// Select builds the pool for a session with teams participants. When trim
// is set, each primary role keeps only its first
// ceil(quota * teams * buffer) items by sequence. Uncapped roles are never
// trimmed.
func (c *Catalog) Select(teams int, trim bool) *Pool {
	p := &Pool{byRole: make(map[Role][]Item)}
	for _, r := range Order {
		items := c.ByRole(r)
		if trim {
			if q, ok := PoolQuota[r]; ok && teams > 0 {
				n := int(math.Ceil(float64(q*teams) * poolBuffer(r)))
				if n < len(items) {
					items = items[:n]
				}
			}
		}
		if len(items) == 0 {
			continue
		}
		p.categories = append(p.categories, r)
		p.byRole[r] = items
		p.total += len(items)
	}
	return p
}

// Categories returns the non-empty categories in offer order.
func (p *Pool) Categories() []Role {
	out := make([]Role, len(p.categories))
	copy(out, p.categories)
	return out
}

// Items returns the items of category r in sequence order.
func (p *Pool) Items(r Role) []Item {
	return p.byRole[r]
}

// Len returns the total number of items in the pool.
func (p *Pool) Len() int { return p.total }

// Count returns how many pool items of the given roles satisfy keep.
func (p *Pool) Count(keep func(Item) bool, roles ...Role) int {
	n := 0
	for _, r := range roles {
		for _, it := range p.byRole[r] {
			if keep(it) {
				n++
			}
		}
	}
	return n
}
