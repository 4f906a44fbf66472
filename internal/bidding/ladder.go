// Package bidding defines the increment ladder shared by human and
// automated bidders.
package bidding

import "github.com/shopspring/decimal"

type step struct {
	below decimal.Decimal
	inc   decimal.Decimal
}

var (
	steps = []step{
		{below: decimal.NewFromInt(1), inc: decimal.RequireFromString("0.05")},
		{below: decimal.NewFromInt(2), inc: decimal.RequireFromString("0.1")},
		{below: decimal.NewFromInt(5), inc: decimal.RequireFromString("0.2")},
		{below: decimal.NewFromInt(10), inc: decimal.RequireFromString("0.5")},
	}
	topIncrement = decimal.NewFromInt(1)
)

// Increment returns the raise applied on top of current.
func Increment(current decimal.Decimal) decimal.Decimal {
	for _, s := range steps {
		if current.LessThan(s.below) {
			return s.inc
		}
	}
	return topIncrement
}

// Next returns the only acceptable next bid: the base price when nothing
// has been bid yet, otherwise current plus its increment, rounded to
// two decimals.
func Next(current, base decimal.Decimal) decimal.Decimal {
	if !current.IsPositive() {
		return base.Round(2)
	}
	return current.Add(Increment(current)).Round(2)
}
