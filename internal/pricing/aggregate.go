package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/model"
)

// Aggregated is the multi-material partial result: base price plus the
// concatenated component steps in attribution order.
type Aggregated struct {
	BasePrice decimal.Decimal
	Steps     []model.BreakdownStep
}

// Aggregate sums component amounts into the base price and concatenates their
// steps in component order, then component-internal factor order. Order is
// audit-significant and never re-sorted.
func Aggregate(components []PricedComponent) Aggregated {
	base := decimal.Zero
	var steps []model.BreakdownStep
	for _, c := range components {
		base = base.Add(c.Amount)
		steps = append(steps, c.Steps...)
	}
	return Aggregated{BasePrice: base, Steps: steps}
}
