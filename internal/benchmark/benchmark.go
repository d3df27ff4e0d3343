// Package benchmark computes descriptive statistics over a business's
// historical calculations and explains how a new price deviates from them.
package benchmark

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/model"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// History is the result storage collaborator. The listing is a read-only
// query and must not block concurrent result writes.
type History interface {
	ListResults(ctx context.Context, businessID, projectType string) ([]model.CalculationResult, error)
}

// Aggregator produces Benchmark views on demand.
type Aggregator struct {
	history History
}

// NewAggregator creates an Aggregator over the given history source.
func NewAggregator(history History) *Aggregator {
	return &Aggregator{history: history}
}

// Benchmark computes mean, median, min, and max over all historical results
// for the (business, project_type) pair. With fewer than two samples the
// median falls back to the average; this fallback is deliberate, documented
// behavior, not an error.
func (a *Aggregator) Benchmark(ctx context.Context, businessID, projectType string) (*model.Benchmark, error) {
	results, err := a.history.ListResults(ctx, businessID, projectType)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: list results for %s/%s", businessID, projectType)
	}

	bench := &model.Benchmark{
		BusinessID:  businessID,
		ProjectType: projectType,
		SampleCount: len(results),
	}
	if len(results) == 0 {
		return bench, nil
	}

	prices := make([]decimal.Decimal, len(results))
	sum := decimal.Zero
	for i, r := range results {
		prices[i] = r.TotalPrice
		sum = sum.Add(r.TotalPrice)
	}

	bench.AveragePrice = sum.Div(decimal.NewFromInt(int64(len(prices)))).RoundBank(2)
	bench.MedianPrice = median(prices, bench.AveragePrice)

	minP, maxP := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(minP) {
			minP = p
		}
		if p.GreaterThan(maxP) {
			maxP = p
		}
	}
	bench.MinPrice = minP
	bench.MaxPrice = maxP

	return bench, nil
}

// median returns the statistical median for two or more samples and the
// provided average otherwise.
func median(prices []decimal.Decimal, average decimal.Decimal) decimal.Decimal {
	if len(prices) < 2 {
		return average
	}

	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two).RoundBank(2)
}
