package benchmark

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/model"
)

type fakeHistory struct {
	results []model.CalculationResult
}

func (f fakeHistory) ListResults(_ context.Context, _, _ string) ([]model.CalculationResult, error) {
	return f.results, nil
}

func priced(id string, total float64) model.CalculationResult {
	return model.CalculationResult{
		ID:          id,
		BusinessID:  "b-1",
		ProjectType: "esstisch",
		TotalPrice:  decimal.NewFromFloat(total),
	}
}

func TestBenchmark_OddSampleCount(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{
		priced("c-1", 300), priced("c-2", 100), priced("c-3", 200),
	}})

	b, err := agg.Benchmark(context.Background(), "b-1", "esstisch")
	require.NoError(t, err)
	assert.Equal(t, 3, b.SampleCount)
	assert.Equal(t, "200.00", b.AveragePrice.StringFixed(2))
	assert.Equal(t, "200.00", b.MedianPrice.StringFixed(2))
	assert.Equal(t, "100.00", b.MinPrice.StringFixed(2))
	assert.Equal(t, "300.00", b.MaxPrice.StringFixed(2))
}

func TestBenchmark_EvenSampleCount(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{
		priced("c-1", 100), priced("c-2", 400), priced("c-3", 200), priced("c-4", 300),
	}})

	b, err := agg.Benchmark(context.Background(), "b-1", "esstisch")
	require.NoError(t, err)
	assert.Equal(t, "250.00", b.MedianPrice.StringFixed(2), "median of an even count is the mid-pair average")
	assert.Equal(t, "250.00", b.AveragePrice.StringFixed(2))
}

func TestBenchmark_SingleSampleMedianFallsBackToAverage(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{priced("c-1", 123.45)}})

	b, err := agg.Benchmark(context.Background(), "b-1", "esstisch")
	require.NoError(t, err)
	assert.Equal(t, 1, b.SampleCount)
	assert.Equal(t, "123.45", b.AveragePrice.StringFixed(2))
	assert.True(t, b.MedianPrice.Equal(b.AveragePrice))
}

func TestBenchmark_NoHistory(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{})

	b, err := agg.Benchmark(context.Background(), "b-1", "esstisch")
	require.NoError(t, err)
	assert.Equal(t, 0, b.SampleCount)
	assert.True(t, b.AveragePrice.IsZero())
	assert.True(t, b.MinPrice.IsZero())
}
