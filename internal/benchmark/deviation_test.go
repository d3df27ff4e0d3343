package benchmark

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/model"
)

func withBreakdown(r model.CalculationResult, steps ...model.BreakdownStep) model.CalculationResult {
	r.Breakdown = steps
	return r
}

func step(label string, amount float64) model.BreakdownStep {
	return model.BreakdownStep{
		Label:      label,
		Amount:     decimal.NewFromFloat(amount),
		Category:   model.StepMaterial,
		TierSource: model.Tier1,
	}
}

func TestExplainDeviation_AboveAverage(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{
		priced("c-1", 100), priced("c-2", 100),
	}})

	current := priced("c-new", 125)
	dev, err := agg.ExplainDeviation(context.Background(), &current)
	require.NoError(t, err)
	assert.Equal(t, "25.00", dev.Percent.StringFixed(2))
	assert.Contains(t, dev.Commentary, "über dem historischen Durchschnitt")
	assert.Contains(t, dev.Commentary, "100,00 €")
}

func TestExplainDeviation_BelowAverage(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{
		priced("c-1", 200),
	}})

	current := priced("c-new", 150)
	dev, err := agg.ExplainDeviation(context.Background(), &current)
	require.NoError(t, err)
	assert.Equal(t, "-25.00", dev.Percent.StringFixed(2))
	assert.Contains(t, dev.Commentary, "unter dem historischen Durchschnitt")
}

func TestExplainDeviation_ExcludesOwnID(t *testing.T) {
	t.Parallel()

	// The persisted copy of the result under inspection must not drag the
	// average toward itself.
	current := priced("c-new", 200)
	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{
		priced("c-1", 100), current,
	}})

	dev, err := agg.ExplainDeviation(context.Background(), &current)
	require.NoError(t, err)
	assert.Equal(t, "100.00", dev.Percent.StringFixed(2))
}

func TestExplainDeviation_NoHistory(t *testing.T) {
	t.Parallel()

	current := priced("c-new", 200)
	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{current}})

	dev, err := agg.ExplainDeviation(context.Background(), &current)
	require.NoError(t, err)
	assert.True(t, dev.Percent.IsZero())
	assert.Contains(t, dev.Commentary, "Keine historischen Kalkulationen")
	assert.Empty(t, dev.TopContributors)
}

func TestExplainDeviation_TopContributors(t *testing.T) {
	t.Parallel()

	hist := withBreakdown(priced("c-1", 130),
		step("Material eiche", 100),
		step("Anfahrt", 30),
	)
	agg := NewAggregator(fakeHistory{results: []model.CalculationResult{hist}})

	current := withBreakdown(priced("c-new", 250),
		step("Material eiche", 150),
		step("Montage", 100),
	)

	dev, err := agg.ExplainDeviation(context.Background(), &current)
	require.NoError(t, err)
	require.Len(t, dev.TopContributors, 3)

	// Largest absolute delta first: Montage +100, Material +50, Anfahrt -30.
	assert.Equal(t, "Montage", dev.TopContributors[0].Label)
	assert.Equal(t, "100.00", dev.TopContributors[0].Delta.StringFixed(2))

	assert.Equal(t, "Material eiche", dev.TopContributors[1].Label)
	assert.Equal(t, "50.00", dev.TopContributors[1].Delta.StringFixed(2))

	// A vanished historical label still counts as deviation.
	assert.Equal(t, "Anfahrt", dev.TopContributors[2].Label)
	assert.Equal(t, "-30.00", dev.TopContributors[2].Delta.StringFixed(2))
	assert.True(t, dev.TopContributors[2].Amount.IsZero())
}

func TestExplainDeviation_NilResult(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(fakeHistory{})
	_, err := agg.ExplainDeviation(context.Background(), nil)
	assert.Error(t, err)
}
