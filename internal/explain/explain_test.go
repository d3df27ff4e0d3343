package explain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/model"
)

func sampleResult() *model.CalculationResult {
	return &model.CalculationResult{
		ID:          "calc-1",
		BusinessID:  "b-1",
		ProjectType: "esstisch",
		BasePrice:   decimal.NewFromFloat(22.40),
		TotalPrice:  decimal.NewFromFloat(122.40),
		Breakdown: []model.BreakdownStep{
			{Label: "Tischplatte: Material eiche", Amount: decimal.NewFromFloat(10.40), Category: model.StepMaterial, TierSource: model.Tier2},
			{Label: "Gestell: Material buche", Amount: decimal.NewFromFloat(12.00), Category: model.StepMaterial, TierSource: model.Tier1},
			{Label: "Anfahrt", Amount: decimal.NewFromFloat(100), Category: model.StepSurcharge, TierSource: model.Tier1},
		},
	}
}

func TestBuild_FactorsAndImpact(t *testing.T) {
	t.Parallel()

	explanation, err := Build(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, "calc-1", explanation.CalculationResultID)
	require.Len(t, explanation.Factors, 3)

	// Attribution order preserved.
	assert.Equal(t, "Tischplatte: Material eiche", explanation.Factors[0].FactorName)
	assert.Equal(t, "Gestell: Material buche", explanation.Factors[1].FactorName)
	assert.Equal(t, "Anfahrt", explanation.Factors[2].FactorName)

	// 10.40/122.40, 12.00/122.40, 100/122.40.
	assert.Equal(t, "8.50", explanation.Factors[0].ImpactPercent.StringFixed(2))
	assert.Equal(t, "9.80", explanation.Factors[1].ImpactPercent.StringFixed(2))
	assert.Equal(t, "81.70", explanation.Factors[2].ImpactPercent.StringFixed(2))

	// Impacts close to 100 within rounding tolerance.
	sum := decimal.Zero
	for _, f := range explanation.Factors {
		sum = sum.Add(f.ImpactPercent)
	}
	tolerance := decimal.NewFromFloat(0.5)
	assert.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(tolerance),
		"impact sum %s must be within 0.5 of 100", sum)
}

func TestBuild_GroupsRepeatedLabels(t *testing.T) {
	t.Parallel()

	result := sampleResult()
	result.Breakdown = append(result.Breakdown, model.BreakdownStep{
		Label: "Anfahrt", Amount: decimal.NewFromFloat(20), Category: model.StepSurcharge, TierSource: model.Tier1,
	})
	result.TotalPrice = result.TotalPrice.Add(decimal.NewFromFloat(20))

	explanation, err := Build(result)
	require.NoError(t, err)
	require.Len(t, explanation.Factors, 3)
	assert.Equal(t, "120.00", explanation.Factors[2].Amount.StringFixed(2))
}

func TestBuild_TierBreakdownExact(t *testing.T) {
	t.Parallel()

	explanation, err := Build(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, "10.40", explanation.TierBreakdown.Tier2EUR.StringFixed(2))
	assert.Equal(t, "112.00", explanation.TierBreakdown.Tier1EUR.StringFixed(2))
	assert.True(t, explanation.TierBreakdown.Tier3EUR.IsZero())

	tierSum := explanation.TierBreakdown.Tier1EUR.
		Add(explanation.TierBreakdown.Tier2EUR).
		Add(explanation.TierBreakdown.Tier3EUR).
		Add(explanation.TierBreakdown.UserHistoryEUR)
	assert.True(t, tierSum.Equal(sampleResult().TotalPrice))
}

func TestBuild_ZeroTotal(t *testing.T) {
	t.Parallel()

	result := &model.CalculationResult{
		ID: "calc-0",
		Breakdown: []model.BreakdownStep{
			{Label: "Material eiche", Amount: decimal.Zero, Category: model.StepMaterial, TierSource: model.Tier1},
		},
	}
	explanation, err := Build(result)
	require.NoError(t, err)
	require.Len(t, explanation.Factors, 1)
	assert.True(t, explanation.Factors[0].ImpactPercent.IsZero())
}

func TestBuild_NilResult(t *testing.T) {
	t.Parallel()

	_, err := Build(nil)
	assert.Error(t, err)
}

func TestBuild_GermanSummary(t *testing.T) {
	t.Parallel()

	explanation, err := Build(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, explanation.Summary, "122,40 €")
	assert.Contains(t, explanation.Summary, "hoch")
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		warnings int
		level    model.ConfidenceLevel
		score    float64
	}{
		{0, model.ConfidenceHigh, 0.95},
		{1, model.ConfidenceMedium, 0.80},
		{2, model.ConfidenceMedium, 0.65},
		{3, model.ConfidenceLow, 0.50},
		{10, model.ConfidenceLow, 0.05},
	}
	for _, tt := range tests {
		level, score := Confidence(tt.warnings)
		assert.Equal(t, tt.level, level, "warnings=%d", tt.warnings)
		assert.InDelta(t, tt.score, score, 1e-9, "warnings=%d", tt.warnings)
	}
}
