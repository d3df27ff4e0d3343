package pauschale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/rule"
)

func num(f float64) rule.Literal { return rule.NumberFromFloat(f) }

func baseCtx(base float64) rule.Context {
	return rule.Context{BasePriceField: num(base)}
}

func TestApply_FixedRule(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindVerpackung, Mode: model.ModeFixed,
		Amount: decimal.NewFromFloat(15), Enabled: true,
	}}

	steps, err := Apply(rules, baseCtx(200))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Verpackung", steps[0].Label)
	assert.Equal(t, "15.00", steps[0].Amount.StringFixed(2))
	assert.Equal(t, model.StepSurcharge, steps[0].Category)
}

func TestApply_PerUnitRule(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindAnfahrt, Mode: model.ModePerUnit,
		Amount: decimal.NewFromFloat(1.5), Unit: "distance_km", Enabled: true,
	}}

	ctx := baseCtx(200)
	ctx["distance_km"] = num(42)

	steps, err := Apply(rules, ctx)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "63.00", steps[0].Amount.StringFixed(2))
}

func TestApply_PerUnitMissingField(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindAnfahrt, Mode: model.ModePerUnit,
		Amount: decimal.NewFromFloat(1.5), Unit: "distance_km", Enabled: true,
	}}

	_, err := Apply(rules, baseCtx(200))
	var missing *rule.MissingContextFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "distance_km", missing.Field)
}

func TestApply_PercentRule(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindPlanung, Mode: model.ModePercent,
		Amount: decimal.NewFromFloat(12.5), Enabled: true,
	}}

	steps, err := Apply(rules, baseCtx(200))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "25.00", steps[0].Amount.StringFixed(2))
}

func TestApply_ConditionalBooleanTree(t *testing.T) {
	t.Parallel()

	// Anfahrt 100 EUR when distance exceeds 50 km.
	cond := rule.Comparison{
		Op:    rule.CompareGT,
		Left:  rule.Field{Key: "distance_km"},
		Right: rule.Value{Literal: num(50)},
	}
	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindAnfahrt, Mode: model.ModeConditional,
		Amount: decimal.NewFromFloat(100), Condition: cond, Enabled: true,
	}}

	ctx := baseCtx(500)
	ctx["distance_km"] = num(60)
	steps, err := Apply(rules, ctx)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Anfahrt", steps[0].Label)
	assert.Equal(t, "100.00", steps[0].Amount.StringFixed(2))

	ctx["distance_km"] = num(40)
	steps, err = Apply(rules, ctx)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestApply_ConditionalNumericTree(t *testing.T) {
	t.Parallel()

	// Kleinauftragszuschlag 25 EUR below a 150 EUR base price, zero otherwise.
	tree := rule.IfThenElse{
		Cond: rule.Comparison{
			Op:    rule.CompareLT,
			Left:  rule.Field{Key: BasePriceField},
			Right: rule.Value{Literal: num(150)},
		},
		Then: rule.Value{Literal: num(25)},
	}
	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindKleinauftrag, Mode: model.ModeConditional,
		Condition: tree, Enabled: true,
	}}

	steps, err := Apply(rules, baseCtx(120))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Kleinauftragszuschlag", steps[0].Label)
	assert.Equal(t, "25.00", steps[0].Amount.StringFixed(2))

	// Above the threshold the tree yields zero and no step is emitted.
	steps, err = Apply(rules, baseCtx(300))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestApply_SkipsDisabledRules(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{{
		ID: "r-1", Kind: model.KindMontage, Mode: model.ModeFixed,
		Amount: decimal.NewFromFloat(80), Enabled: false,
	}}

	steps, err := Apply(rules, baseCtx(200))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestApply_StableOrdering(t *testing.T) {
	t.Parallel()

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	rules := []model.PauschaleRule{
		{ID: "r-c", Kind: model.KindVerpackung, Mode: model.ModeFixed, Amount: decimal.NewFromInt(5), Enabled: true, CreatedAt: late},
		{ID: "r-b", Kind: model.KindEntsorgung, Mode: model.ModeFixed, Amount: decimal.NewFromInt(30), Enabled: true, CreatedAt: early},
		{ID: "r-a", Kind: model.KindMontage, Mode: model.ModeFixed, Amount: decimal.NewFromInt(80), Enabled: true, CreatedAt: early},
	}

	steps, err := Apply(rules, baseCtx(200))
	require.NoError(t, err)
	require.Len(t, steps, 3)
	// Creation time first, id as tie-break: r-a, r-b, r-c.
	assert.Equal(t, "Montage", steps[0].Label)
	assert.Equal(t, "Entsorgung", steps[1].Label)
	assert.Equal(t, "Verpackung", steps[2].Label)
}

func TestApply_TierAttribution(t *testing.T) {
	t.Parallel()

	rules := []model.PauschaleRule{
		{ID: "r-1", Kind: model.KindAnfahrt, Mode: model.ModeFixed, Amount: decimal.NewFromInt(50), Enabled: true, GlobalDefault: true},
		{ID: "r-2", Kind: model.KindMontage, Mode: model.ModeFixed, Amount: decimal.NewFromInt(80), Enabled: true},
	}

	steps, err := Apply(rules, baseCtx(200))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, model.Tier1, steps[0].TierSource)
	assert.Equal(t, model.Tier2, steps[1].TierSource)
}

func TestLabel_CoversAllKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range model.AllRuleKinds() {
		assert.NotEmpty(t, Label(kind))
	}
	assert.Equal(t, "sondersatz", Label(model.RuleKind("sondersatz")))
}
