// Package pauschale applies a business's configured surcharge rules (fixed,
// per-unit, percentage, conditional) on top of the material-based base price.
package pauschale

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/rule"
)

// BasePriceField is the context key carrying the aggregated base price for
// percent rules and condition trees.
const BasePriceField = "base_price"

var hundred = decimal.NewFromInt(100)

// Apply evaluates every enabled rule in a stable order (creation time, ties
// broken by id) and returns the surcharge steps it emits. Disabled rules are
// skipped; a conditional rule whose tree yields zero emits no step.
func Apply(rules []model.PauschaleRule, ctx rule.Context) ([]model.BreakdownStep, error) {
	ordered := make([]model.PauschaleRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var steps []model.BreakdownStep
	for _, r := range ordered {
		if !r.Enabled {
			continue
		}
		amount, emit, err := ruleAmount(r, ctx)
		if err != nil {
			return nil, err
		}
		if !emit {
			continue
		}
		steps = append(steps, model.BreakdownStep{
			Label:      Label(r.Kind),
			Amount:     amount,
			Category:   model.StepSurcharge,
			TierSource: r.TierSource(),
		})
	}
	return steps, nil
}

// ruleAmount computes one rule's surcharge. The second return value reports
// whether a step should be emitted at all.
func ruleAmount(r model.PauschaleRule, ctx rule.Context) (decimal.Decimal, bool, error) {
	switch r.Mode {
	case model.ModeFixed:
		return r.Amount.RoundBank(2), true, nil

	case model.ModePerUnit:
		qty, ok := ctx[r.Unit]
		if !ok {
			return decimal.Zero, false, &rule.MissingContextFieldError{Field: r.Unit}
		}
		if qty.Kind != rule.KindNumber {
			return decimal.Zero, false, eris.Errorf("pauschale: unit field %q is not numeric", r.Unit)
		}
		return r.Amount.Mul(qty.Num).RoundBank(2), true, nil

	case model.ModePercent:
		base, ok := ctx[BasePriceField]
		if !ok {
			return decimal.Zero, false, &rule.MissingContextFieldError{Field: BasePriceField}
		}
		if base.Kind != rule.KindNumber {
			return decimal.Zero, false, eris.New("pauschale: base_price field is not numeric")
		}
		return r.Amount.Div(hundred).Mul(base.Num).RoundBank(2), true, nil

	case model.ModeConditional:
		// Trees are pre-validated at rule-save time; a nil tree here is a
		// storage-layer bug.
		if r.Condition == nil {
			return decimal.Zero, false, eris.Errorf("pauschale: conditional rule %s has no condition tree", r.ID)
		}
		result, err := rule.Evaluate(r.Condition, ctx)
		if err != nil {
			return decimal.Zero, false, eris.Wrapf(err, "pauschale: rule %s", r.ID)
		}
		switch result.Kind {
		case rule.KindNumber:
			// The tree yields the surcharge amount itself; zero means the
			// selected branch declined to emit.
			if result.Num.IsZero() {
				return decimal.Zero, false, nil
			}
			return result.Num.RoundBank(2), true, nil
		case rule.KindBool:
			// The tree is a pure condition; true emits the rule's amount.
			if !result.Bool {
				return decimal.Zero, false, nil
			}
			return r.Amount.RoundBank(2), true, nil
		default:
			return decimal.Zero, false, eris.Errorf("pauschale: rule %s yielded a non-numeric, non-boolean result", r.ID)
		}

	default:
		return decimal.Zero, false, eris.Errorf("pauschale: unknown rule mode %q", r.Mode)
	}
}

// Label renders the breakdown label for a surcharge kind.
func Label(kind model.RuleKind) string {
	switch kind {
	case model.KindAnfahrt:
		return "Anfahrt"
	case model.KindEntsorgung:
		return "Entsorgung"
	case model.KindMontage:
		return "Montage"
	case model.KindKleinauftrag:
		return "Kleinauftragszuschlag"
	case model.KindVerpackung:
		return "Verpackung"
	case model.KindPlanung:
		return "Planung"
	case model.KindMiete:
		return "Gerätemiete"
	case model.KindGenehmigung:
		return "Genehmigung"
	default:
		return string(kind)
	}
}
