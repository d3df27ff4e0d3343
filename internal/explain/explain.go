// Package explain reconstructs a transparent, auditable explanation from a
// calculation result's breakdown.
package explain

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DuKro90/draftcraft/internal/model"
)

var hundred = decimal.NewFromInt(100)

// german renders EUR amounts the way the quote documents do (1.234,56 €).
var german = message.NewPrinter(language.German)

// Build derives a CalculationExplanation from a result. Steps sharing a label
// are summed into one factor (first-seen label order preserved); impact
// percentages are computed against the total price; the tier breakdown is an
// exact arithmetic aggregation of step amounts per source tier.
func Build(result *model.CalculationResult) (*model.CalculationExplanation, error) {
	if result == nil {
		return nil, eris.New("explain: nil calculation result")
	}

	// Group by label, preserving attribution order.
	var order []string
	amounts := make(map[string]decimal.Decimal)
	tiers := make(map[string]model.Tier)
	for _, step := range result.Breakdown {
		if _, seen := amounts[step.Label]; !seen {
			order = append(order, step.Label)
			tiers[step.Label] = step.TierSource
		}
		amounts[step.Label] = amounts[step.Label].Add(step.Amount)
	}

	factors := make([]model.CalculationFactor, 0, len(order))
	for _, label := range order {
		amount := amounts[label]
		impact := decimal.Zero
		if !result.TotalPrice.IsZero() {
			impact = amount.Div(result.TotalPrice).Mul(hundred).RoundBank(2)
		}
		factors = append(factors, model.CalculationFactor{
			FactorName:    label,
			Amount:        amount,
			ImpactPercent: impact,
			DataSource:    tiers[label],
		})
	}

	var tb model.TierBreakdown
	for _, step := range result.Breakdown {
		switch step.TierSource {
		case model.Tier1:
			tb.Tier1EUR = tb.Tier1EUR.Add(step.Amount)
		case model.Tier2:
			tb.Tier2EUR = tb.Tier2EUR.Add(step.Amount)
		case model.Tier3:
			tb.Tier3EUR = tb.Tier3EUR.Add(step.Amount)
		case model.TierUserHistory:
			tb.UserHistoryEUR = tb.UserHistoryEUR.Add(step.Amount)
		}
	}

	level, score := Confidence(len(result.Warnings))

	total, _ := result.TotalPrice.Float64()
	summary := german.Sprintf("Gesamtpreis %.2f € aus %d Positionen, Vertrauensniveau %s.",
		total, len(factors), levelLabel(level))

	return &model.CalculationExplanation{
		CalculationResultID: result.ID,
		ConfidenceLevel:     level,
		ConfidenceScore:     score,
		Factors:             factors,
		TierBreakdown:       tb,
		Summary:             summary,
	}, nil
}

// Confidence maps a warning count to a level and a normalized score. The
// score is strictly non-increasing in the warning count and stays in [0, 1].
func Confidence(warningCount int) (model.ConfidenceLevel, float64) {
	score := 0.95 - 0.15*float64(warningCount)
	if score < 0.05 {
		score = 0.05
	}

	switch {
	case warningCount == 0:
		return model.ConfidenceHigh, score
	case warningCount <= 2:
		return model.ConfidenceMedium, score
	default:
		return model.ConfidenceLow, score
	}
}

func levelLabel(level model.ConfidenceLevel) string {
	switch level {
	case model.ConfidenceHigh:
		return "hoch"
	case model.ConfidenceMedium:
		return "mittel"
	default:
		return "niedrig"
	}
}
