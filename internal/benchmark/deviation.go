package benchmark

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DuKro90/draftcraft/internal/model"
)

var german = message.NewPrinter(language.German)

// LabelDelta compares one breakdown label of a new calculation against its
// historical average contribution.
type LabelDelta struct {
	Label         string          `json:"label"`
	Amount        decimal.Decimal `json:"amount"`
	HistoricalAvg decimal.Decimal `json:"historical_avg"`
	Delta         decimal.Decimal `json:"delta"`
}

// Deviation explains how a new calculation compares to the historical
// composition, not just the totals.
type Deviation struct {
	Percent         decimal.Decimal `json:"percent"`
	Commentary      string          `json:"commentary"`
	TopContributors []LabelDelta    `json:"top_contributors,omitempty"`
}

// maxContributors bounds the listing to the labels that move the price most.
const maxContributors = 5

// ExplainDeviation computes deviation_percent of a new result against the
// historical average and lists the breakdown labels whose contributions
// differ most from their historical averages.
func (a *Aggregator) ExplainDeviation(ctx context.Context, result *model.CalculationResult) (*Deviation, error) {
	if result == nil {
		return nil, eris.New("benchmark: nil calculation result")
	}

	history, err := a.history.ListResults(ctx, result.BusinessID, result.ProjectType)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: list results for %s/%s", result.BusinessID, result.ProjectType)
	}

	// Exclude the result under inspection if it is already persisted.
	samples := history[:0:0]
	for _, h := range history {
		if h.ID != result.ID {
			samples = append(samples, h)
		}
	}

	if len(samples) == 0 {
		return &Deviation{
			Commentary: "Keine historischen Kalkulationen für diesen Projekttyp vorhanden.",
		}, nil
	}

	sum := decimal.Zero
	for _, s := range samples {
		sum = sum.Add(s.TotalPrice)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(samples))))

	dev := &Deviation{}
	if !average.IsZero() {
		dev.Percent = result.TotalPrice.Sub(average).Div(average).Mul(hundred).RoundBank(2)
	}
	dev.TopContributors = topContributors(result, samples)
	dev.Commentary = commentary(dev.Percent, average, len(samples))

	return dev, nil
}

// topContributors compares the new breakdown factor-by-factor against the
// average historical contribution per label and returns the largest absolute
// deltas, largest first.
func topContributors(result *model.CalculationResult, samples []model.CalculationResult) []LabelDelta {
	histTotals := make(map[string]decimal.Decimal)
	for _, s := range samples {
		for _, step := range s.Breakdown {
			histTotals[step.Label] = histTotals[step.Label].Add(step.Amount)
		}
	}
	n := decimal.NewFromInt(int64(len(samples)))

	var order []string
	newTotals := make(map[string]decimal.Decimal)
	for _, step := range result.Breakdown {
		if _, seen := newTotals[step.Label]; !seen {
			order = append(order, step.Label)
		}
		newTotals[step.Label] = newTotals[step.Label].Add(step.Amount)
	}
	// Historical labels absent from the new calculation still count: their
	// disappearance is part of the deviation.
	var vanished []string
	for label := range histTotals {
		if _, seen := newTotals[label]; !seen {
			vanished = append(vanished, label)
		}
	}
	sort.Strings(vanished)
	order = append(order, vanished...)

	deltas := make([]LabelDelta, 0, len(order))
	for _, label := range order {
		avg := histTotals[label].Div(n).RoundBank(2)
		amount := newTotals[label]
		deltas = append(deltas, LabelDelta{
			Label:         label,
			Amount:        amount,
			HistoricalAvg: avg,
			Delta:         amount.Sub(avg),
		})
	}

	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].Delta.Abs().GreaterThan(deltas[j].Delta.Abs())
	})
	if len(deltas) > maxContributors {
		deltas = deltas[:maxContributors]
	}
	return deltas
}

func commentary(percent, average decimal.Decimal, sampleCount int) string {
	avg, _ := average.Float64()
	pct, _ := percent.Abs().Float64()

	switch {
	case percent.IsZero():
		return german.Sprintf("Der Preis entspricht dem historischen Durchschnitt von %.2f € (%d Kalkulationen).",
			avg, sampleCount)
	case percent.IsPositive():
		return german.Sprintf("Der Preis liegt %.2f %% über dem historischen Durchschnitt von %.2f € (%d Kalkulationen).",
			pct, avg, sampleCount)
	default:
		return german.Sprintf("Der Preis liegt %.2f %% unter dem historischen Durchschnitt von %.2f € (%d Kalkulationen).",
			pct, avg, sampleCount)
	}
}
