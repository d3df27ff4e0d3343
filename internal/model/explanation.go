package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ConfidenceLevel buckets how trustworthy an explanation is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// CalculationFactor is one named contribution within an explanation.
// ImpactPercent is amount / total_price × 100, rounded to two decimals.
type CalculationFactor struct {
	FactorName    string          `json:"factor_name"`
	Amount        decimal.Decimal `json:"amount"`
	ImpactPercent decimal.Decimal `json:"impact_percent"`
	DataSource    Tier            `json:"data_source"`
}

type calculationFactorJSON struct {
	FactorName    string `json:"factor_name"`
	Amount        string `json:"amount"`
	ImpactPercent string `json:"impact_percent"`
	DataSource    Tier   `json:"data_source"`
}

func (f CalculationFactor) MarshalJSON() ([]byte, error) {
	return json.Marshal(calculationFactorJSON{
		FactorName:    f.FactorName,
		Amount:        f.Amount.StringFixed(2),
		ImpactPercent: f.ImpactPercent.StringFixed(2),
		DataSource:    f.DataSource,
	})
}

// TierBreakdown sums breakdown amounts per source tier, in EUR.
type TierBreakdown struct {
	Tier1EUR       decimal.Decimal `json:"tier1_eur"`
	Tier2EUR       decimal.Decimal `json:"tier2_eur"`
	Tier3EUR       decimal.Decimal `json:"tier3_eur"`
	UserHistoryEUR decimal.Decimal `json:"user_history_eur"`
}

type tierBreakdownJSON struct {
	Tier1EUR       string `json:"tier1_eur"`
	Tier2EUR       string `json:"tier2_eur"`
	Tier3EUR       string `json:"tier3_eur"`
	UserHistoryEUR string `json:"user_history_eur"`
}

func (t TierBreakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(tierBreakdownJSON{
		Tier1EUR:       t.Tier1EUR.StringFixed(2),
		Tier2EUR:       t.Tier2EUR.StringFixed(2),
		Tier3EUR:       t.Tier3EUR.StringFixed(2),
		UserHistoryEUR: t.UserHistoryEUR.StringFixed(2),
	})
}

// CalculationExplanation is derived entirely from a CalculationResult and is
// recomputable at any time; it is never independently mutated.
type CalculationExplanation struct {
	CalculationResultID string              `json:"calculation_result_id"`
	ConfidenceLevel     ConfidenceLevel     `json:"confidence_level"`
	ConfidenceScore     float64             `json:"confidence_score"`
	Factors             []CalculationFactor `json:"factors"`
	TierBreakdown       TierBreakdown       `json:"tier_breakdown"`
	Summary             string              `json:"summary,omitempty"`
}

// Benchmark is a read-only view over historical results for one
// (business, project_type) pair. It is recomputed on demand, never persisted
// as a source of truth.
type Benchmark struct {
	BusinessID   string          `json:"business_id"`
	ProjectType  string          `json:"project_type"`
	AveragePrice decimal.Decimal `json:"average_price"`
	MedianPrice  decimal.Decimal `json:"median_price"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
	SampleCount  int             `json:"sample_count"`
}

type benchmarkJSON struct {
	BusinessID   string `json:"business_id"`
	ProjectType  string `json:"project_type"`
	AveragePrice string `json:"average_price"`
	MedianPrice  string `json:"median_price"`
	MinPrice     string `json:"min_price"`
	MaxPrice     string `json:"max_price"`
	SampleCount  int    `json:"sample_count"`
}

func (b Benchmark) MarshalJSON() ([]byte, error) {
	return json.Marshal(benchmarkJSON{
		BusinessID:   b.BusinessID,
		ProjectType:  b.ProjectType,
		AveragePrice: b.AveragePrice.StringFixed(2),
		MedianPrice:  b.MedianPrice.StringFixed(2),
		MinPrice:     b.MinPrice.StringFixed(2),
		MaxPrice:     b.MaxPrice.StringFixed(2),
		SampleCount:  b.SampleCount,
	})
}
