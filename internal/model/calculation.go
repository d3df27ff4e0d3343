package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// StepCategory classifies one breakdown contribution.
type StepCategory string

const (
	StepMaterial   StepCategory = "material"
	StepLabor      StepCategory = "labor"
	StepOverhead   StepCategory = "overhead"
	StepAdjustment StepCategory = "adjustment"
	StepSurcharge  StepCategory = "surcharge"
)

// Dimensions are component measurements in meters.
type Dimensions struct {
	Length float64 `json:"length" yaml:"length"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Volume returns length × width × height as a decimal.
func (d Dimensions) Volume() decimal.Decimal {
	l := decimal.NewFromFloat(d.Length)
	w := decimal.NewFromFloat(d.Width)
	h := decimal.NewFromFloat(d.Height)
	return l.Mul(w).Mul(h)
}

// ComponentSpec describes one material component of a calculation request.
// It is input only; the core never persists it.
type ComponentSpec struct {
	ComponentType    string     `json:"component_type" yaml:"component_type"`
	MaterialCategory string     `json:"material_category" yaml:"material_category"`
	MaterialKey      string     `json:"material_key" yaml:"material_key"`
	SurfaceKey       string     `json:"surface_key,omitempty" yaml:"surface_key,omitempty"`
	ComplexityKey    string     `json:"complexity_key,omitempty" yaml:"complexity_key,omitempty"`
	Dimensions       Dimensions `json:"dimensions" yaml:"dimensions"`
}

// BreakdownStep is one attributable monetary contribution. Step order is the
// attribution order and is never re-sorted.
type BreakdownStep struct {
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Category   StepCategory    `json:"category"`
	TierSource Tier            `json:"tier_source"`
}

// breakdownStepJSON renders amounts with exactly two fraction digits at the
// boundary, per the fixed-point contract.
type breakdownStepJSON struct {
	Label      string       `json:"label"`
	Amount     string       `json:"amount"`
	Category   StepCategory `json:"category"`
	TierSource Tier         `json:"tier_source"`
}

func (s BreakdownStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(breakdownStepJSON{
		Label:      s.Label,
		Amount:     s.Amount.StringFixed(2),
		Category:   s.Category,
		TierSource: s.TierSource,
	})
}

func (s *BreakdownStep) UnmarshalJSON(data []byte) error {
	var raw breakdownStepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode breakdown step")
	}
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return eris.Wrapf(err, "model: breakdown amount %q", raw.Amount)
	}
	*s = BreakdownStep{
		Label:      raw.Label,
		Amount:     amount,
		Category:   raw.Category,
		TierSource: raw.TierSource,
	}
	return nil
}

// CalculationResult is the priced outcome of one request. Immutable once
// created; total_price equals the exact sum of all step amounts, which in
// turn equals base_price plus the surcharge steps.
type CalculationResult struct {
	ID          string          `json:"id"`
	BusinessID  string          `json:"business_id"`
	ProjectType string          `json:"project_type"`
	BasePrice   decimal.Decimal `json:"base_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Breakdown   []BreakdownStep `json:"breakdown"`
	Warnings    []string        `json:"warnings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type calculationResultJSON struct {
	ID          string          `json:"id"`
	BusinessID  string          `json:"business_id"`
	ProjectType string          `json:"project_type"`
	BasePrice   string          `json:"base_price"`
	TotalPrice  string          `json:"total_price"`
	Breakdown   []BreakdownStep `json:"breakdown"`
	Warnings    []string        `json:"warnings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r CalculationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(calculationResultJSON{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		ProjectType: r.ProjectType,
		BasePrice:   r.BasePrice.StringFixed(2),
		TotalPrice:  r.TotalPrice.StringFixed(2),
		Breakdown:   r.Breakdown,
		Warnings:    r.Warnings,
		CreatedAt:   r.CreatedAt,
	})
}

func (r *CalculationResult) UnmarshalJSON(data []byte) error {
	var raw calculationResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode calculation result")
	}
	base, err := decimal.NewFromString(raw.BasePrice)
	if err != nil {
		return eris.Wrapf(err, "model: base price %q", raw.BasePrice)
	}
	total, err := decimal.NewFromString(raw.TotalPrice)
	if err != nil {
		return eris.Wrapf(err, "model: total price %q", raw.TotalPrice)
	}
	*r = CalculationResult{
		ID:          raw.ID,
		BusinessID:  raw.BusinessID,
		ProjectType: raw.ProjectType,
		BasePrice:   base,
		TotalPrice:  total,
		Breakdown:   raw.Breakdown,
		Warnings:    raw.Warnings,
		CreatedAt:   raw.CreatedAt,
	}
	return nil
}

// SumBreakdown returns the exact sum of all step amounts.
func (r CalculationResult) SumBreakdown() decimal.Decimal {
	sum := decimal.Zero
	for _, step := range r.Breakdown {
		sum = sum.Add(step.Amount)
	}
	return sum
}

// SurchargeTotal returns the sum of surcharge-category step amounts.
func (r CalculationResult) SurchargeTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, step := range r.Breakdown {
		if step.Category == StepSurcharge {
			sum = sum.Add(step.Amount)
		}
	}
	return sum
}
