// Package pricing computes per-component material prices and aggregates them
// into the base price of a multi-material calculation.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/model"
)

// BaseRates maps a material category (holz, metall, ...) to its base rate per
// unit volume.
type BaseRates map[string]decimal.Decimal

// UnknownBaseRateError is returned for a material category without a
// configured base rate. Pricing never falls back to a default rate.
type UnknownBaseRateError struct {
	MaterialCategory string
}

func (e *UnknownBaseRateError) Error() string {
	return fmt.Sprintf("pricing: no base rate for material category %q", e.MaterialCategory)
}

// Factor is one resolved multiplier to apply to a component.
type Factor struct {
	Name       string
	Multiplier decimal.Decimal
	Tier       model.Tier
}

// ComponentFactors carries the resolved multipliers for one component.
// Surface and Complexity are optional.
type ComponentFactors struct {
	Material   Factor
	Surface    *Factor
	Complexity *Factor
}

// PricedComponent is the outcome of pricing one component: its total amount
// and the ordered steps that produced it. The steps sum exactly to Amount.
type PricedComponent struct {
	Amount decimal.Decimal
	Steps  []model.BreakdownStep
}

// Calculator prices single components against the configured base rates.
type Calculator struct {
	rates BaseRates
}

// NewCalculator creates a Calculator with the given base rates.
func NewCalculator(rates BaseRates) *Calculator {
	return &Calculator{rates: rates}
}

// Price computes one component: raw = base_rate × volume, then the material,
// surface, and complexity factors applied multiplicatively in that fixed
// order. Every factor application is rounded half-to-even to two decimals at
// the point it is computed and recorded as its own step, so the audit trail
// carries per-factor tier attribution instead of one collapsed multiplier.
//
// Zero-dimension components price to zero but still emit their steps.
func (c *Calculator) Price(spec model.ComponentSpec, factors ComponentFactors) (PricedComponent, error) {
	rate, ok := c.rates[spec.MaterialCategory]
	if !ok {
		return PricedComponent{}, &UnknownBaseRateError{MaterialCategory: spec.MaterialCategory}
	}

	raw := rate.Mul(spec.Dimensions.Volume())

	// Material step carries the base amount (raw × material factor).
	running := raw.Mul(factors.Material.Multiplier).RoundBank(2)
	steps := []model.BreakdownStep{{
		Label:      componentLabel(spec, "Material", factors.Material.Name),
		Amount:     running,
		Category:   model.StepMaterial,
		TierSource: factors.Material.Tier,
	}}

	// Surface and complexity steps carry the delta each factor adds on top
	// of the running amount.
	if factors.Surface != nil {
		next := running.Mul(factors.Surface.Multiplier).RoundBank(2)
		steps = append(steps, model.BreakdownStep{
			Label:      componentLabel(spec, "Oberfläche", factors.Surface.Name),
			Amount:     next.Sub(running),
			Category:   model.StepAdjustment,
			TierSource: factors.Surface.Tier,
		})
		running = next
	}

	if factors.Complexity != nil {
		next := running.Mul(factors.Complexity.Multiplier).RoundBank(2)
		steps = append(steps, model.BreakdownStep{
			Label:      componentLabel(spec, "Komplexität", factors.Complexity.Name),
			Amount:     next.Sub(running),
			Category:   model.StepAdjustment,
			TierSource: factors.Complexity.Tier,
		})
		running = next
	}

	return PricedComponent{Amount: running, Steps: steps}, nil
}

func componentLabel(spec model.ComponentSpec, factorKind, factorName string) string {
	if spec.ComponentType == "" {
		return factorKind + " " + factorName
	}
	return spec.ComponentType + ": " + factorKind + " " + factorName
}
