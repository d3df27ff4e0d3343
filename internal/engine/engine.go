// Package engine orchestrates a calculation request through factor
// resolution, component pricing, surcharge application, and result assembly.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DuKro90/draftcraft/internal/catalog"
	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/pauschale"
	"github.com/DuKro90/draftcraft/internal/pricing"
	"github.com/DuKro90/draftcraft/internal/rule"
)

// step names the pipeline stages. Each request runs every stage to completion
// synchronously; FAILED is reachable from any of them.
type step string

const (
	stepReceived           step = "RECEIVED"
	stepResolvingFactors   step = "RESOLVING_FACTORS"
	stepPricingComponents  step = "PRICING_COMPONENTS"
	stepApplyingSurcharges step = "APPLYING_SURCHARGES"
	stepAssemblingResult   step = "ASSEMBLING_RESULT"
	stepDone               step = "DONE"
)

// EmptyCalculationError is returned for a request without components.
type EmptyCalculationError struct{}

func (e *EmptyCalculationError) Error() string {
	return "engine: calculation request has no components"
}

// FailedStepError wraps a stage failure with the stage name so the boundary
// can surface where the pipeline stopped. Factor misses stay retryable with
// corrected input, not as transient faults.
type FailedStepError struct {
	Step string
	Err  error
}

func (e *FailedStepError) Error() string {
	return fmt.Sprintf("engine: %s failed: %v", e.Step, e.Err)
}

func (e *FailedStepError) Unwrap() error {
	return e.Err
}

// FactorResolver yields the resolved factor table for a business. Satisfied
// by catalog.CacheService; the cache path and the direct path must return
// identical tables.
type FactorResolver interface {
	Table(ctx context.Context, businessID string) (catalog.Table, error)
}

// RuleSource is the rule storage collaborator. Condition trees it returns are
// already validated for depth and size.
type RuleSource interface {
	ListActiveRules(ctx context.Context, businessID string) ([]model.PauschaleRule, error)
}

// Request is the transport-agnostic calculation input.
type Request struct {
	BusinessID   string                `json:"business_id"`
	ProjectType  string                `json:"project_type"`
	CustomerType string                `json:"customer_type,omitempty"`
	Components   []model.ComponentSpec `json:"components"`
	// Context carries rule-evaluation fields such as distance_km or
	// quantity. Values may be numbers, strings, or booleans.
	Context map[string]any `json:"context,omitempty"`
}

// Engine is stateless between requests; it is safe to share across
// goroutines. The factor cache is the only shared mutable collaborator and
// guards itself.
type Engine struct {
	factors    FactorResolver
	rules      RuleSource
	components *pricing.Calculator
}

// New creates an Engine.
func New(factors FactorResolver, rules RuleSource, components *pricing.Calculator) *Engine {
	return &Engine{factors: factors, rules: rules, components: components}
}

// Calculate runs the full pipeline and returns an immutable result. Every
// monetary contribution in the breakdown is traceable to a named factor and a
// tier; nothing is silently defaulted or dropped.
func (e *Engine) Calculate(ctx context.Context, req Request) (*model.CalculationResult, error) {
	started := time.Now()

	if len(req.Components) == 0 {
		return nil, &FailedStepError{Step: string(stepReceived), Err: &EmptyCalculationError{}}
	}

	// RESOLVING_FACTORS: one table read covers all components so the whole
	// request prices against a single consistent snapshot.
	table, err := e.factors.Table(ctx, req.BusinessID)
	if err != nil {
		return nil, &FailedStepError{Step: string(stepResolvingFactors), Err: err}
	}

	resolved := make([]pricing.ComponentFactors, len(req.Components))
	var warnings []string
	for i, spec := range req.Components {
		cf, w, err := resolveComponent(table, spec)
		if err != nil {
			return nil, &FailedStepError{Step: string(stepResolvingFactors), Err: err}
		}
		resolved[i] = cf
		warnings = append(warnings, w...)
	}

	// PRICING_COMPONENTS.
	priced := make([]pricing.PricedComponent, len(req.Components))
	for i, spec := range req.Components {
		pc, err := e.components.Price(spec, resolved[i])
		if err != nil {
			return nil, &FailedStepError{Step: string(stepPricingComponents), Err: err}
		}
		priced[i] = pc
	}
	aggregated := pricing.Aggregate(priced)

	// APPLYING_SURCHARGES.
	rules, err := e.rules.ListActiveRules(ctx, req.BusinessID)
	if err != nil {
		return nil, &FailedStepError{Step: string(stepApplyingSurcharges), Err: err}
	}
	evalCtx := buildContext(req, aggregated.BasePrice)
	surcharges, err := pauschale.Apply(rules, evalCtx)
	if err != nil {
		return nil, &FailedStepError{Step: string(stepApplyingSurcharges), Err: err}
	}

	// ASSEMBLING_RESULT.
	breakdown := append(aggregated.Steps, surcharges...)
	total := aggregated.BasePrice
	for _, s := range surcharges {
		total = total.Add(s.Amount)
	}

	result := &model.CalculationResult{
		ID:          uuid.New().String(),
		BusinessID:  req.BusinessID,
		ProjectType: req.ProjectType,
		BasePrice:   aggregated.BasePrice,
		TotalPrice:  total,
		Breakdown:   breakdown,
		Warnings:    warnings,
		CreatedAt:   time.Now().UTC(),
	}

	zap.L().Info("engine: calculation complete",
		zap.String("calculation_id", result.ID),
		zap.String("business_id", req.BusinessID),
		zap.String("project_type", req.ProjectType),
		zap.Int("components", len(req.Components)),
		zap.Int("surcharges", len(surcharges)),
		zap.Int("warnings", len(warnings)),
		zap.String("total_price", total.StringFixed(2)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return result, nil
}

// resolveComponent looks up every factor a component references. Resolving a
// key at the tier-1 default produces a warning, since a missing business
// override lowers downstream confidence.
func resolveComponent(table catalog.Table, spec model.ComponentSpec) (pricing.ComponentFactors, []string, error) {
	var warnings []string

	material, err := table.Lookup(model.CategoryMaterial, spec.MaterialKey)
	if err != nil {
		return pricing.ComponentFactors{}, nil, err
	}
	warnings = appendTierWarning(warnings, material)

	cf := pricing.ComponentFactors{
		Material: pricing.Factor{Name: spec.MaterialKey, Multiplier: material.Multiplier, Tier: material.Tier},
	}

	if spec.SurfaceKey != "" {
		surface, err := table.Lookup(model.CategorySurface, spec.SurfaceKey)
		if err != nil {
			return pricing.ComponentFactors{}, nil, err
		}
		warnings = appendTierWarning(warnings, surface)
		cf.Surface = &pricing.Factor{Name: spec.SurfaceKey, Multiplier: surface.Multiplier, Tier: surface.Tier}
	}

	if spec.ComplexityKey != "" {
		complexity, err := table.Lookup(model.CategoryComplexity, spec.ComplexityKey)
		if err != nil {
			return pricing.ComponentFactors{}, nil, err
		}
		warnings = appendTierWarning(warnings, complexity)
		cf.Complexity = &pricing.Factor{Name: spec.ComplexityKey, Multiplier: complexity.Multiplier, Tier: complexity.Tier}
	}

	return cf, warnings, nil
}

func appendTierWarning(warnings []string, f catalog.ResolvedFactor) []string {
	if f.Tier == model.Tier1 {
		warnings = append(warnings, fmt.Sprintf(
			"factor %s/%s resolved from global default (no business override)", f.Category, f.Key))
	}
	return warnings
}

// buildContext assembles the rule-evaluation context from the request fields
// and the aggregated base price.
func buildContext(req Request, basePrice decimal.Decimal) rule.Context {
	ctx := rule.Context{
		pauschale.BasePriceField: rule.Number(basePrice),
	}
	if req.CustomerType != "" {
		ctx["customer_type"] = rule.String(req.CustomerType)
	}
	for key, val := range req.Context {
		switch v := val.(type) {
		case float64:
			ctx[key] = rule.NumberFromFloat(v)
		case int:
			ctx[key] = rule.Number(decimal.NewFromInt(int64(v)))
		case int64:
			ctx[key] = rule.Number(decimal.NewFromInt(v))
		case decimal.Decimal:
			ctx[key] = rule.Number(v)
		case string:
			ctx[key] = rule.String(v)
		case bool:
			ctx[key] = rule.Bool(v)
		case json.Number:
			if d, err := decimal.NewFromString(v.String()); err == nil {
				ctx[key] = rule.Number(d)
			}
		}
	}
	return ctx
}
