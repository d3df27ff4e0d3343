// Package catalog resolves pricing factor multipliers across tiers and fronts
// the storage collaborator with a read-mostly cache.
package catalog

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/model"
)

// UnknownFactorError is returned when neither tier carries the requested key.
// Callers must treat this as an extraction-quality problem; the catalog never
// substitutes a default multiplier.
type UnknownFactorError struct {
	Category model.FactorCategory
	Key      string
}

func (e *UnknownFactorError) Error() string {
	return fmt.Sprintf("catalog: no %s factor for key %q", e.Category, e.Key)
}

// Source is the factor storage collaborator. It returns global defaults plus
// the business's enabled overrides in one call so that a resolved table is
// always built from a single consistent read.
type Source interface {
	ListEnabledFactors(ctx context.Context, businessID string) ([]model.FactorEntry, error)
}

// ResolvedFactor is one multiplier after tier resolution.
type ResolvedFactor struct {
	Category   model.FactorCategory
	Key        string
	Multiplier decimal.Decimal
	Tier       model.Tier
}

// Table holds the fully resolved multipliers for one business, keyed by
// category then factor key. A Table is immutable once built and is cached as
// one atomic unit.
type Table map[model.FactorCategory]map[string]ResolvedFactor

// Lookup returns the resolved factor for (category, key).
func (t Table) Lookup(category model.FactorCategory, key string) (ResolvedFactor, error) {
	if byKey, ok := t[category]; ok {
		if f, ok := byKey[key]; ok {
			return f, nil
		}
	}
	return ResolvedFactor{}, &UnknownFactorError{Category: category, Key: key}
}

// Catalog builds resolved tables from the storage collaborator.
type Catalog struct {
	src Source
}

// New creates a Catalog over the given factor source.
func New(src Source) *Catalog {
	return &Catalog{src: src}
}

// Load reads all enabled factors for a business and resolves tiers: a tier-2
// override replaces the tier-1 default for the same (category, key).
func (c *Catalog) Load(ctx context.Context, businessID string) (Table, error) {
	entries, err := c.src.ListEnabledFactors(ctx, businessID)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list factors for business %s", businessID)
	}

	table := make(Table)
	for _, cat := range model.AllFactorCategories() {
		table[cat] = make(map[string]ResolvedFactor)
	}

	// Tier-1 defaults first, then overrides on top, so ordering in the
	// source result never matters.
	for _, pass := range []model.Tier{model.Tier1, model.Tier2} {
		for _, e := range entries {
			if e.Tier() != pass {
				continue
			}
			if !e.Category.Valid() {
				return nil, eris.Errorf("catalog: factor %s has unknown category %q", e.ID, e.Category)
			}
			table[e.Category][e.Key] = ResolvedFactor{
				Category:   e.Category,
				Key:        e.Key,
				Multiplier: e.Multiplier,
				Tier:       e.Tier(),
			}
		}
	}

	return table, nil
}
