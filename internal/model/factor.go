// Package model defines the pricing domain entities shared across the engine,
// storage, and the request boundary.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier identifies the resolution layer a value came from. Tier 2 overrides
// tier 1; tier 3 and user history only appear as breakdown attributions.
type Tier string

const (
	Tier1           Tier = "tier1"
	Tier2           Tier = "tier2"
	Tier3           Tier = "tier3"
	TierUserHistory Tier = "user_history"
)

// FactorCategory classifies a pricing multiplier.
type FactorCategory string

const (
	CategoryMaterial   FactorCategory = "material"
	CategorySurface    FactorCategory = "surface"
	CategoryComplexity FactorCategory = "complexity"
)

// AllFactorCategories returns every defined factor category.
func AllFactorCategories() []FactorCategory {
	return []FactorCategory{CategoryMaterial, CategorySurface, CategoryComplexity}
}

// Valid reports whether the category is one of the defined set.
func (c FactorCategory) Valid() bool {
	switch c {
	case CategoryMaterial, CategorySurface, CategoryComplexity:
		return true
	}
	return false
}

// FactorEntry is one multiplier row. Global defaults carry no owner; a
// business-specific override carries the owning business ID. At most one
// enabled override exists per (business, category, key).
type FactorEntry struct {
	ID              string          `json:"id"`
	Category        FactorCategory  `json:"category"`
	Key             string          `json:"key"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	OwnerBusinessID string          `json:"owner_business_id,omitempty"`
	Enabled         bool            `json:"enabled"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Tier returns tier1 for global defaults and tier2 for business overrides.
func (f FactorEntry) Tier() Tier {
	if f.OwnerBusinessID == "" {
		return Tier1
	}
	return Tier2
}
