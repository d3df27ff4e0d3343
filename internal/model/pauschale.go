package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/rule"
)

// RuleKind names the surcharge a pauschale rule implements.
type RuleKind string

const (
	KindAnfahrt      RuleKind = "anfahrt"
	KindEntsorgung   RuleKind = "entsorgung"
	KindMontage      RuleKind = "montage"
	KindKleinauftrag RuleKind = "kleinauftrag"
	KindVerpackung   RuleKind = "verpackung"
	KindPlanung      RuleKind = "planung"
	KindMiete        RuleKind = "miete"
	KindGenehmigung  RuleKind = "genehmigung"
)

// AllRuleKinds returns every defined surcharge kind.
func AllRuleKinds() []RuleKind {
	return []RuleKind{
		KindAnfahrt,
		KindEntsorgung,
		KindMontage,
		KindKleinauftrag,
		KindVerpackung,
		KindPlanung,
		KindMiete,
		KindGenehmigung,
	}
}

// Valid reports whether the kind is one of the defined set.
func (k RuleKind) Valid() bool {
	for _, known := range AllRuleKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// RuleMode selects how a pauschale rule computes its amount.
type RuleMode string

const (
	ModeFixed       RuleMode = "fixed"
	ModePerUnit     RuleMode = "per_unit"
	ModePercent     RuleMode = "percent"
	ModeConditional RuleMode = "conditional"
)

// Valid reports whether the mode is one of the defined set.
func (m RuleMode) Valid() bool {
	switch m {
	case ModeFixed, ModePerUnit, ModePercent, ModeConditional:
		return true
	}
	return false
}

// PauschaleRule is one configured surcharge. Rules are immutable once a
// finalized calculation references them; the storage collaborator enforces
// that, together with the mode invariants checked by Validate.
type PauschaleRule struct {
	ID            string          `json:"id"`
	BusinessID    string          `json:"business_id"`
	Kind          RuleKind        `json:"kind"`
	Mode          RuleMode        `json:"mode"`
	Amount        decimal.Decimal `json:"amount"`
	Unit          string          `json:"unit,omitempty"`
	Condition     rule.Node       `json:"-"`
	GlobalDefault bool            `json:"global_default"`
	Enabled       bool            `json:"enabled"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the structural invariants: per_unit requires a unit,
// conditional requires a condition tree.
func (r PauschaleRule) Validate() error {
	if !r.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "unknown rule kind " + string(r.Kind)}
	}
	if !r.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: "unknown rule mode " + string(r.Mode)}
	}
	if r.Mode == ModePerUnit && r.Unit == "" {
		return &ValidationError{Field: "unit", Reason: "per_unit rules require a unit"}
	}
	if r.Mode == ModeConditional && r.Condition == nil {
		return &ValidationError{Field: "condition", Reason: "conditional rules require a condition tree"}
	}
	return nil
}

// TierSource returns the tier attribution for steps this rule emits.
func (r PauschaleRule) TierSource() Tier {
	if r.GlobalDefault {
		return Tier1
	}
	return Tier2
}

// ValidationError reports a structurally invalid entity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "model: invalid " + e.Field + ": " + e.Reason
}
