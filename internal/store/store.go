// Package store persists factor entries, pauschale rules, and calculation
// results, and fires cache-invalidation hooks on administrative writes.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/DuKro90/draftcraft/internal/model"
)

// ErrResultNotFound is returned when a calculation ID does not exist.
var ErrResultNotFound = errors.New("store: result not found")

// FactorChangeHook is called around every factor mutation so the factor cache
// can drop the affected (business, category) entry. Hooks fire before the
// write and again after it commits; a whole-table cache entry is therefore
// never left mixing old and new rows.
type FactorChangeHook func(businessID string, category model.FactorCategory)

// ResultFilter narrows result listings.
type ResultFilter struct {
	ProjectType string `json:"project_type,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the pricing core.
type Store interface {
	// Factors
	ListEnabledFactors(ctx context.Context, businessID string) ([]model.FactorEntry, error)
	UpsertFactor(ctx context.Context, entry model.FactorEntry) (*model.FactorEntry, error)
	DeleteFactor(ctx context.Context, businessID string, category model.FactorCategory, key string) error
	ImportFactors(ctx context.Context, entries []model.FactorEntry) (int64, error)
	OnFactorChange(hook FactorChangeHook)

	// Rules
	ListActiveRules(ctx context.Context, businessID string) ([]model.PauschaleRule, error)
	UpsertRule(ctx context.Context, r model.PauschaleRule) (*model.PauschaleRule, error)

	// Results
	SaveResult(ctx context.Context, result *model.CalculationResult) error
	GetResult(ctx context.Context, id string) (*model.CalculationResult, error)
	ListResults(ctx context.Context, businessID, projectType string) ([]model.CalculationResult, error)
	ListProjectTypes(ctx context.Context, businessID string) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// hookSet holds registered factor-change hooks. Embedded by both backends.
type hookSet struct {
	mu    sync.RWMutex
	hooks []FactorChangeHook
}

func (h *hookSet) OnFactorChange(hook FactorChangeHook) {
	h.mu.Lock()
	h.hooks = append(h.hooks, hook)
	h.mu.Unlock()
}

func (h *hookSet) fire(businessID string, category model.FactorCategory) {
	h.mu.RLock()
	hooks := h.hooks
	h.mu.RUnlock()
	for _, hook := range hooks {
		hook(businessID, category)
	}
}
