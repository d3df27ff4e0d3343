package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/rule"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	hookSet
	db     *sql.DB
	limits rule.Limits
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, limits rule.Limits) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, limits: limits}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS factor_entries (
	id                TEXT PRIMARY KEY,
	owner_business_id TEXT,
	category          TEXT NOT NULL,
	key               TEXT NOT NULL,
	multiplier        TEXT NOT NULL,
	enabled           INTEGER NOT NULL DEFAULT 1,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_factor_entries_scope
	ON factor_entries(COALESCE(owner_business_id, ''), category, key);

CREATE TABLE IF NOT EXISTS pauschale_rules (
	id             TEXT PRIMARY KEY,
	business_id    TEXT NOT NULL,
	kind           TEXT NOT NULL,
	mode           TEXT NOT NULL,
	amount         TEXT NOT NULL,
	unit           TEXT,
	condition_ast  TEXT,
	global_default INTEGER NOT NULL DEFAULT 0,
	enabled        INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_pauschale_rules_business ON pauschale_rules(business_id);

CREATE TABLE IF NOT EXISTS calculation_results (
	id           TEXT PRIMARY KEY,
	business_id  TEXT NOT NULL,
	project_type TEXT NOT NULL,
	base_price   TEXT NOT NULL,
	total_price  TEXT NOT NULL,
	breakdown    TEXT NOT NULL,
	warnings     TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_business_project
	ON calculation_results(business_id, project_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListEnabledFactors(ctx context.Context, businessID string) ([]model.FactorEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(owner_business_id, ''), category, key, multiplier, enabled, created_at, updated_at
		 FROM factor_entries
		 WHERE enabled = 1 AND (owner_business_id IS NULL OR owner_business_id = ?)
		 ORDER BY category, key`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list factors")
	}
	defer rows.Close()

	var entries []model.FactorEntry
	for rows.Next() {
		var e model.FactorEntry
		var multiplier string
		var enabled int
		if err := rows.Scan(&e.ID, &e.OwnerBusinessID, &e.Category, &e.Key, &multiplier, &enabled, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan factor")
		}
		if e.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
			return nil, eris.Wrapf(err, "sqlite: factor %s multiplier %q", e.ID, multiplier)
		}
		e.Enabled = enabled == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) UpsertFactor(ctx context.Context, entry model.FactorEntry) (*model.FactorEntry, error) {
	if !entry.Category.Valid() {
		return nil, eris.Errorf("sqlite: unknown factor category %q", entry.Category)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.UpdatedAt = now
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	s.fire(entry.OwnerBusinessID, entry.Category)

	var owner any
	if entry.OwnerBusinessID != "" {
		owner = entry.OwnerBusinessID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO factor_entries (id, owner_business_id, category, key, multiplier, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(COALESCE(owner_business_id, ''), category, key)
		 DO UPDATE SET multiplier = excluded.multiplier, enabled = excluded.enabled, updated_at = excluded.updated_at`,
		entry.ID, owner, string(entry.Category), entry.Key, entry.Multiplier.String(),
		boolToInt(entry.Enabled), entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert factor")
	}

	s.fire(entry.OwnerBusinessID, entry.Category)
	return &entry, nil
}

func (s *SQLiteStore) DeleteFactor(ctx context.Context, businessID string, category model.FactorCategory, key string) error {
	s.fire(businessID, category)

	var owner any
	if businessID != "" {
		owner = businessID
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM factor_entries WHERE COALESCE(owner_business_id, '') = COALESCE(?, '') AND category = ? AND key = ?`,
		owner, string(category), key,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete factor")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Errorf("sqlite: factor %s/%s not found", category, key)
	}

	s.fire(businessID, category)
	return nil
}

func (s *SQLiteStore) ImportFactors(ctx context.Context, entries []model.FactorEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var count int64
	for _, e := range entries {
		if !e.Category.Valid() {
			return 0, eris.Errorf("sqlite: unknown factor category %q", e.Category)
		}
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		var owner any
		if e.OwnerBusinessID != "" {
			owner = e.OwnerBusinessID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO factor_entries (id, owner_business_id, category, key, multiplier, enabled, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(COALESCE(owner_business_id, ''), category, key)
			 DO UPDATE SET multiplier = excluded.multiplier, enabled = excluded.enabled, updated_at = excluded.updated_at`,
			id, owner, string(e.Category), e.Key, e.Multiplier.String(), boolToInt(e.Enabled), now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import factor %s/%s", e.Category, e.Key)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}

	// Bulk imports may touch many businesses and categories; callers drop
	// the whole cache via the registered hooks.
	for _, e := range entries {
		s.fire(e.OwnerBusinessID, e.Category)
	}
	return count, nil
}

func (s *SQLiteStore) ListActiveRules(ctx context.Context, businessID string) ([]model.PauschaleRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, kind, mode, amount, COALESCE(unit, ''), COALESCE(condition_ast, ''), global_default, enabled, created_at
		 FROM pauschale_rules
		 WHERE enabled = 1 AND (business_id = ? OR global_default = 1)
		 ORDER BY created_at, id`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()

	var rules []model.PauschaleRule
	for rows.Next() {
		r, err := scanSQLiteRule(rows, s.limits)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func scanSQLiteRule(rows *sql.Rows, limits rule.Limits) (*model.PauschaleRule, error) {
	var r model.PauschaleRule
	var amount, conditionJSON string
	var globalDefault, enabled int
	if err := rows.Scan(&r.ID, &r.BusinessID, &r.Kind, &r.Mode, &amount, &r.Unit, &conditionJSON, &globalDefault, &enabled, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan rule")
	}

	var err error
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, eris.Wrapf(err, "sqlite: rule %s amount %q", r.ID, amount)
	}
	if conditionJSON != "" {
		if r.Condition, err = rule.ParseJSON([]byte(conditionJSON), limits); err != nil {
			return nil, eris.Wrapf(err, "sqlite: rule %s condition", r.ID)
		}
	}
	r.GlobalDefault = globalDefault == 1
	r.Enabled = enabled == 1
	return &r, nil
}

func (s *SQLiteStore) UpsertRule(ctx context.Context, r model.PauschaleRule) (*model.PauschaleRule, error) {
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert rule")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var conditionJSON any
	if r.Condition != nil {
		data, err := rule.MarshalNode(r.Condition)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: rule %s condition", r.ID)
		}
		conditionJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pauschale_rules (id, business_id, kind, mode, amount, unit, condition_ast, global_default, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind, mode = excluded.mode, amount = excluded.amount,
			unit = excluded.unit, condition_ast = excluded.condition_ast,
			global_default = excluded.global_default, enabled = excluded.enabled`,
		r.ID, r.BusinessID, string(r.Kind), string(r.Mode), r.Amount.String(),
		nullIfEmpty(r.Unit), conditionJSON, boolToInt(r.GlobalDefault), boolToInt(r.Enabled), r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert rule")
	}
	return &r, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.CalculationResult) error {
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calculation_results (id, business_id, project_type, base_price, total_price, breakdown, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.BusinessID, result.ProjectType,
		result.BasePrice.StringFixed(2), result.TotalPrice.StringFixed(2),
		string(breakdown), string(warnings), result.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert result")
}

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.CalculationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, project_type, base_price, total_price, breakdown, COALESCE(warnings, 'null'), created_at
		 FROM calculation_results WHERE id = ?`,
		id,
	)
	result, err := scanResult(row.Scan)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrResultNotFound, "sqlite: result %s", id)
	}
	return result, err
}

func (s *SQLiteStore) ListResults(ctx context.Context, businessID, projectType string) ([]model.CalculationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, project_type, base_price, total_price, breakdown, COALESCE(warnings, 'null'), created_at
		 FROM calculation_results
		 WHERE business_id = ? AND project_type = ?
		 ORDER BY created_at, id`,
		businessID, projectType,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.CalculationResult
	for rows.Next() {
		r, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ListProjectTypes(ctx context.Context, businessID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT project_type FROM calculation_results WHERE business_id = ? ORDER BY project_type`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list project types")
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan project type")
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// scanResult rebuilds a CalculationResult from one row via a Scan function,
// shared between the single-row and multi-row paths.
func scanResult(scan func(dest ...any) error) (*model.CalculationResult, error) {
	var r model.CalculationResult
	var base, total, breakdown, warnings string
	if err := scan(&r.ID, &r.BusinessID, &r.ProjectType, &base, &total, &breakdown, &warnings, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan result")
	}

	var err error
	if r.BasePrice, err = decimal.NewFromString(base); err != nil {
		return nil, eris.Wrapf(err, "store: result %s base price %q", r.ID, base)
	}
	if r.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, eris.Wrapf(err, "store: result %s total price %q", r.ID, total)
	}
	if err := json.Unmarshal([]byte(breakdown), &r.Breakdown); err != nil {
		return nil, eris.Wrapf(err, "store: result %s breakdown", r.ID)
	}
	if warnings != "" && warnings != "null" {
		if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
			return nil, eris.Wrapf(err, "store: result %s warnings", r.ID)
		}
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
