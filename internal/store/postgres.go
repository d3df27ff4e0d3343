package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/db"
	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/rule"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	hookSet
	pool    db.Pool
	limits  rule.Limits
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// read-heavy factor and rule paths.
var preparedStatements = map[string]string{
	"list_factors": `SELECT id, COALESCE(owner_business_id, ''), category, key, multiplier::text, enabled, created_at, updated_at
		FROM factor_entries
		WHERE enabled AND (owner_business_id IS NULL OR owner_business_id = $1)
		ORDER BY category, key`,
	"list_rules": `SELECT id, business_id, kind, mode, amount::text, COALESCE(unit, ''), COALESCE(condition_ast::text, ''), global_default, enabled, created_at
		FROM pauschale_rules
		WHERE enabled AND (business_id = $1 OR global_default)
		ORDER BY created_at, id`,
	"get_result": `SELECT id, business_id, project_type, base_price::text, total_price::text, breakdown::text, COALESCE(warnings::text, 'null'), created_at
		FROM calculation_results WHERE id = $1`,
	"list_results": `SELECT id, business_id, project_type, base_price::text, total_price::text, breakdown::text, COALESCE(warnings::text, 'null'), created_at
		FROM calculation_results
		WHERE business_id = $1 AND project_type = $2
		ORDER BY created_at, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, limits rule.Limits) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, limits: limits, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS factor_entries (
	id                TEXT PRIMARY KEY,
	owner_business_id TEXT,
	category          TEXT NOT NULL,
	key               TEXT NOT NULL,
	multiplier        NUMERIC(12,4) NOT NULL,
	enabled           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_factor_entries_scope
	ON factor_entries(COALESCE(owner_business_id, ''), category, key);

CREATE TABLE IF NOT EXISTS pauschale_rules (
	id             TEXT PRIMARY KEY,
	business_id    TEXT NOT NULL,
	kind           TEXT NOT NULL,
	mode           TEXT NOT NULL,
	amount         NUMERIC(12,2) NOT NULL,
	unit           TEXT,
	condition_ast  JSONB,
	global_default BOOLEAN NOT NULL DEFAULT FALSE,
	enabled        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pauschale_rules_business ON pauschale_rules(business_id);

CREATE TABLE IF NOT EXISTS calculation_results (
	id           TEXT PRIMARY KEY,
	business_id  TEXT NOT NULL,
	project_type TEXT NOT NULL,
	base_price   NUMERIC(14,2) NOT NULL,
	total_price  NUMERIC(14,2) NOT NULL,
	breakdown    JSONB NOT NULL,
	warnings     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_results_business_project
	ON calculation_results(business_id, project_type);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListEnabledFactors(ctx context.Context, businessID string) ([]model.FactorEntry, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_factors"], businessID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list factors")
	}
	defer rows.Close()

	var entries []model.FactorEntry
	for rows.Next() {
		var e model.FactorEntry
		var multiplier string
		if err := rows.Scan(&e.ID, &e.OwnerBusinessID, &e.Category, &e.Key, &multiplier, &e.Enabled, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan factor")
		}
		if e.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
			return nil, eris.Wrapf(err, "postgres: factor %s multiplier %q", e.ID, multiplier)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) UpsertFactor(ctx context.Context, entry model.FactorEntry) (*model.FactorEntry, error) {
	if !entry.Category.Valid() {
		return nil, eris.Errorf("postgres: unknown factor category %q", entry.Category)
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO factor_entries (id, owner_business_id, category, key, multiplier, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (COALESCE(owner_business_id, ''), category, key)
		 DO UPDATE SET multiplier = EXCLUDED.multiplier, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		entry.ID, owner, string(entry.Category), entry.Key, entry.Multiplier.String(),
		entry.Enabled, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert factor")
	}

	s.fire(entry.OwnerBusinessID, entry.Category)
	return &entry, nil
}

func (s *PostgresStore) DeleteFactor(ctx context.Context, businessID string, category model.FactorCategory, key string) error {
	s.fire(businessID, category)

	var owner any
	if businessID != "" {
		owner = businessID
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM factor_entries WHERE COALESCE(owner_business_id, '') = COALESCE($1, '') AND category = $2 AND key = $3`,
		owner, string(category), key,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: delete factor")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: factor %s/%s not found", category, key)
	}

	s.fire(businessID, category)
	return nil
}

// ImportFactors bulk-upserts a full price list through a temp table. A sheet
// covering every material of a workshop runs as one COPY plus one merge.
func (s *PostgresStore) ImportFactors(ctx context.Context, entries []model.FactorEntry) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		if !e.Category.Valid() {
			return 0, eris.Errorf("postgres: unknown factor category %q", e.Category)
		}
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		var owner any
		if e.OwnerBusinessID != "" {
			owner = e.OwnerBusinessID
		}
		rows = append(rows, []any{id, owner, string(e.Category), e.Key, e.Multiplier.String(), e.Enabled, now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "factor_entries",
		Columns:      []string{"id", "owner_business_id", "category", "key", "multiplier", "enabled", "created_at", "updated_at"},
		ConflictKeys: []string{"COALESCE(owner_business_id, '')", "category", "key"},
		UpdateCols:   []string{"multiplier", "enabled", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import factors")
	}

	for _, e := range entries {
		s.fire(e.OwnerBusinessID, e.Category)
	}
	return n, nil
}

func (s *PostgresStore) ListActiveRules(ctx context.Context, businessID string) ([]model.PauschaleRule, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_rules"], businessID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()

	var rules []model.PauschaleRule
	for rows.Next() {
		var r model.PauschaleRule
		var amount, conditionJSON string
		if err := rows.Scan(&r.ID, &r.BusinessID, &r.Kind, &r.Mode, &amount, &r.Unit, &conditionJSON, &r.GlobalDefault, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, eris.Wrapf(err, "postgres: rule %s amount %q", r.ID, amount)
		}
		if conditionJSON != "" {
			if r.Condition, err = rule.ParseJSON([]byte(conditionJSON), s.limits); err != nil {
				return nil, eris.Wrapf(err, "postgres: rule %s condition", r.ID)
			}
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) UpsertRule(ctx context.Context, r model.PauschaleRule) (*model.PauschaleRule, error) {
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert rule")
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
			return nil, eris.Wrapf(err, "postgres: rule %s condition", r.ID)
		}
		conditionJSON = string(data)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pauschale_rules (id, business_id, kind, mode, amount, unit, condition_ast, global_default, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, mode = EXCLUDED.mode, amount = EXCLUDED.amount,
			unit = EXCLUDED.unit, condition_ast = EXCLUDED.condition_ast,
			global_default = EXCLUDED.global_default, enabled = EXCLUDED.enabled`,
		r.ID, r.BusinessID, string(r.Kind), string(r.Mode), r.Amount.String(),
		nullIfEmpty(r.Unit), conditionJSON, r.GlobalDefault, r.Enabled, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert rule")
	}
	return &r, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.CalculationResult) error {
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal warnings")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO calculation_results (id, business_id, project_type, base_price, total_price, breakdown, warnings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID, result.BusinessID, result.ProjectType,
		result.BasePrice.StringFixed(2), result.TotalPrice.StringFixed(2),
		string(breakdown), string(warnings), result.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert result")
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (*model.CalculationResult, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_result"], id)
	result, err := scanResult(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrResultNotFound, "postgres: result %s", id)
		}
		return nil, eris.Wrap(err, "postgres: get result")
	}
	return result, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, businessID, projectType string) ([]model.CalculationResult, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_results"], businessID, projectType)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
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

func (s *PostgresStore) ListProjectTypes(ctx context.Context, businessID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT project_type FROM calculation_results WHERE business_id = $1 ORDER BY project_type`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list project types")
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan project type")
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
