package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fleethq/governor/pkg/policy"
)

// policySchema is applied on open. The partial unique index enforces the
// one-active-per-code invariant at the storage level in addition to the
// repository's writer lock.
const policySchema = `
CREATE TABLE IF NOT EXISTS policies (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	version INTEGER NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	operation_type TEXT NOT NULL,
	conditions_json TEXT NOT NULL,
	mode TEXT NOT NULL,
	severity TEXT NOT NULL,
	confidence REAL NOT NULL,
	confidence_threshold REAL NOT NULL,
	requires_dual_control INTEGER NOT NULL DEFAULT 0,
	requires_mfa INTEGER NOT NULL DEFAULT 0,
	lifecycle_state TEXT NOT NULL,
	supersedes TEXT NOT NULL DEFAULT '',
	review_cycle_months INTEGER NOT NULL DEFAULT 0,
	effective_date TIMESTAMP,
	next_review_date TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (code, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_one_active_per_code
	ON policies(code) WHERE lifecycle_state = 'active';

CREATE INDEX IF NOT EXISTS idx_policies_operation_state
	ON policies(operation_type, lifecycle_state);
`

const policyColumns = `id, code, version, name, description, operation_type, conditions_json,
	mode, severity, confidence, confidence_threshold, requires_dual_control, requires_mfa,
	lifecycle_state, supersedes, review_cycle_months, effective_date, next_review_date,
	created_at, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the policy store on the shared
// governance database handle and applies the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(policySchema); err != nil {
		return nil, &StoreError{Operation: "create_schema", Cause: err}
	}
	return &SQLiteStore{db: db}, nil
}

// Insert persists a new policy row.
func (s *SQLiteStore) Insert(ctx context.Context, p *policy.Policy) error {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return &StoreError{Operation: "marshal_conditions", Cause: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Code, p.Version, p.Name, p.Description, p.OperationType, string(conditions),
		string(p.Mode), string(p.Severity), p.Confidence, p.ConfidenceThreshold,
		boolToInt(p.RequiresDualControl), boolToInt(p.RequiresMFA),
		string(p.LifecycleState), p.Supersedes, p.ReviewCycleMonths,
		nullableTime(p.EffectiveDate), nullableTime(p.NextReviewDate),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return &StoreError{Operation: "insert", Cause: err}
	}
	return nil
}

// Get returns the policy with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Operation: "get", Cause: err}
	}
	return p, nil
}

// List returns policies matching the filter, ordered by code then version.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*policy.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE 1=1`
	var args []any
	if f.Code != "" {
		query += " AND code = ?"
		args = append(args, f.Code)
	}
	if f.OperationType != "" {
		query += " AND operation_type = ?"
		args = append(args, f.OperationType)
	}
	if f.State != "" {
		query += " AND lifecycle_state = ?"
		args = append(args, string(f.State))
	}
	query += " ORDER BY code, version"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Operation: "list", Cause: err}
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, &StoreError{Operation: "scan", Cause: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Operation: "list", Cause: err}
	}
	return out, nil
}

// ListActive returns every Active policy.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*policy.Policy, error) {
	return s.List(ctx, Filter{State: policy.StateActive})
}

// MaxVersion returns the highest version in a code lineage, or 0.
func (s *SQLiteStore) MaxVersion(ctx context.Context, code string) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM policies WHERE code = ?`, code).Scan(&version)
	if err != nil {
		return 0, &StoreError{Operation: "max_version", Cause: err}
	}
	return int(version.Int64), nil
}

// ActiveByCode returns the Active policy for a code lineage, or nil.
func (s *SQLiteStore) ActiveByCode(ctx context.Context, code string) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE code = ? AND lifecycle_state = ?`,
		code, string(policy.StateActive))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Operation: "active_by_code", Cause: err}
	}
	return p, nil
}

// Activate promotes target and demotes superseded in one transaction.
func (s *SQLiteStore) Activate(ctx context.Context, target *policy.Policy, superseded *policy.Policy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	if superseded != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE policies SET lifecycle_state = ?, updated_at = ?
			WHERE id = ? AND lifecycle_state = ?`,
			string(superseded.LifecycleState), superseded.UpdatedAt,
			superseded.ID, string(policy.StateActive))
		if err != nil {
			return &StoreError{Operation: "supersede", Cause: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &StoreError{Operation: "supersede", Cause: err}
		}
		if n != 1 {
			return &StoreError{Operation: "supersede",
				Cause: fmt.Errorf("policy %s no longer active", superseded.ID)}
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE policies SET lifecycle_state = ?, effective_date = ?, next_review_date = ?, updated_at = ?
		WHERE id = ?`,
		string(target.LifecycleState), nullableTime(target.EffectiveDate),
		nullableTime(target.NextReviewDate), target.UpdatedAt, target.ID)
	if err != nil {
		return &StoreError{Operation: "activate", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Operation: "commit", Cause: err}
	}
	return nil
}

// SetState updates a single policy's lifecycle state.
func (s *SQLiteStore) SetState(ctx context.Context, id string, state policy.LifecycleState, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE policies SET lifecycle_state = ?, updated_at = ? WHERE id = ?`,
		string(state), updatedAt, id)
	if err != nil {
		return &StoreError{Operation: "set_state", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Operation: "set_state", Cause: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases store resources. The shared database handle is owned by
// the caller, so Close is a no-op here.
func (s *SQLiteStore) Close() error {
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanPolicy.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*policy.Policy, error) {
	var (
		p              policy.Policy
		conditionsJSON string
		mode, severity string
		state          string
		dual, mfa      int
		effective      sql.NullTime
		review         sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Version, &p.Name, &p.Description, &p.OperationType, &conditionsJSON,
		&mode, &severity, &p.Confidence, &p.ConfidenceThreshold, &dual, &mfa,
		&state, &p.Supersedes, &p.ReviewCycleMonths, &effective, &review,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditionsJSON), &p.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions for policy %s: %w", p.ID, err)
	}
	p.Mode = policy.Mode(mode)
	p.Severity = policy.Severity(severity)
	p.LifecycleState = policy.LifecycleState(state)
	p.RequiresDualControl = dual != 0
	p.RequiresMFA = mfa != 0
	if effective.Valid {
		t := effective.Time
		p.EffectiveDate = &t
	}
	if review.Valid {
		t := review.Time
		p.NextReviewDate = &t
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
