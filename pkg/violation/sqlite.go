package violation

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

const violationSchema = `
CREATE TABLE IF NOT EXISTS violations (
    id               TEXT PRIMARY KEY,
    policy_id        TEXT NOT NULL,
    policy_code      TEXT NOT NULL,
    subject_id       TEXT NOT NULL,
    operation_type   TEXT NOT NULL,
    severity         TEXT NOT NULL,
    offense_count    INTEGER NOT NULL,
    is_repeat        INTEGER NOT NULL,
    suggested_action TEXT NOT NULL,
    status           TEXT NOT NULL,
    context          TEXT,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_violations_offense
    ON violations(policy_id, subject_id);

CREATE INDEX IF NOT EXISTS idx_violations_status
    ON violations(status);
`

const violationColumns = `id, policy_id, policy_code, subject_id, operation_type,
	severity, offense_count, is_repeat, suggested_action, status, context,
	created_at, updated_at`

// SQLiteStorage persists violations in SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage applies the violation schema on the given handle. The
// handle is shared with other stores, so Close is a no-op.
func NewSQLiteStorage(db *sql.DB) (*SQLiteStorage, error) {
	if _, err := db.Exec(violationSchema); err != nil {
		return nil, &StorageError{Operation: "init", Cause: err}
	}
	return &SQLiteStorage{db: db}, nil
}

// Insert counts prior offenses and writes the new violation in one
// immediate transaction, so concurrent inserts for the same pair
// serialize and each gets a distinct count.
func (s *SQLiteStorage) Insert(ctx context.Context, v *Violation, derive func(*Violation)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}
	defer tx.Rollback()

	// Take the write lock up front; the offense count read must not run
	// under a snapshot that a concurrent insert could invalidate.
	if _, err := tx.ExecContext(ctx, `UPDATE violations SET id = id WHERE 0`); err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}

	var prior int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM violations
		WHERE policy_id = ? AND subject_id = ?`,
		v.PolicyID, v.SubjectID).Scan(&prior)
	if err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}

	v.OffenseCount = prior + 1
	if derive != nil {
		derive(v)
	}

	contextJSON, err := marshalContext(v.Context)
	if err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO violations (`+violationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PolicyID, v.PolicyCode, v.SubjectID, v.OperationType,
		string(v.Severity), v.OffenseCount, boolToInt(v.IsRepeatOffense),
		string(v.SuggestedAction), string(v.Status), contextJSON,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Operation: "insert", Cause: err}
	}
	return nil
}

// Get returns a violation by ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*Violation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+violationColumns+` FROM violations WHERE id = ?`, id)
	v, err := scanViolation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Operation: "get", Cause: err}
	}
	return v, nil
}

// List returns violations matching the filter, newest first.
func (s *SQLiteStorage) List(ctx context.Context, filter Filter) ([]*Violation, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE 1=1`
	var args []any
	if filter.PolicyID != "" {
		query += ` AND policy_id = ?`
		args = append(args, filter.PolicyID)
	}
	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.OperationType != "" {
		query += ` AND operation_type = ?`
		args = append(args, filter.OperationType)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Operation: "list", Cause: err}
	}
	defer rows.Close()

	var out []*Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, &StorageError{Operation: "list", Cause: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Operation: "list", Cause: err}
	}
	return out, nil
}

// UpdateStatus sets a violation's case status.
func (s *SQLiteStorage) UpdateStatus(ctx context.Context, id string, status CaseStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE violations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return &StorageError{Operation: "update_status", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Operation: "update_status", Cause: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStorage) Close() error {
	return nil
}

type violationScanner interface {
	Scan(dest ...any) error
}

func scanViolation(row violationScanner) (*Violation, error) {
	var (
		v           Violation
		severity    string
		isRepeat    int
		action      string
		status      string
		contextJSON sql.NullString
	)
	err := row.Scan(
		&v.ID, &v.PolicyID, &v.PolicyCode, &v.SubjectID, &v.OperationType,
		&severity, &v.OffenseCount, &isRepeat, &action, &status, &contextJSON,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Severity = policy.Severity(severity)
	v.IsRepeatOffense = isRepeat != 0
	v.SuggestedAction = DisciplinaryAction(action)
	v.Status = CaseStatus(status)
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &v.Context); err != nil {
			return nil, fmt.Errorf("decode violation context: %w", err)
		}
	}
	return &v, nil
}

func marshalContext(ctx map[string]any) (sql.NullString, error) {
	if ctx == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
