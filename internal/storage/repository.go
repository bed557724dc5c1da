package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rata/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable home of recurring definitions and the
// append-only ledger. It implements services.DefinitionStore and
// services.LedgerAppender.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const definitionColumns = `id, owner, kind, name, amount_cents, category, frequency,
	start_date, end_date, next_occurrence, is_active, auto_execute,
	last_executed_date, version, created_at`

// CreateDefinition implements services.DefinitionStore.
func (r *SQLiteRepository) CreateDefinition(ctx context.Context, d core.Definition) (core.Definition, error) {
	createdAt := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO definitions (
			owner, kind, name, amount_cents, category, frequency,
			start_date, end_date, next_occurrence, is_active, auto_execute,
			last_executed_date, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		d.Owner, string(d.Kind), d.Name, d.Amount.Cents, d.Category, string(d.Frequency),
		d.StartDate.String(), nullDate(d.EndDate), d.NextOccurrence.String(),
		boolToInt(d.IsActive), boolToInt(d.AutoExecute), nullDate(d.LastExecutedDate),
		createdAt)
	if err != nil {
		return core.Definition{}, fmt.Errorf("insert definition: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Definition{}, fmt.Errorf("definition id: %w", err)
	}

	slog.InfoContext(ctx, "Definition saved to SQLite",
		"id", id,
		"name", d.Name,
		"frequency", d.Frequency,
		"next_occurrence", d.NextOccurrence.String())

	return r.GetDefinition(ctx, id)
}

// GetDefinition implements services.DefinitionStore.
func (r *SQLiteRepository) GetDefinition(ctx context.Context, id int64) (core.Definition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE id = ?`, id)
	return scanDefinition(row)
}

// UpdateDefinition implements services.DefinitionStore. The write is
// guarded by the version the caller read; a concurrent writer surfaces
// as core.ErrVersionConflict.
func (r *SQLiteRepository) UpdateDefinition(ctx context.Context, d core.Definition) (core.Definition, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE definitions SET
			owner = ?, kind = ?, name = ?, amount_cents = ?, category = ?,
			frequency = ?, start_date = ?, end_date = ?, next_occurrence = ?,
			is_active = ?, auto_execute = ?, last_executed_date = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		d.Owner, string(d.Kind), d.Name, d.Amount.Cents, d.Category,
		string(d.Frequency), d.StartDate.String(), nullDate(d.EndDate), d.NextOccurrence.String(),
		boolToInt(d.IsActive), boolToInt(d.AutoExecute), nullDate(d.LastExecutedDate),
		d.ID, d.Version)
	if err != nil {
		return core.Definition{}, fmt.Errorf("update definition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Definition{}, fmt.Errorf("update definition rows: %w", err)
	}
	if affected == 0 {
		return core.Definition{}, r.missOrConflict(ctx, d.ID)
	}

	return r.GetDefinition(ctx, d.ID)
}

// DeleteDefinition implements services.DefinitionStore.
func (r *SQLiteRepository) DeleteDefinition(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete definition rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Definition deleted from SQLite", "id", id)
	return nil
}

// ListDefinitions implements services.DefinitionStore.
func (r *SQLiteRepository) ListDefinitions(ctx context.Context, owner string) ([]core.Definition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE owner = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ListDue implements services.DefinitionStore. The skip rules of the
// due-check pass live here: inactive, manual-only and expired
// definitions never reach the executor. The end-date gate compares
// against today, not the next occurrence, so a definition past its end
// is not re-selected on every scan.
func (r *SQLiteRepository) ListDue(ctx context.Context, owner string, today core.Date) ([]core.Definition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions
		 WHERE owner = ?
		   AND is_active = 1
		   AND auto_execute = 1
		   AND next_occurrence <= ?
		   AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY id`,
		owner, today.String(), today.String())
	if err != nil {
		return nil, fmt.Errorf("list due definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ListUpcoming implements services.DefinitionStore.
func (r *SQLiteRepository) ListUpcoming(ctx context.Context, owner string, until core.Date) ([]core.Definition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions
		 WHERE owner = ?
		   AND is_active = 1
		   AND next_occurrence <= ?
		 ORDER BY next_occurrence, id`,
		owner, until.String())
	if err != nil {
		return nil, fmt.Errorf("list upcoming definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ClaimExecution implements services.DefinitionStore with a
// compare-and-swap on the version column. Only the claimant that wins
// proceeds to the ledger append.
func (r *SQLiteRepository) ClaimExecution(ctx context.Context, id, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE definitions SET version = version + 1 WHERE id = ? AND version = ?`,
		id, version)
	if err != nil {
		return fmt.Errorf("claim execution: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim execution rows: %w", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, id)
	}

	return nil
}

// AdvanceSchedule implements services.DefinitionStore.
func (r *SQLiteRepository) AdvanceSchedule(ctx context.Context, id int64, executed, next core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE definitions SET last_executed_date = ?, next_occurrence = ? WHERE id = ?`,
		executed.String(), next.String(), id)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance schedule rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	return nil
}

// Append implements services.LedgerAppender.
func (r *SQLiteRepository) Append(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	createdAt := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			kind, amount_cents, category, description, entry_date,
			definition_id, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		string(e.Kind), e.Amount.Cents, e.Category, e.Description,
		e.Date.String(), nullID(e.DefinitionID), createdAt)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("ledger entry id: %w", err)
	}

	e.ID = id
	e.Version = 1
	e.CreatedAt = createdAt

	slog.InfoContext(ctx, "Ledger entry saved to SQLite",
		"id", e.ID,
		"kind", e.Kind,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	return e, nil
}

// ListLedgerEntries returns the entries materialized from a definition,
// newest first.
func (r *SQLiteRepository) ListLedgerEntries(ctx context.Context, definitionID int64) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, amount_cents, category, description, entry_date,
		       definition_id, version, created_at
		FROM ledger_entries
		WHERE definition_id = ?
		ORDER BY id DESC`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			e       core.LedgerEntry
			kind    string
			date    string
			defID   sql.NullInt64
			created time.Time
		)
		if err := rows.Scan(&e.ID, &kind, &e.Amount.Cents, &e.Category,
			&e.Description, &date, &defID, &e.Version, &created); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = core.Kind(kind)
		e.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse entry date %q: %w", date, err)
		}
		e.DefinitionID = defID.Int64
		e.CreatedAt = created
		out = append(out, e)
	}
	return out, rows.Err()
}

// missOrConflict decides whether a zero-row guarded update means the
// definition vanished or a concurrent writer got there first.
func (r *SQLiteRepository) missOrConflict(ctx context.Context, id int64) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM definitions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check definition: %w", err)
	}
	return core.ErrVersionConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (core.Definition, error) {
	var (
		d         core.Definition
		kind      string
		frequency string
		start     string
		end       sql.NullString
		next      string
		lastExec  sql.NullString
		active    int
		auto      int
		created   time.Time
	)

	err := row.Scan(&d.ID, &d.Owner, &kind, &d.Name, &d.Amount.Cents, &d.Category,
		&frequency, &start, &end, &next, &active, &auto, &lastExec,
		&d.Version, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Definition{}, core.ErrNotFound
	}
	if err != nil {
		return core.Definition{}, fmt.Errorf("scan definition: %w", err)
	}

	d.Kind = core.Kind(kind)
	d.Frequency = core.Frequency(frequency)
	d.IsActive = active != 0
	d.AutoExecute = auto != 0
	d.CreatedAt = created

	if d.StartDate, err = core.ParseDate(start); err != nil {
		return core.Definition{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	if d.NextOccurrence, err = core.ParseDate(next); err != nil {
		return core.Definition{}, fmt.Errorf("parse next occurrence %q: %w", next, err)
	}
	if end.Valid && end.String != "" {
		if d.EndDate, err = core.ParseDate(end.String); err != nil {
			return core.Definition{}, fmt.Errorf("parse end date %q: %w", end.String, err)
		}
	}
	if lastExec.Valid && lastExec.String != "" {
		if d.LastExecutedDate, err = core.ParseDate(lastExec.String); err != nil {
			return core.Definition{}, fmt.Errorf("parse last executed date %q: %w", lastExec.String, err)
		}
	}

	return d, nil
}

func collectDefinitions(rows *sql.Rows) ([]core.Definition, error) {
	var out []core.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
