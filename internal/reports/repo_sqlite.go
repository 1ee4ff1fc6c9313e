package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteTimeLayout has a fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepo implements Repo on an embedded SQLite database.
type SQLiteRepo struct {
	DB *sql.DB
}

const sqliteColumns = `id, url, stage, truncated, fallback, fallback_reason, repair_rules,
       provider, model, audit, report, raw_key, created_at`

// Create inserts a new record.
func (r *SQLiteRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO reports (
	id, url, stage, truncated, fallback, fallback_reason, repair_rules,
	provider, model, audit, report, raw_key, created_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	enc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.URL,
		rec.Stage,
		rec.Truncated,
		rec.Fallback,
		rec.FallbackReason,
		string(enc.rules),
		rec.Provider,
		rec.Model,
		string(enc.audit),
		string(enc.report),
		rec.RawKey,
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (r *SQLiteRepo) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + sqliteColumns + ` FROM reports WHERE id = ? LIMIT 1`
	rec, err := scanSQLite(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records newest first, with limit/offset.
func (r *SQLiteRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + sqliteColumns + ` FROM reports ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func scanSQLite(row rowScanner) (Record, error) {
	var rec Record
	var rules, auditJSON, reportJSON, createdAt string
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Stage,
		&rec.Truncated,
		&rec.Fallback,
		&rec.FallbackReason,
		&rules,
		&rec.Provider,
		&rec.Model,
		&auditJSON,
		&reportJSON,
		&rec.RawKey,
		&createdAt,
	)
	if err != nil {
		return Record{}, err
	}
	enc := encodedRecord{rules: []byte(rules), audit: []byte(auditJSON), report: []byte(reportJSON)}
	if err := enc.decodeInto(&rec); err != nil {
		return Record{}, err
	}
	if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return Record{}, fmt.Errorf("decode created_at: %w", err)
	}
	return rec, nil
}
