package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const pgColumns = `id, url, stage, truncated, fallback, fallback_reason, repair_rules,
       provider, model, audit, report, raw_key, created_at`

// Create inserts a new record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO reports (
	id, url, stage, truncated, fallback, fallback_reason, repair_rules,
	provider, model, audit, report, raw_key, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
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
		enc.rules,
		rec.Provider,
		rec.Model,
		enc.audit,
		enc.report,
		rec.RawKey,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + pgColumns + ` FROM reports WHERE id = $1 LIMIT 1`
	rec, err := scanPG(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records newest first, with limit/offset.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + pgColumns + ` FROM reports ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanPG(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPG(row rowScanner) (Record, error) {
	var rec Record
	var enc encodedRecord
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Stage,
		&rec.Truncated,
		&rec.Fallback,
		&rec.FallbackReason,
		&enc.rules,
		&rec.Provider,
		&rec.Model,
		&enc.audit,
		&enc.report,
		&rec.RawKey,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if err := enc.decodeInto(&rec); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
