package reports

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

var pgColumnNames = []string{
	"id", "url", "stage", "truncated", "fallback", "fallback_reason", "repair_rules",
	"provider", "model", "audit", "report", "raw_key", "created_at",
}

func pgRow(t *testing.T, rec Record) []driver.Value {
	t.Helper()
	rules, _ := json.Marshal(rec.RepairRules)
	auditJSON, err := json.Marshal(rec.Audit)
	if err != nil {
		t.Fatalf("marshal audit: %v", err)
	}
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	return []driver.Value{
		rec.ID, rec.URL, rec.Stage, rec.Truncated, rec.Fallback, rec.FallbackReason, rules,
		rec.Provider, rec.Model, auditJSON, reportJSON, rec.RawKey, rec.CreatedAt,
	}
}

func TestPGRepoCreateEncodesJSONColumns(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	repo := &PGRepo{DB: conn}
	rec := sampleRecords(2)[1]
	rec.RepairRules = nil

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(
			rec.ID,
			rec.URL,
			rec.Stage,
			rec.Truncated,
			rec.Fallback,
			rec.FallbackReason,
			[]byte("[]"),
			rec.Provider,
			rec.Model,
			sqlmock.AnyArg(), // audit
			sqlmock.AnyArg(), // report
			rec.RawKey,
			rec.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGet(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	repo := &PGRepo{DB: conn}
	want := sampleRecords(2)[1]

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id = \\$1").
		WithArgs(want.ID).
		WillReturnRows(sqlmock.NewRows(pgColumnNames).AddRow(pgRow(t, want)...))

	got, err := repo.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	mock.ExpectQuery("SELECT (.+) FROM reports").WillReturnError(sql.ErrNoRows)

	_, err = (&PGRepo{DB: conn}).Get(context.Background(), "00000000-0000-4000-8000-000000000001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListClampsLimit(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	recs := sampleRecords(2)
	rows := sqlmock.NewRows(pgColumnNames).
		AddRow(pgRow(t, recs[1])...).
		AddRow(pgRow(t, recs[0])...)
	mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
		WithArgs(MaxListLimit, 0).
		WillReturnRows(rows)

	got, err := (&PGRepo{DB: conn}).List(context.Background(), 500, -3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]Record{recs[1], recs[0]}, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
