package main

// Run database migrations:
//   go run ./cmd/migrate
//   go run ./cmd/migrate -dialect sqlite3

import (
	"context"
	"database/sql"
	"flag"
	"os"

	"perf-report-backend/internal/shared/config"
	"perf-report-backend/internal/shared/storage/db"
	"perf-report-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	dialect := flag.String("dialect", defaultDialect(cfg), "postgres or sqlite3")
	flag.Parse()

	ctx := context.Background()
	var (
		sqlDB *sql.DB
		err   error
	)
	switch *dialect {
	case db.DialectSQLite:
		sqlDB, err = db.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	}
	if err != nil {
		telemetry.Error("failed to connect database", map[string]any{"dialect": *dialect, "error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, *dialect); err != nil {
		telemetry.Error("failed to run migrations", map[string]any{"dialect": *dialect, "error": err})
		os.Exit(1)
	}
	telemetry.Info("migrations applied", map[string]any{"dialect": *dialect})
}

func defaultDialect(cfg config.Config) string {
	if cfg.DatabaseURL == "" && cfg.SQLitePath != "" {
		return db.DialectSQLite
	}
	return db.DialectPostgres
}
