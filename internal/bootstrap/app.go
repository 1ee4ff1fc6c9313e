package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/llm/gemini"
	"perf-report-backend/internal/llm/openai"
	"perf-report-backend/internal/reports"
	"perf-report-backend/internal/shared/config"
	"perf-report-backend/internal/shared/server"
	"perf-report-backend/internal/shared/storage/db"
	"perf-report-backend/internal/shared/storage/object"
	localstore "perf-report-backend/internal/shared/storage/object/local"
	s3store "perf-report-backend/internal/shared/storage/object/s3"
	"perf-report-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Dialect        string
	Store          object.ObjectStore
	LLM            llm.Client
	ReportsRepo    reports.Repo
	ReportsService *reports.Service
	ReportsHandler *reports.Handler
}

// Build prepares dependencies and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, dialect, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := NewLLMClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Dialect: dialect,
		Store:   store,
		LLM:     client,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		ReportsHandler: app.ReportsHandler,
	})
	return app, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewLLMClient returns the model client for cfg. Provider "none" and a
// missing API key yield the placeholder, which makes every analysis fall
// back to the synthesized report.
func NewLLMClient(ctx context.Context, cfg llm.Config) (llm.Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.Provider == llm.ProviderNone {
		return llm.PlaceholderClient{}, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		telemetry.Warn("llm api key missing, using fallback reports only", map[string]any{
			"provider": cfg.Provider,
		})
		return llm.PlaceholderClient{}, nil
	}
	switch cfg.Provider {
	case llm.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return client, nil
	default:
		client, err := openai.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s client: %w", cfg.Provider, err)
		}
		return client, nil
	}
}

// buildDB picks Postgres, then SQLite, then no database. Dev-like
// environments fall back to memory when Postgres is unreachable.
func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, string, error) {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap: database connect failed, using in-memory repositories", map[string]any{"error": err})
				return nil, "", nil
			}
			return nil, "", err
		}
		if cfg.AutoMigrate {
			if err := db.RunMigrations(ctx, sqlDB, db.DialectPostgres); err != nil {
				_ = sqlDB.Close()
				return nil, "", err
			}
		}
		return sqlDB, db.DialectPostgres, nil
	case strings.TrimSpace(cfg.SQLitePath) != "":
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		if err := db.RunMigrations(ctx, sqlDB, db.DialectSQLite); err != nil {
			_ = sqlDB.Close()
			return nil, "", err
		}
		return sqlDB, db.DialectSQLite, nil
	default:
		telemetry.Info("bootstrap: no database configured, using in-memory repositories", nil)
		return nil, "", nil
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) {
	var repo reports.Repo
	switch app.Dialect {
	case db.DialectPostgres:
		repo = &reports.PGRepo{DB: app.DB}
	case db.DialectSQLite:
		repo = &reports.SQLiteRepo{DB: app.DB}
	default:
		repo = reports.NewMemoryRepo()
	}

	svc := &reports.Service{
		Repo:     repo,
		Store:    app.Store,
		LLM:      app.LLM,
		Provider: app.Config.LLM.Provider,
		Model:    app.Config.LLM.Model,
		Timeout:  app.Config.LLM.Timeout,
	}
	app.ReportsRepo = repo
	app.ReportsService = svc
	app.ReportsHandler = reports.NewHandler(svc)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
