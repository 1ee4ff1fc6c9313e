package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	SQLitePath      string
	AutoMigrate     bool
	// APIKeys guard the API when non-empty.
	APIKeys   []string
	RateLimit RateLimit
	LLM       llm.Config
}

// RateLimit holds per-caller request budgets in requests per minute.
type RateLimit struct {
	AnalyzePerMinute int
	AnalyzeBurst     int
	DefaultPerMinute int
	DefaultBurst     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	sqlitePath := os.Getenv("SQLITE_PATH")

	if env == "production" && dbURL == "" && sqlitePath == "" {
		telemetry.Warn("no database configured in production, reports are kept in memory", nil)
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		SQLitePath:      sqlitePath,
		AutoMigrate:     getEnvBool("AUTO_MIGRATE", env != "production"),
		APIKeys:         splitAndTrim(os.Getenv("API_KEYS")),
		RateLimit: RateLimit{
			AnalyzePerMinute: getEnvInt("RATE_LIMIT_ANALYZE_PER_MIN", 10),
			AnalyzeBurst:     getEnvInt("RATE_LIMIT_ANALYZE_BURST", 3),
			DefaultPerMinute: getEnvInt("RATE_LIMIT_DEFAULT_PER_MIN", 300),
			DefaultBurst:     getEnvInt("RATE_LIMIT_DEFAULT_BURST", 60),
		},
		LLM: loadLLM(),
	}
}

func loadLLM() llm.Config {
	provider := normalizeProvider(getEnv("LLM_PROVIDER", llm.ProviderDeepSeek))
	cfg := llm.Config{
		Provider:  provider,
		APIKey:    getEnv("LLM_API_KEY", providerKey(provider)),
		Model:     getEnv("LLM_MODEL", ""),
		BaseURL:   getEnv("LLM_BASE_URL", ""),
		MaxTokens: getEnvInt("LLM_MAX_TOKENS", 0),
	}
	if secs := getEnvInt("LLM_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	if raw := strings.TrimSpace(os.Getenv("LLM_TEMPERATURE")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 32); err == nil && v > 0 {
			cfg.Temperature = float32(v)
		} else {
			telemetry.Warn("config invalid float", map[string]any{"key": "LLM_TEMPERATURE"})
		}
	}
	return cfg.WithDefaults()
}

func providerKey(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case llm.ProviderDeepSeek:
		return os.Getenv("DEEPSEEK_API_KEY")
	default:
		return ""
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config invalid int", map[string]any{"key": key})
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		telemetry.Warn("config invalid bool", map[string]any{"key": key})
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case llm.ProviderOpenAI:
		return llm.ProviderOpenAI
	case llm.ProviderGemini, "google":
		return llm.ProviderGemini
	case llm.ProviderNone, "off", "disabled":
		return llm.ProviderNone
	default:
		return llm.ProviderDeepSeek
	}
}
