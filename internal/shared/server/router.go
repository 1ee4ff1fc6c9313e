package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/reports"
	"perf-report-backend/internal/shared/config"
	"perf-report-backend/internal/shared/metrics"
	"perf-report-backend/internal/shared/server/middleware"
	"perf-report-backend/internal/shared/server/respond"
)

// RouterDeps are the handlers the router mounts.
type RouterDeps struct {
	Config         config.Config
	ReportsHandler *reports.Handler
	// Limiter is shared across requests. Nil uses a fresh limiter.
	Limiter *middleware.RateLimiter
}

const (
	rateGroupAnalyze = "ANALYZE"
	rateGroupDefault = "DEFAULT"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	guarded := api.Group("")
	guarded.Use(
		middleware.APIKey(deps.Config.APIKeys),
		middleware.RateLimit(rateLimitConfig(deps.Config.RateLimit, deps.Limiter)),
	)
	if deps.ReportsHandler != nil {
		deps.ReportsHandler.RegisterRoutes(guarded)
	}

	return r
}

func rateLimitConfig(cfg config.RateLimit, limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: rateGroupDefault,
		Limiter:      limiter,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyze" {
				return rateGroupAnalyze
			}
			return rateGroupDefault
		},
		Rules: map[string]middleware.RateLimitRule{
			rateGroupAnalyze: perMinute(cfg.AnalyzePerMinute, cfg.AnalyzeBurst),
			rateGroupDefault: perMinute(cfg.DefaultPerMinute, cfg.DefaultBurst),
		},
	}
}

// perMinute converts a per-minute budget to a token bucket rule. A zero
// budget disables limiting for the group.
func perMinute(n, burst int) middleware.RateLimitRule {
	if burst <= 0 {
		burst = n
	}
	return middleware.RateLimitRule{Rate: float64(n) / 60.0, Burst: burst}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
