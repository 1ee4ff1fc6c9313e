package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry ingestion results.
const (
	ReportIDKey       = "reportId"
	IngestStageKey    = "ingestStage"
	FallbackReasonKey = "fallbackReason"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if p := PrincipalFromContext(c); p != "" {
			fields["principal"] = p
		}
		for key, field := range map[string]string{
			ReportIDKey:       "report_id",
			IngestStageKey:    "stage",
			FallbackReasonKey: "fallback_reason",
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}
		telemetry.Info("request.complete", fields)
	}
}
