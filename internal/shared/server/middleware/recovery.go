package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/shared/server/respond"
	"perf-report-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 with the standard error body. The
// panic value and stack go to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request.Method,
				"route":      c.FullPath(),
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			}
			if p := PrincipalFromContext(c); p != "" {
				fields["principal"] = p
			}
			if id := c.GetString(ReportIDKey); id != "" {
				fields["report_id"] = id
			}
			telemetry.Error("request.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
