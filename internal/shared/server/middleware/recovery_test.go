package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/shared/telemetry"
)

func TestRecoveryReturnsStandardError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(os.Stdout)

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/api/v1/reports/:id", func(c *gin.Context) {
		c.Set(ReportIDKey, c.Param("id"))
		panic("renderer exploded")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/r-1", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "internal_error" {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if strings.Contains(rec.Body.String(), "renderer exploded") {
		t.Fatalf("panic value leaked to the client: %s", rec.Body.String())
	}

	logged := buf.String()
	for _, want := range []string{`"request.panic"`, `"renderer exploded"`, `"req-9"`, `"r-1"`, `"/api/v1/reports/:id"`} {
		if !strings.Contains(logged, want) {
			t.Fatalf("log missing %s:\n%s", want, logged)
		}
	}
}
