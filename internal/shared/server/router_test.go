package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/reports"
	"perf-report-backend/internal/shared/config"
)

func newTestRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := &reports.Service{Repo: reports.NewMemoryRepo()}
	return NewRouter(RouterDeps{Config: cfg, ReportsHandler: reports.NewHandler(svc)})
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	r := newTestRouter(config.Config{APIKeys: []string{"secret"}})

	for _, path := range []string{"/api/v1/health", "/metrics"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, resp.Code)
		}
	}
}

func TestReportRoutesRequireKeyWhenConfigured(t *testing.T) {
	r := newTestRouter(config.Config{APIKeys: []string{"secret"}})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", resp.Code)
	}
}

func TestAnalyzeIsRateLimited(t *testing.T) {
	r := newTestRouter(config.Config{RateLimit: config.RateLimit{AnalyzePerMinute: 1, AnalyzeBurst: 1}})

	body, _ := json.Marshal(map[string]any{"url": "https://example.com", "audit": map[string]any{}})
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}

	// The default group has no budget configured, so reads are not limited.
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("list %d expected 200, got %d", i, resp.Code)
		}
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
	if !strings.HasPrefix(Addr("1"), ":") {
		t.Fatalf("expected colon prefix")
	}
}
