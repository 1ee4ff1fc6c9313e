package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/shared/server/middleware"
)

func setupReportsRouter(t *testing.T, client *stubLLM) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t, client)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload
}

func TestAnalyzeEndpointCreatesReport(t *testing.T) {
	router, svc := setupReportsRouter(t, &stubLLM{text: validResponse})

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyze", map[string]any{
		"url":   "https://shop.example.com",
		"audit": sampleAudit(),
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.ID == "" || rec.Stage != "sanitized" || rec.Fallback {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := svc.Repo.Get(context.Background(), rec.ID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestAnalyzeEndpointValidation(t *testing.T) {
	router, _ := setupReportsRouter(t, &stubLLM{text: validResponse})

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyze", map[string]any{"url": "not a url"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if payload := decodeError(t, resp); payload.Error.Code != ErrorCodeValidation {
		t.Fatalf("unexpected error code %q", payload.Error.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{"))
	bad := httptest.NewRecorder()
	router.ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", bad.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	client := &stubLLM{}
	router, _ := setupReportsRouter(t, client)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]any{
		"text":  `{"summary":"Cut the bundle","problems":[{"type":"script","title":"Long tasks","severity":"high","impact":"TBT 900 ms","suggestion":"Split code"}]`,
		"audit": sampleAudit(),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fallback || !out.Truncated {
		t.Fatalf("expected truncation recovery, got %+v", out)
	}
	if out.Report.Summary != "Cut the bundle" || len(out.Report.Problems) != 1 {
		t.Fatalf("unexpected report %+v", out.Report)
	}
	if client.callCount() != 0 {
		t.Fatalf("ingest must not call the model")
	}
}

func TestIngestEndpointBlankTextFallsBack(t *testing.T) {
	router, _ := setupReportsRouter(t, &stubLLM{})
	resp := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]any{"text": "   "})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Fallback || out.FallbackReason != "upstream" {
		t.Fatalf("expected upstream fallback, got %+v", out)
	}
	if err := out.Report.Validate(); err != nil {
		t.Fatalf("fallback report invalid: %v", err)
	}
}

func TestReportRoutes(t *testing.T) {
	router, svc := setupReportsRouter(t, &stubLLM{text: validResponse})
	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	list := doJSON(t, router, http.MethodGet, "/api/v1/reports?limit=2&offset=0", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d", list.Code)
	}
	var page struct {
		Items []Summary `json:"items"`
		Limit int       `json:"limit"`
	}
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != ids[2] || page.Limit != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Performance != 41 || page.Items[0].Problems != 1 {
		t.Fatalf("unexpected summary %+v", page.Items[0])
	}

	for _, bad := range []string{"limit=0", "limit=101", "limit=x", "offset=-1"} {
		if resp := doJSON(t, router, http.MethodGet, "/api/v1/reports?"+bad, nil); resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, resp.Code)
		}
	}

	get := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+ids[0], nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get expected 200, got %d", get.Code)
	}

	missing := doJSON(t, router, http.MethodGet, "/api/v1/reports/00000000-0000-4000-8000-999999999999", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
	if payload := decodeError(t, missing); payload.Error.Code != ErrorCodeNotFound {
		t.Fatalf("unexpected error code %q", payload.Error.Code)
	}

	raw := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+ids[0]+"/raw", nil)
	if raw.Code != http.StatusOK || raw.Body.String() != validResponse {
		t.Fatalf("unexpected raw response %d %q", raw.Code, raw.Body.String())
	}
}

func TestExportReport(t *testing.T) {
	router, svc := setupReportsRouter(t, &stubLLM{text: validResponse})
	rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	md := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+rec.ID+"/export", nil)
	if md.Code != http.StatusOK {
		t.Fatalf("markdown export expected 200, got %d", md.Code)
	}
	if ct := md.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(md.Body.String(), "# Performance Report") || !strings.Contains(md.Body.String(), "Hero image is 1.2 MB") {
		t.Fatalf("unexpected markdown:\n%s", md.Body.String())
	}

	js := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+rec.ID+"/export?format=json", nil)
	if js.Code != http.StatusOK {
		t.Fatalf("json export expected 200, got %d", js.Code)
	}
	if cd := js.Header().Get("Content-Disposition"); !strings.Contains(cd, "report-"+rec.ID+".json") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	bad := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+rec.ID+"/export?format=pdf", nil)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for pdf, got %d", bad.Code)
	}
}
