package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"perf-report-backend/internal/audit"
	"perf-report-backend/internal/ingest"
	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/shared/storage/object"
)

func TestAnalyzeStoresParsedReport(t *testing.T) {
	client := &stubLLM{text: validResponse}
	svc, repo := newTestService(t, client)

	rec, err := svc.Analyze(context.Background(), "https://shop.example.com/", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.Fallback || rec.Stage != string(ingest.StageSanitized) {
		t.Fatalf("expected sanitized stage without fallback, got %+v", rec)
	}
	if rec.Report.Summary != "Largest image delays LCP" || len(rec.Report.Problems) != 1 {
		t.Fatalf("unexpected report %+v", rec.Report)
	}
	if rec.Audit.URL != "https://shop.example.com/" {
		t.Fatalf("audit url not replaced: %q", rec.Audit.URL)
	}
	if !strings.Contains(client.last.User, "https://shop.example.com/") {
		t.Fatalf("prompt does not mention the page: %q", client.last.User)
	}

	stored, err := repo.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(rec, stored); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}

	wantKey, _ := object.ArchiveKey(rec.ID, object.ArtifactResponse)
	if rec.RawKey != wantKey {
		t.Fatalf("raw key = %q, want %q", rec.RawKey, wantKey)
	}
	raw, err := svc.Raw(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if raw != validResponse {
		t.Fatalf("archived response differs")
	}

	reportKey, _ := object.ArchiveKey(rec.ID, object.ArtifactReport)
	body, err := svc.Store.Open(context.Background(), reportKey)
	if err != nil {
		t.Fatalf("open archived report: %v", err)
	}
	defer body.Close()
	payload, _ := io.ReadAll(body)
	if !strings.Contains(string(payload), `"summary":"Largest image delays LCP"`) {
		t.Fatalf("unexpected archived report %s", payload)
	}
}

func TestAnalyzeUpstreamFailureUsesFallback(t *testing.T) {
	client := &stubLLM{err: errors.New("llm error: status 502: bad gateway")}
	svc, _ := newTestService(t, client)
	m := sampleAudit()

	rec, err := svc.Analyze(context.Background(), "", m)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !rec.Fallback || rec.FallbackReason != string(ingest.ReasonUpstream) || rec.Stage != string(ingest.StageFailed) {
		t.Fatalf("expected upstream fallback, got %+v", rec)
	}
	if diff := cmp.Diff(ingest.Synthesize(m), rec.Report); diff != "" {
		t.Fatalf("fallback report mismatch (-want +got):\n%s", diff)
	}
	if rec.RawKey != "" {
		t.Fatalf("no model text, expected empty raw key, got %q", rec.RawKey)
	}
	if _, err := svc.Raw(context.Background(), rec.ID); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func TestAnalyzeTimeoutUsesFallback(t *testing.T) {
	client := &stubLLM{block: true}
	svc, _ := newTestService(t, client)
	svc.Timeout = 20 * time.Millisecond

	rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !rec.Fallback || rec.FallbackReason != string(ingest.ReasonUpstream) {
		t.Fatalf("expected upstream fallback after timeout, got %+v", rec)
	}
	if err := rec.Report.Validate(); err != nil {
		t.Fatalf("fallback report invalid: %v", err)
	}
}

func TestAnalyzeWithoutClientUsesPlaceholder(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !rec.Fallback {
		t.Fatalf("expected fallback without a model client")
	}
}

func TestAnalyzeUnparseableKeepsRawText(t *testing.T) {
	client := &stubLLM{text: "I am unable to analyze this page."}
	svc, _ := newTestService(t, client)

	rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.FallbackReason != string(ingest.ReasonUnparseable) {
		t.Fatalf("expected unparseable fallback, got %+v", rec)
	}
	raw, err := svc.Raw(context.Background(), rec.ID)
	if err != nil || raw != client.text {
		t.Fatalf("expected archived text, got %q %v", raw, err)
	}
}

func TestAnalyzeRejectsInvalidURL(t *testing.T) {
	client := &stubLLM{text: validResponse}
	svc, repo := newTestService(t, client)

	for _, raw := range []string{"", "shop.example.com", "ftp://shop.example.com", "https://"} {
		m := sampleAudit()
		m.URL = ""
		if _, err := svc.Analyze(context.Background(), raw, m); !errors.Is(err, audit.ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
	if client.callCount() != 0 {
		t.Fatalf("model must not be called for invalid input")
	}
	if recs, _ := repo.List(context.Background(), 0, 0); len(recs) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(recs))
	}
}

func TestAnalyzeArchiveFailureIsNotFatal(t *testing.T) {
	client := &stubLLM{text: validResponse}
	svc, repo := newTestService(t, client)
	svc.Store = failingStore{}

	rec, err := svc.Analyze(context.Background(), "https://shop.example.com", sampleAudit())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.RawKey != "" {
		t.Fatalf("expected no raw key after archive failure, got %q", rec.RawKey)
	}
	if _, err := repo.Get(context.Background(), rec.ID); err != nil {
		t.Fatalf("record not saved: %v", err)
	}
}

func TestIngestDoesNotPersist(t *testing.T) {
	client := &stubLLM{text: validResponse}
	svc, repo := newTestService(t, client)

	out := svc.Ingest(context.Background(), `{"summary": Fast page, "problems": []}`, sampleAudit())
	if out.Stage != ingest.StageRepaired || out.Report.Summary != "Fast page" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if client.callCount() != 0 {
		t.Fatalf("Ingest must not call the model")
	}
	if recs, _ := repo.List(context.Background(), 0, 0); len(recs) != 0 {
		t.Fatalf("Ingest must not persist, got %d records", len(recs))
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc, _ := newTestService(t, &stubLLM{})
	if _, err := svc.Get(context.Background(), "../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClassifyUpstream(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("placeholder: %w", llm.ErrNotConfigured), want: "not_configured"},
		{err: errors.New("llm request timeout: context deadline exceeded"), want: "timeout"},
		{err: context.DeadlineExceeded, want: "timeout"},
		{err: context.Canceled, want: "canceled"},
		{err: errors.New("llm error: status 500"), want: "error"},
	}
	for _, tc := range cases {
		if got := classifyUpstream(tc.err); got != tc.want {
			t.Fatalf("classifyUpstream(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
