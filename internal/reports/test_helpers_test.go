package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"perf-report-backend/internal/audit"
	"perf-report-backend/internal/llm"
	local "perf-report-backend/internal/shared/storage/object/local"
)

const validResponse = "Here is the analysis:\n```json\n" + `{
  "summary": "Largest image delays LCP",
  "score": {"performance": 41, "accessibility": 80, "bestPractices": 90, "seo": 70},
  "problems": [
    {"type": "image", "title": "Hero image is 1.2 MB", "severity": "high", "impact": "LCP 4.1 s", "suggestion": "Serve AVIF"}
  ],
}` + "\n```"

type stubLLM struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool
	calls int
	last  llm.Request
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls++
	s.last = req
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", fmt.Errorf("llm request timeout: %w", ctx.Err())
	}
	return s.text, s.err
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("disk full")
}

func sampleAudit() audit.Metrics {
	return audit.Metrics{
		URL:    "https://shop.example.com",
		Scores: audit.CategoryScores{Performance: 41, Accessibility: 80, BestPractices: 90, SEO: 70},
		Timings: audit.Timings{
			LCP: 4100, FCP: 2200, TBT: 640, CLS: 0.12, SpeedIndex: 3900,
		},
		Resources: audit.Resources{JSTotalSize: 900, ImageTotalSize: 1600, TotalSize: 2700},
		Requests:  audit.Requests{Total: 80, ThirdParty: 20, ThirdPartyRatio: 25},
	}
}

func newTestService(t *testing.T, client llm.Client) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	seq := 0
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{
		Repo:     repo,
		Store:    local.New(t.TempDir()),
		LLM:      client,
		Provider: "deepseek",
		Model:    "deepseek-chat",
		now: func() time.Time {
			return base.Add(time.Duration(seq) * time.Minute)
		},
		newID: func() string {
			seq++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
		},
	}
	return svc, repo
}
