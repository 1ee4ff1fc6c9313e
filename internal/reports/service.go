package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"perf-report-backend/internal/audit"
	"perf-report-backend/internal/ingest"
	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/shared/metrics"
	"perf-report-backend/internal/shared/storage/object"
	"perf-report-backend/internal/shared/telemetry"
)

// ErrNoArchive is returned when a record has no archived model response.
var ErrNoArchive = errors.New("no archived response")

// Service runs audits through the model and the ingestion pipeline and
// keeps the results.
type Service struct {
	Repo     Repo
	Store    object.ObjectStore
	LLM      llm.Client
	Provider string
	Model    string
	// Timeout bounds the model call. Zero leaves it to the client.
	Timeout time.Duration

	now   func() time.Time
	newID func() string
}

// Analyze asks the model to analyze m, ingests the answer and stores the
// record. Model failures are not errors: they produce a fallback report.
// An empty pageURL falls back to m.URL.
func (s *Service) Analyze(ctx context.Context, pageURL string, m audit.Metrics) (Record, error) {
	if strings.TrimSpace(pageURL) == "" {
		pageURL = m.URL
	}
	pageURL = strings.TrimSpace(pageURL)
	if err := audit.ValidateURL(pageURL); err != nil {
		return Record{}, err
	}
	m.URL = pageURL

	text, usage, upstreamErr := s.complete(ctx, m)
	out := s.run(ctx, text, upstreamErr, m)

	rec := Record{
		ID:             s.id(),
		URL:            pageURL,
		Stage:          string(out.Stage),
		Truncated:      out.Truncated,
		Fallback:       out.Fallback,
		FallbackReason: string(out.Reason),
		RepairRules:    nonNilRules(out.RepairRules),
		Provider:       s.Provider,
		Model:          s.Model,
		Audit:          m,
		Report:         out.Report,
		CreatedAt:      s.clock().UTC(),
	}
	rec.RawKey = s.archive(ctx, rec, text)

	if s.Repo == nil {
		return Record{}, errors.New("reports repo not configured")
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("save report: %w", err)
	}
	telemetry.Info("report.saved", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"report_id":         rec.ID,
		"url":               rec.URL,
		"provider":          rec.Provider,
		"model":             rec.Model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
	})
	return rec, nil
}

// Ingest runs the pipeline on text the caller already has. Nothing is
// stored and no model is called.
func (s *Service) Ingest(ctx context.Context, text string, m audit.Metrics) ingest.Outcome {
	return s.run(ctx, text, nil, m)
}

// Get returns a stored record.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// List returns stored records newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Raw returns the archived model response of a record.
func (s *Service) Raw(ctx context.Context, id string) (string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.Store == nil || rec.RawKey == "" {
		return "", ErrNoArchive
	}
	body, err := s.Store.Open(ctx, rec.RawKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoArchive
		}
		return "", fmt.Errorf("open archived response: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read archived response: %w", err)
	}
	return string(data), nil
}

func (s *Service) complete(ctx context.Context, m audit.Metrics) (string, llm.Usage, error) {
	client := s.LLM
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	var usage llm.Usage
	callCtx = llm.WithUsageSink(callCtx, &usage)

	start := time.Now()
	text, err := client.Complete(callCtx, llm.BuildRequest(m))
	metrics.ObserveLLMDurationMs(metrics.SinceMillis(start))
	if err != nil {
		metrics.IncLLMFailed()
		telemetry.Warn("llm.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"provider":   s.Provider,
			"model":      s.Model,
			"kind":       classifyUpstream(err),
			"error":      sanitizeError(err),
		})
	}
	return text, usage, err
}

func (s *Service) run(ctx context.Context, text string, upstreamErr error, m audit.Metrics) ingest.Outcome {
	start := time.Now()
	out := ingest.Ingest(text, upstreamErr, m)
	metrics.ObserveIngestDurationMs(metrics.SinceMillis(start))
	metrics.ObserveIngest(string(out.Stage), out.Truncated, string(out.Reason), out.RepairRules)

	fields := map[string]any{
		"request_id":   requestIDFromContext(ctx),
		"stage":        string(out.Stage),
		"truncated":    out.Truncated,
		"fallback":     out.Fallback,
		"repair_rules": nonNilRules(out.RepairRules),
		"problems":     len(out.Report.Problems),
	}
	if out.Fallback {
		fields["reason"] = string(out.Reason)
		fields["detail"] = sanitizeError(errors.New(out.Detail))
		telemetry.Warn("report.ingest", fields)
	} else {
		telemetry.Info("report.ingest", fields)
	}
	return out
}

// archive stores the raw response and the report JSON. Failures are logged
// and do not fail the request. It returns the key of the raw response, or ""
// when it was not stored.
func (s *Service) archive(ctx context.Context, rec Record, text string) string {
	if s.Store == nil {
		return ""
	}
	rawKey := ""
	if text != "" {
		key, err := object.ArchiveKey(rec.ID, object.ArtifactResponse)
		if err == nil {
			_, err = s.Store.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(text))
		}
		if err != nil {
			s.logArchiveError(ctx, rec.ID, object.ArtifactResponse, err)
		} else {
			rawKey = key
		}
	}

	payload, err := json.Marshal(rec.Report)
	if err == nil {
		var key string
		key, err = object.ArchiveKey(rec.ID, object.ArtifactReport)
		if err == nil {
			_, err = s.Store.Put(ctx, key, "application/json", bytes.NewReader(payload))
		}
	}
	if err != nil {
		s.logArchiveError(ctx, rec.ID, object.ArtifactReport, err)
	}
	return rawKey
}

func (s *Service) logArchiveError(ctx context.Context, reportID, artifact string, err error) {
	telemetry.Warn("report.archive_failed", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"report_id":  reportID,
		"artifact":   artifact,
		"error":      sanitizeError(err),
	})
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Service) id() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}

func classifyUpstream(err error) string {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(strings.ToLower(err.Error()), "timeout"):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func nonNilRules(rules []string) []string {
	if rules == nil {
		return []string{}
	}
	return rules
}
