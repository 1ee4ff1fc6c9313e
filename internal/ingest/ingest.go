package ingest

import (
	"fmt"

	"perf-report-backend/internal/audit"
	"perf-report-backend/report/model"
)

// FallbackReason explains why a report was synthesized instead of parsed.
type FallbackReason string

const (
	ReasonNone        FallbackReason = ""
	ReasonUpstream    FallbackReason = "upstream"
	ReasonUnparseable FallbackReason = "unparseable"
	ReasonPanic       FallbackReason = "panic"
)

// Outcome is the result of one ingestion. Report is always complete.
type Outcome struct {
	Report      model.Report
	Stage       Stage
	Truncated   bool
	Fallback    bool
	Reason      FallbackReason
	RepairRules []string
	// Detail carries the upstream error, the last parse error or the panic
	// value for logging. It is never shown to end users.
	Detail string
}

// Ingest converts a model response into a report. An upstream error, blank
// text or text no cascade stage can parse yields the fallback report for m.
func Ingest(text string, upstreamErr error, m audit.Metrics) (out Outcome) {
	if upstreamErr != nil {
		return fallbackOutcome(m, ReasonUpstream, upstreamErr.Error())
	}
	if blank(text) {
		return fallbackOutcome(m, ReasonUpstream, errBlankInput.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			out = fallbackOutcome(m, ReasonPanic, fmt.Sprint(r))
		}
	}()

	res := Parse(text)
	if res.Stage == StageFailed {
		out = fallbackOutcome(m, ReasonUnparseable, lastError(res.Errors))
		out.RepairRules = res.Rules
		return out
	}

	clean := m.Sanitized()
	n := Normalizer{Baseline: model.Score{
		Performance:   clean.PerformanceScore(),
		Accessibility: clean.Scores.Accessibility,
		BestPractices: clean.Scores.BestPractices,
		SEO:           clean.Scores.SEO,
	}}
	return Outcome{
		Report:      n.Normalize(res.Document),
		Stage:       res.Stage,
		Truncated:   res.Truncated,
		RepairRules: res.Rules,
	}
}

func fallbackOutcome(m audit.Metrics, reason FallbackReason, detail string) Outcome {
	return Outcome{
		Report:   Synthesize(m),
		Stage:    StageFailed,
		Fallback: true,
		Reason:   reason,
		Detail:   detail,
	}
}

func lastError(errs []StageError) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[len(errs)-1].Error()
}
