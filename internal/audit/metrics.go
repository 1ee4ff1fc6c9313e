package audit

import (
	"errors"
	"math"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when the audited page URL is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("url must be an absolute http or https URL")

// Metrics is the numeric page-audit record produced by the collector.
// Timings are milliseconds except CLS (unitless); sizes are kilobytes.
type Metrics struct {
	URL        string         `json:"url"`
	Score      int            `json:"score"`
	Scores     CategoryScores `json:"scores"`
	Timings    Timings        `json:"timings"`
	Resources  Resources      `json:"resources"`
	Requests   Requests       `json:"requests"`
	MainThread MainThread     `json:"mainThread"`
	Audits     []AuditItem    `json:"audits"`
}

type CategoryScores struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"bestPractices"`
	SEO           int `json:"seo"`
}

type Timings struct {
	LCP        float64 `json:"lcp"`
	FID        float64 `json:"fid"`
	CLS        float64 `json:"cls"`
	FCP        float64 `json:"fcp"`
	TTI        float64 `json:"tti"`
	TBT        float64 `json:"tbt"`
	SpeedIndex float64 `json:"speedIndex"`
}

type Resources struct {
	JSTotalSize    int64 `json:"jsTotalSize"`
	CSSTotalSize   int64 `json:"cssTotalSize"`
	ImageTotalSize int64 `json:"imageTotalSize"`
	ThirdPartySize int64 `json:"thirdPartySize"`
	TotalSize      int64 `json:"totalSize"`
}

// Requests summarizes network requests. ThirdPartyRatio is a percentage (0-100).
type Requests struct {
	Total           int           `json:"total"`
	ThirdParty      int           `json:"thirdParty"`
	ThirdPartyRatio float64       `json:"thirdPartyRatio"`
	SlowRequests    []SlowRequest `json:"slowRequests"`
}

type SlowRequest struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Type     string  `json:"type"`
}

type MainThread struct {
	ScriptEvaluation float64 `json:"scriptEvaluation"`
	Layout           float64 `json:"layout"`
	Paint            float64 `json:"paint"`
	Style            float64 `json:"style"`
	Other            float64 `json:"other"`
}

// AuditItem is one collector audit. Score is nil for informative audits.
type AuditItem struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Score        *float64 `json:"score"`
	DisplayValue string   `json:"displayValue"`
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return ErrInvalidURL
	}
}

// PerformanceScore returns the performance category score, preferring the
// explicit category breakdown over the headline score.
func (m Metrics) PerformanceScore() int {
	if m.Scores.Performance > 0 {
		return ClampScore(m.Scores.Performance)
	}
	return ClampScore(m.Score)
}

// FailingAudits returns up to limit audits that were scored below 0.9.
func (m Metrics) FailingAudits(limit int) []AuditItem {
	out := make([]AuditItem, 0, limit)
	for _, a := range m.Audits {
		if len(out) >= limit {
			break
		}
		if a.Score == nil || *a.Score >= 0.9 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// TopSlowRequests returns the first n slow requests as recorded by the collector.
func (m Metrics) TopSlowRequests(n int) []SlowRequest {
	if len(m.Requests.SlowRequests) <= n {
		return m.Requests.SlowRequests
	}
	return m.Requests.SlowRequests[:n]
}

// Sanitized returns a copy with negative and non-finite figures clamped to zero
// and scores clamped to 0-100.
func (m Metrics) Sanitized() Metrics {
	out := m
	out.Score = ClampScore(m.Score)
	out.Scores = CategoryScores{
		Performance:   ClampScore(m.Scores.Performance),
		Accessibility: ClampScore(m.Scores.Accessibility),
		BestPractices: ClampScore(m.Scores.BestPractices),
		SEO:           ClampScore(m.Scores.SEO),
	}
	out.Timings = Timings{
		LCP:        nonNegative(m.Timings.LCP),
		FID:        nonNegative(m.Timings.FID),
		CLS:        nonNegative(m.Timings.CLS),
		FCP:        nonNegative(m.Timings.FCP),
		TTI:        nonNegative(m.Timings.TTI),
		TBT:        nonNegative(m.Timings.TBT),
		SpeedIndex: nonNegative(m.Timings.SpeedIndex),
	}
	out.Resources = Resources{
		JSTotalSize:    max(m.Resources.JSTotalSize, 0),
		CSSTotalSize:   max(m.Resources.CSSTotalSize, 0),
		ImageTotalSize: max(m.Resources.ImageTotalSize, 0),
		ThirdPartySize: max(m.Resources.ThirdPartySize, 0),
		TotalSize:      max(m.Resources.TotalSize, 0),
	}
	out.Requests.Total = max(m.Requests.Total, 0)
	out.Requests.ThirdParty = max(m.Requests.ThirdParty, 0)
	out.Requests.ThirdPartyRatio = nonNegative(m.Requests.ThirdPartyRatio)
	out.MainThread = MainThread{
		ScriptEvaluation: nonNegative(m.MainThread.ScriptEvaluation),
		Layout:           nonNegative(m.MainThread.Layout),
		Paint:            nonNegative(m.MainThread.Paint),
		Style:            nonNegative(m.MainThread.Style),
		Other:            nonNegative(m.MainThread.Other),
	}
	return out
}

// ClampScore bounds a category score to 0-100.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
