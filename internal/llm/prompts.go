package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"perf-report-backend/internal/audit"
)

//go:embed prompts/system.txt
var systemPrompt string

const (
	slowRequestLimit  = 5
	failingAuditLimit = 10
)

// SystemPrompt returns the report schema instructions sent with every request.
func SystemPrompt() string {
	return systemPrompt
}

// BuildRequest renders the audit into a model request.
func BuildRequest(m audit.Metrics) Request {
	return Request{System: systemPrompt, User: BuildUserPrompt(m)}
}

// BuildUserPrompt renders the audit figures the model is asked to analyze.
func BuildUserPrompt(m audit.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this page audit.\n\nURL: %s\nPerformance score: %d/100\n", m.URL, m.PerformanceScore())
	fmt.Fprintf(&b, "Category scores: accessibility %d, best practices %d, SEO %d\n",
		m.Scores.Accessibility, m.Scores.BestPractices, m.Scores.SEO)

	b.WriteString("\nKey metrics:\n")
	fmt.Fprintf(&b, "- LCP (largest contentful paint): %s\n", millis(m.Timings.LCP))
	fmt.Fprintf(&b, "- FID (first input delay): %s\n", millis(m.Timings.FID))
	fmt.Fprintf(&b, "- CLS (cumulative layout shift): %s\n", unitless(m.Timings.CLS))
	fmt.Fprintf(&b, "- FCP (first contentful paint): %s\n", millis(m.Timings.FCP))
	fmt.Fprintf(&b, "- TBT (total blocking time): %s\n", millis(m.Timings.TBT))
	fmt.Fprintf(&b, "- TTI (time to interactive): %s\n", millis(m.Timings.TTI))
	fmt.Fprintf(&b, "- Speed Index: %s\n", millis(m.Timings.SpeedIndex))

	b.WriteString("\nResource sizes:\n")
	fmt.Fprintf(&b, "- JavaScript: %d KB\n", m.Resources.JSTotalSize)
	fmt.Fprintf(&b, "- CSS: %d KB\n", m.Resources.CSSTotalSize)
	fmt.Fprintf(&b, "- Images: %d KB\n", m.Resources.ImageTotalSize)
	fmt.Fprintf(&b, "- Third party: %d KB\n", m.Resources.ThirdPartySize)
	fmt.Fprintf(&b, "- Total: %d KB\n", m.Resources.TotalSize)

	b.WriteString("\nRequests:\n")
	fmt.Fprintf(&b, "- Total: %d\n", m.Requests.Total)
	fmt.Fprintf(&b, "- Third party: %d (%.0f%%)\n", m.Requests.ThirdParty, m.Requests.ThirdPartyRatio)

	b.WriteString("\nMain thread:\n")
	fmt.Fprintf(&b, "- Script evaluation: %.0f ms\n", m.MainThread.ScriptEvaluation)
	fmt.Fprintf(&b, "- Layout: %.0f ms\n", m.MainThread.Layout)
	fmt.Fprintf(&b, "- Paint: %.0f ms\n", m.MainThread.Paint)
	fmt.Fprintf(&b, "- Style: %.0f ms\n", m.MainThread.Style)

	if slow := m.TopSlowRequests(slowRequestLimit); len(slow) > 0 {
		fmt.Fprintf(&b, "\nSlowest requests (top %d):\n", slowRequestLimit)
		for i, r := range slow {
			fmt.Fprintf(&b, "%d. %s (%.0f ms, %s)\n", i+1, r.URL, r.Duration, r.Type)
		}
	}

	if failing := m.FailingAudits(failingAuditLimit); len(failing) > 0 {
		b.WriteString("\nFailing audits:\n")
		for _, a := range failing {
			display := a.DisplayValue
			if strings.TrimSpace(display) == "" {
				display = "failed"
			}
			fmt.Fprintf(&b, "- %s: %s (score %.2f)\n", a.Title, display, *a.Score)
		}
	}

	b.WriteString("\nReturn the report as a single JSON object.\n")
	return b.String()
}

func millis(v float64) string {
	if v <= 0 {
		return "no data"
	}
	return fmt.Sprintf("%.0f ms", v)
}

func unitless(v float64) string {
	if v <= 0 {
		return "no data"
	}
	return fmt.Sprintf("%.3f", v)
}
