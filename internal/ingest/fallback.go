package ingest

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"perf-report-backend/internal/audit"
	"perf-report-backend/report/model"
)

//go:embed fallback_library.yaml
var fallbackLibraryYAML []byte

type problemText struct {
	Title      string `yaml:"title"`
	Impact     string `yaml:"impact"`
	Suggestion string `yaml:"suggestion"`
}

// fallbackLibrary is the canned, generically worded content of a fallback
// report. It is parsed once and never mutated.
type fallbackLibrary struct {
	Prediction   string                            `yaml:"prediction"`
	Bottlenecks  map[model.ProblemType]string      `yaml:"bottlenecks"`
	Problems     map[model.ProblemType]problemText `yaml:"problems"`
	RootCauses   []string                          `yaml:"rootCauses"`
	QuickWins    []string                          `yaml:"quickWins"`
	Suggestions  []model.Suggestion                `yaml:"suggestions"`
	CodeExamples []model.CodeExample               `yaml:"codeExamples"`
}

var library = mustLoadLibrary(fallbackLibraryYAML)

func mustLoadLibrary(raw []byte) fallbackLibrary {
	var lib fallbackLibrary
	if err := yaml.Unmarshal(raw, &lib); err != nil {
		panic(fmt.Sprintf("ingest: parse fallback library: %v", err))
	}
	for _, t := range model.ProblemTypes {
		if t == model.ProblemOther {
			continue
		}
		if _, ok := lib.Problems[t]; !ok {
			panic(fmt.Sprintf("ingest: fallback library has no problem text for %q", t))
		}
		if _, ok := lib.Bottlenecks[t]; !ok {
			panic(fmt.Sprintf("ingest: fallback library has no bottleneck for %q", t))
		}
	}
	if len(lib.Suggestions) == 0 || len(lib.CodeExamples) == 0 || len(lib.RootCauses) == 0 || len(lib.QuickWins) == 0 {
		panic("ingest: fallback library lists must not be empty")
	}
	return lib
}

// Improvement factors applied to the current value to project an after value.
var trendFactors = []struct {
	metric string
	factor float64
	value  func(audit.Timings) float64
}{
	{metric: "LCP", factor: 0.7, value: func(t audit.Timings) float64 { return t.LCP }},
	{metric: "TBT", factor: 0.6, value: func(t audit.Timings) float64 { return t.TBT }},
	{metric: "FCP", factor: 0.8, value: func(t audit.Timings) float64 { return t.FCP }},
}

var defaultDistribution = map[string]float64{
	string(model.ProblemScript):     40,
	string(model.ProblemImage):      30,
	string(model.ProblemNetwork):    20,
	string(model.ProblemRender):     10,
	string(model.ProblemThirdParty): 0,
}

// Synthesize builds a complete report from the audit metrics alone. It is
// deterministic and has no failure mode; out-of-range figures are clamped.
func Synthesize(m audit.Metrics) model.Report {
	m = m.Sanitized()
	problems := fallbackProblems(m)

	cards := make([]model.AICard, 0, len(problems))
	for _, p := range problems {
		conf := model.ConfidenceMedium
		if p.Severity == model.SeverityHigh {
			conf = model.ConfidenceHigh
		}
		cards = append(cards, model.AICard{Title: p.Title, Impact: p.Impact, Suggestion: p.Suggestion, Confidence: conf})
	}

	trends := make([]model.MetricTrend, 0, len(trendFactors))
	for _, tf := range trendFactors {
		before := tf.value(m.Timings)
		trends = append(trends, model.MetricTrend{Metric: tf.metric, Before: round1(before), After: round1(before * tf.factor)})
	}

	return model.Report{
		Summary: fallbackSummary(m, problems),
		Score: model.Score{
			Performance:   m.PerformanceScore(),
			Accessibility: m.Scores.Accessibility,
			BestPractices: m.Scores.BestPractices,
			SEO:           m.Scores.SEO,
		},
		Metrics:  fallbackMetrics(m.Timings),
		Problems: problems,
		Insights: model.Insights{
			MainBottleneck: library.Bottlenecks[mainBottleneck(problems)],
			RootCauses:     append([]string(nil), library.RootCauses...),
			QuickWins:      append([]string(nil), library.QuickWins...),
		},
		Suggestions:  append([]model.Suggestion(nil), library.Suggestions...),
		CodeExamples: append([]model.CodeExample(nil), library.CodeExamples...),
		Visualization: model.Visualization{
			MetricTrends:           trends,
			BottleneckDistribution: distribution(m.Resources),
			AICards:                cards,
		},
		Prediction: strings.TrimSpace(library.Prediction),
	}
}

// fallbackProblems applies the threshold rules. Script and network problems are
// always reported; the others only when their thresholds are crossed.
func fallbackProblems(m audit.Metrics) []model.Problem {
	t, r := m.Timings, m.Resources
	var out []model.Problem

	sev := model.SeverityMedium
	if t.TBT > audit.TBTThreshold.Poor {
		sev = model.SeverityHigh
	}
	out = append(out, problemFrom(model.ProblemScript, sev, map[string]string{"value": formatMillis(t.TBT)}))

	sev = model.SeverityMedium
	if r.TotalSize > audit.TotalSizeBudgetKB {
		sev = model.SeverityHigh
	}
	out = append(out, problemFrom(model.ProblemNetwork, sev, map[string]string{"value": formatKB(r.TotalSize)}))

	lcpPoor := t.LCP > audit.LCPThreshold.Poor
	imagesHeavy := r.ImageTotalSize > audit.ImageBudgetKB
	if lcpPoor || imagesHeavy {
		sev = model.SeverityMedium
		if lcpPoor && imagesHeavy {
			sev = model.SeverityHigh
		}
		out = append(out, problemFrom(model.ProblemImage, sev, map[string]string{
			"value": formatKB(r.ImageTotalSize),
			"lcp":   formatMillis(t.LCP),
		}))
	}

	if t.CLS > audit.CLSThreshold.Good {
		sev = model.SeverityMedium
		if t.CLS > audit.CLSThreshold.Poor {
			sev = model.SeverityHigh
		}
		out = append(out, problemFrom(model.ProblemRender, sev, map[string]string{"value": formatCLS(t.CLS)}))
	}

	ratio := m.Requests.ThirdPartyRatio
	if ratio > audit.ThirdPartyRatioBudget || r.ThirdPartySize > audit.ThirdPartyBudgetKB {
		out = append(out, problemFrom(model.ProblemThirdParty, model.SeverityMedium, map[string]string{
			"value": fmt.Sprintf("%.1f%%", ratio),
			"size":  formatKB(r.ThirdPartySize),
		}))
	}
	return out
}

func problemFrom(t model.ProblemType, sev model.Severity, vars map[string]string) model.Problem {
	txt := library.Problems[t]
	impact := txt.Impact
	for k, v := range vars {
		impact = strings.ReplaceAll(impact, "{"+k+"}", v)
	}
	return model.Problem{Type: t, Title: txt.Title, Severity: sev, Impact: impact, Suggestion: txt.Suggestion}
}

// mainBottleneck is the first high-severity problem, else the first problem.
func mainBottleneck(problems []model.Problem) model.ProblemType {
	for _, p := range problems {
		if p.Severity == model.SeverityHigh {
			return p.Type
		}
	}
	return problems[0].Type
}

func fallbackSummary(m audit.Metrics, problems []model.Problem) string {
	page := m.URL
	if blank(page) {
		page = "the page"
	}
	high := 0
	for _, p := range problems {
		if p.Severity == model.SeverityHigh {
			high++
		}
	}
	return fmt.Sprintf(
		"Automated analysis of %s: performance score %d/100. %d problems were found, %d of them high severity. "+
			"This report was derived from the audit metrics because the model response was unavailable.",
		page, m.PerformanceScore(), len(problems), high)
}

// fallbackMetrics rates every timing that has data. CLS is always reported
// since zero is a real value for it.
func fallbackMetrics(t audit.Timings) map[string]string {
	out := map[string]string{
		"CLS": rated(formatCLS(t.CLS), audit.CLSThreshold.Rate(t.CLS)),
	}
	if t.LCP > 0 {
		out["LCP"] = rated(formatMillis(t.LCP), audit.LCPThreshold.Rate(t.LCP))
	}
	if t.FID > 0 {
		out["FID"] = rated(formatMillis(t.FID), audit.FIDThreshold.Rate(t.FID))
	}
	if t.FCP > 0 {
		out["FCP"] = rated(formatMillis(t.FCP), audit.FCPThreshold.Rate(t.FCP))
	}
	if t.TBT > 0 {
		out["TBT"] = rated(formatMillis(t.TBT), audit.TBTThreshold.Rate(t.TBT))
	}
	if t.SpeedIndex > 0 {
		out["SpeedIndex"] = rated(formatMillis(t.SpeedIndex), audit.SpeedIndexThreshold.Rate(t.SpeedIndex))
	}
	if t.TTI > 0 {
		out["TTI"] = formatMillis(t.TTI)
	}
	return out
}

func rated(value string, r audit.Rating) string {
	return value + " (" + string(r) + ")"
}

// distribution splits 90% across resource weights and keeps 10% for
// rendering. Without any size data the default split is used.
func distribution(r audit.Resources) map[string]float64 {
	network := r.TotalSize - r.JSTotalSize - r.ImageTotalSize - r.ThirdPartySize
	if network < 0 {
		network = 0
	}
	parts := map[model.ProblemType]int64{
		model.ProblemScript:     r.JSTotalSize,
		model.ProblemImage:      r.ImageTotalSize,
		model.ProblemNetwork:    network,
		model.ProblemThirdParty: r.ThirdPartySize,
	}
	var sum int64
	for _, v := range parts {
		sum += v
	}
	if sum == 0 {
		out := make(map[string]float64, len(defaultDistribution))
		for k, v := range defaultDistribution {
			out[k] = v
		}
		return out
	}
	out := map[string]float64{string(model.ProblemRender): 10}
	for k, v := range parts {
		out[string(k)] = round1(90 * float64(v) / float64(sum))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatMillis(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.1f s", v/1000)
	}
	return fmt.Sprintf("%.0f ms", v)
}

func formatKB(v int64) string {
	return fmt.Sprintf("%d KB", v)
}

func formatCLS(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
