package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"perf-report-backend/report/model"
)

const (
	DefaultSummary        = "Performance analysis completed."
	DefaultPrediction     = "Applying the suggested optimizations should raise the performance score by roughly 15-25%."
	DefaultMainBottleneck = "No dominant bottleneck was identified."
	DefaultCategory       = "general"
	DefaultCode           = "// No code sample provided."
	DefaultBenefit        = "Benefit not quantified."
	DefaultExampleType    = "general"
	DefaultExampleDesc    = "Code example"
)

// Normalizer turns a parsed candidate document into a complete Report. It is
// total: any document shape yields a valid report.
type Normalizer struct {
	// Baseline supplies scores the document does not carry.
	Baseline model.Score
}

// Normalize fills defaults, drops incomplete list entries and coerces
// numeric-looking fields.
func (n Normalizer) Normalize(doc map[string]any) model.Report {
	vis := asMap(pick(doc, "visualization"))
	chart := asMap(pick(vis, "chartData", "chart_data"))

	return model.Report{
		Summary:      stringOr(pick(doc, "summary"), DefaultSummary),
		Score:        n.score(pick(doc, "score", "scores")),
		Metrics:      normalizeMetrics(asMap(pick(doc, "metrics"))),
		Problems:     normalizeProblems(asList(pick(doc, "problems"))),
		Insights:     normalizeInsights(asMap(pick(doc, "insights", "aiInsights", "ai_insights"))),
		Suggestions:  normalizeSuggestions(asList(pick(doc, "suggestions"))),
		CodeExamples: normalizeCodeExamples(asList(pick(doc, "codeExamples", "code_examples"))),
		Visualization: model.Visualization{
			MetricTrends: normalizeTrends(asList(firstPresent(
				pick(vis, "metricTrends", "metric_trends"),
				pick(chart, "metricTrends", "metric_trends"),
			))),
			BottleneckDistribution: normalizeDistribution(asMap(firstPresent(
				pick(vis, "bottleneckDistribution", "bottleneck_distribution"),
				pick(chart, "bottleneckDistribution", "bottleneck_distribution"),
			))),
			AICards: normalizeCards(asList(firstPresent(
				pick(vis, "aiCards", "ai_cards"),
				pick(chart, "aiCards", "ai_cards"),
			))),
		},
		Prediction: stringOr(pick(doc, "prediction"), DefaultPrediction),
	}
}

func (n Normalizer) score(v any) model.Score {
	out := model.Score{
		Performance:   clampScore(float64(n.Baseline.Performance)),
		Accessibility: clampScore(float64(n.Baseline.Accessibility)),
		BestPractices: clampScore(float64(n.Baseline.BestPractices)),
		SEO:           clampScore(float64(n.Baseline.SEO)),
	}
	if f, ok := number(v); ok {
		out.Performance = clampScore(f)
		return out
	}
	m := asMap(v)
	if f, ok := number(pick(m, "performance")); ok {
		out.Performance = clampScore(f)
	}
	if f, ok := number(pick(m, "accessibility")); ok {
		out.Accessibility = clampScore(f)
	}
	if f, ok := number(pick(m, "bestPractices", "best-practices", "best_practices")); ok {
		out.BestPractices = clampScore(f)
	}
	if f, ok := number(pick(m, "seo", "SEO")); ok {
		out.SEO = clampScore(f)
	}
	return out
}

func clampScore(f float64) int {
	r := math.Round(f)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return int(r)
}

func normalizeMetrics(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if blank(k) {
			continue
		}
		if s, ok := scalarText(v); ok {
			out[k] = s
			continue
		}
		// {"value": "2.1 s", "description": "..."}
		if obj := asMap(v); obj != nil {
			val, ok := scalarText(pick(obj, "value"))
			if !ok {
				continue
			}
			if desc, ok := text(pick(obj, "description", "explanation", "desc")); ok {
				val += " (" + desc + ")"
			}
			out[k] = val
		}
	}
	return out
}

func normalizeProblems(list []any) []model.Problem {
	out := make([]model.Problem, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		typ, ok1 := text(pick(m, "type"))
		title, ok2 := text(pick(m, "title"))
		sev, ok3 := text(pick(m, "severity"))
		impact, ok4 := text(pick(m, "impact"))
		sugg, ok5 := text(pick(m, "suggestion"))
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		out = append(out, model.Problem{
			Type:       ParseProblemType(typ),
			Title:      title,
			Severity:   ParseSeverity(sev),
			Impact:     impact,
			Suggestion: sugg,
		})
	}
	return out
}

var problemTypeAliases = map[string]model.ProblemType{
	"js":          model.ProblemScript,
	"javascript":  model.ProblemScript,
	"images":      model.ProblemImage,
	"thirdparty":  model.ProblemThirdParty,
	"third-party": model.ProblemThirdParty,
	"rendering":   model.ProblemRender,
	"脚本":          model.ProblemScript,
	"图片":          model.ProblemImage,
	"网络":          model.ProblemNetwork,
	"渲染":          model.ProblemRender,
	"第三方":         model.ProblemThirdParty,
}

// ParseProblemType maps free-form type labels to a known type. Unknown labels
// become other.
func ParseProblemType(s string) model.ProblemType {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("_", "-", " ", "-").Replace(k)
	if t := model.ProblemType(k); t.Valid() {
		return t
	}
	if t, ok := problemTypeAliases[k]; ok {
		return t
	}
	return model.ProblemOther
}

// ParseSeverity maps free-form severity labels. Unknown labels become medium.
func ParseSeverity(s string) model.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "severe", "高":
		return model.SeverityHigh
	case "low", "minor", "低":
		return model.SeverityLow
	default:
		return model.SeverityMedium
	}
}

// ParseConfidence maps free-form confidence labels. Unknown labels become medium.
func ParseConfidence(s string) model.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "高":
		return model.ConfidenceHigh
	case "low", "低":
		return model.ConfidenceLow
	default:
		return model.ConfidenceMedium
	}
}

func normalizeInsights(m map[string]any) model.Insights {
	return model.Insights{
		MainBottleneck: stringOr(pick(m, "mainBottleneck", "main_bottleneck"), DefaultMainBottleneck),
		RootCauses:     stringList(pick(m, "rootCauses", "root_causes")),
		QuickWins:      stringList(pick(m, "quickWins", "quick_wins")),
	}
}

func normalizeSuggestions(list []any) []model.Suggestion {
	out := make([]model.Suggestion, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		title, ok1 := text(pick(m, "title"))
		desc, ok2 := text(pick(m, "desc", "description"))
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, model.Suggestion{
			Title:    title,
			Desc:     desc,
			Category: stringOr(pick(m, "category"), DefaultCategory),
			Code:     stringOr(pick(m, "code"), DefaultCode),
			Benefit:  stringOr(pick(m, "benefit"), DefaultBenefit),
		})
	}
	return out
}

func normalizeCodeExamples(list []any) []model.CodeExample {
	out := make([]model.CodeExample, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		code, ok := text(pick(m, "code"))
		if !ok {
			continue
		}
		out = append(out, model.CodeExample{
			Type: stringOr(pick(m, "type", "language"), DefaultExampleType),
			Desc: stringOr(pick(m, "desc", "description"), DefaultExampleDesc),
			Code: code,
		})
	}
	return out
}

func normalizeTrends(list []any) []model.MetricTrend {
	out := make([]model.MetricTrend, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		name, ok := text(pick(m, "metric", "name"))
		if !ok {
			continue
		}
		before, ok1 := number(pick(m, "before"))
		after, ok2 := number(pick(m, "after"))
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, model.MetricTrend{Metric: name, Before: before, After: after})
	}
	return out
}

func normalizeDistribution(m map[string]any) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if blank(k) {
			continue
		}
		if f, ok := number(v); ok {
			out[k] = f
		}
	}
	return out
}

func normalizeCards(list []any) []model.AICard {
	out := make([]model.AICard, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		title, ok1 := text(pick(m, "title"))
		impact, ok2 := text(pick(m, "impact"))
		sugg, ok3 := text(pick(m, "suggestion"))
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		conf, _ := text(pick(m, "confidence"))
		out = append(out, model.AICard{
			Title:      title,
			Impact:     impact,
			Suggestion: sugg,
			Confidence: ParseConfidence(conf),
		})
	}
	return out
}

// pick returns the first non-nil value stored under one of keys.
func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstPresent(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// text returns v when it is a non-blank string.
func text(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || blank(s) {
		return "", false
	}
	return s, true
}

func stringOr(v any, def string) string {
	if s, ok := text(v); ok {
		return s
	}
	return def
}

// scalarText renders strings, numbers and booleans as display text.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, !blank(t)
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func stringList(v any) []string {
	if s, ok := text(v); ok {
		return []string{s}
	}
	list := asList(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := text(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// number accepts JSON numbers and numeric strings such as "72" or "40%".
func number(v any) (float64, bool) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
