package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"perf-report-backend/report/model"
)

var severityOrder = []struct {
	level  model.Severity
	header string
}{
	{model.SeverityHigh, "High severity"},
	{model.SeverityMedium, "Medium severity"},
	{model.SeverityLow, "Low severity"},
}

// RenderMarkdown renders the report for url into a Markdown document.
func RenderMarkdown(url string, report model.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Markdown(&buf, url, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Markdown writes the report for url to w.
func Markdown(w io.Writer, url string, report model.Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("Performance Report")
	if strings.TrimSpace(url) != "" {
		md.PlainTextf("Page: %s", markdown.Code(url))
	}
	md.PlainText("")

	writeSummary(md, report)
	writeScores(md, report.Score)
	writeMetrics(md, report.Metrics)
	writeProblems(md, report.Problems)
	writeInsights(md, report.Insights)
	writeSuggestions(md, report.Suggestions)
	writeCodeExamples(md, report.CodeExamples)
	writeVisualization(md, report.Visualization)

	md.H2("Prediction")
	md.PlainText(report.Prediction)
	md.PlainText("")

	if err := md.Build(); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return nil
}

func writeSummary(md *markdown.Markdown, report model.Report) {
	md.H2("Summary")
	for _, para := range strings.Split(report.Summary, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		md.PlainText(strings.TrimSpace(para))
		md.PlainText("")
	}
}

func writeScores(md *markdown.Markdown, score model.Score) {
	md.H2("Scores")
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Score"},
		Rows: [][]string{
			{"Performance", strconv.Itoa(score.Performance)},
			{"Accessibility", strconv.Itoa(score.Accessibility)},
			{"Best practices", strconv.Itoa(score.BestPractices)},
			{"SEO", strconv.Itoa(score.SEO)},
		},
	})
	md.PlainText("")

	switch {
	case score.Performance < 50:
		md.Cautionf("Performance score is %d. The page is slow for most visitors.", score.Performance)
	case score.Performance < 90:
		md.Warningf("Performance score is %d. There is room for improvement.", score.Performance)
	default:
		md.Tip("The page meets the performance target.")
	}
	md.PlainText("")
}

func writeMetrics(md *markdown.Markdown, metrics map[string]string) {
	if len(metrics) == 0 {
		return
	}
	md.H2("Metrics")
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{cell(k), cell(metrics[k])})
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Value"}, Rows: rows})
	md.PlainText("")
}

func writeProblems(md *markdown.Markdown, problems []model.Problem) {
	md.H2("Problems")
	if len(problems) == 0 {
		md.PlainText("No problems were reported.")
		md.PlainText("")
		return
	}
	for _, sev := range severityOrder {
		var rows [][]string
		for _, p := range problems {
			if p.Severity != sev.level {
				continue
			}
			rows = append(rows, []string{cell(p.Title), string(p.Type), cell(p.Impact), cell(p.Suggestion)})
		}
		if len(rows) == 0 {
			continue
		}
		md.H3(sev.header)
		md.Table(markdown.TableSet{
			Header: []string{"Problem", "Type", "Impact", "Suggestion"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func writeInsights(md *markdown.Markdown, insights model.Insights) {
	md.H2("Insights")
	md.PlainTextf("%s %s", markdown.Bold("Main bottleneck:"), insights.MainBottleneck)
	md.PlainText("")
	if len(insights.RootCauses) > 0 {
		md.H3("Root causes")
		md.BulletList(insights.RootCauses...)
		md.PlainText("")
	}
	if len(insights.QuickWins) > 0 {
		md.H3("Quick wins")
		md.OrderedList(insights.QuickWins...)
		md.PlainText("")
	}
}

func writeSuggestions(md *markdown.Markdown, suggestions []model.Suggestion) {
	if len(suggestions) == 0 {
		return
	}
	md.H2("Suggestions")
	for i, s := range suggestions {
		md.H3(fmt.Sprintf("%d. %s", i+1, s.Title))
		md.PlainText(s.Desc)
		md.PlainText("")
		md.PlainTextf("%s %s", markdown.Bold("Category:"), s.Category)
		md.PlainText("")
		md.PlainTextf("%s %s", markdown.Bold("Benefit:"), s.Benefit)
		md.PlainText("")
		md.CodeBlocks(codeLanguage(s.Category), s.Code)
		md.PlainText("")
	}
}

func writeCodeExamples(md *markdown.Markdown, examples []model.CodeExample) {
	if len(examples) == 0 {
		return
	}
	md.H2("Code examples")
	for _, ex := range examples {
		md.H3(fmt.Sprintf("%s: %s", ex.Type, ex.Desc))
		md.CodeBlocks(codeLanguage(ex.Type), ex.Code)
		md.PlainText("")
	}
}

func writeVisualization(md *markdown.Markdown, vis model.Visualization) {
	if len(vis.MetricTrends) > 0 {
		md.H2("Expected metric changes")
		rows := make([][]string, 0, len(vis.MetricTrends))
		for _, t := range vis.MetricTrends {
			rows = append(rows, []string{cell(t.Metric), formatNumber(t.Before), formatNumber(t.After)})
		}
		md.Table(markdown.TableSet{Header: []string{"Metric", "Before", "After"}, Rows: rows})
		md.PlainText("")
	}

	if chart, ok := distributionChart(vis.BottleneckDistribution); ok {
		md.H2("Bottleneck distribution")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart)
		md.PlainText("")
	}

	if len(vis.AICards) > 0 {
		md.H2("Highlights")
		rows := make([][]string, 0, len(vis.AICards))
		for _, c := range vis.AICards {
			rows = append(rows, []string{cell(c.Title), cell(c.Impact), cell(c.Suggestion), string(c.Confidence)})
		}
		md.Table(markdown.TableSet{Header: []string{"Finding", "Impact", "Suggestion", "Confidence"}, Rows: rows})
		md.PlainText("")
	}
}

// distributionChart renders the non-zero shares as a mermaid pie chart.
// Known problem types come first in their canonical order.
func distributionChart(dist map[string]float64) (string, bool) {
	labels := make([]string, 0, len(dist))
	seen := map[string]bool{}
	for _, t := range model.ProblemTypes {
		if _, ok := dist[string(t)]; ok {
			labels = append(labels, string(t))
			seen[string(t)] = true
		}
	}
	var rest []string
	for k := range dist {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	labels = append(labels, rest...)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Bottleneck distribution"),
		piechart.WithShowData(true),
	)
	drawn := false
	for _, label := range labels {
		v := math.Round(dist[label])
		if v <= 0 {
			continue
		}
		chart.LabelAndIntValue(label, uint64(v))
		drawn = true
	}
	if !drawn {
		return "", false
	}
	return chart.String(), true
}

func codeLanguage(kind string) markdown.SyntaxHighlight {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "vue":
		return "vue"
	case "react", "jsx":
		return "jsx"
	case "vite", "webpack", "express", "node", "javascript", "js", "script":
		return "js"
	case "typescript", "ts":
		return "ts"
	case "html":
		return "html"
	case "css", "render":
		return "css"
	case "nginx":
		return "nginx"
	default:
		return ""
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
