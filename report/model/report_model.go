package model

import (
	"errors"
	"fmt"
	"strings"
)

// ProblemType classifies where a performance problem originates.
type ProblemType string

const (
	ProblemScript     ProblemType = "script"
	ProblemImage      ProblemType = "image"
	ProblemNetwork    ProblemType = "network"
	ProblemRender     ProblemType = "render"
	ProblemThirdParty ProblemType = "third-party"
	ProblemOther      ProblemType = "other"
)

// Severity ranks a problem.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Confidence ranks an AI card.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Report is the validated optimization report handed to renderers.
type Report struct {
	Summary       string            `json:"summary"`
	Score         Score             `json:"score"`
	Metrics       map[string]string `json:"metrics"`
	Problems      []Problem         `json:"problems"`
	Insights      Insights          `json:"insights"`
	Suggestions   []Suggestion      `json:"suggestions"`
	CodeExamples  []CodeExample     `json:"codeExamples"`
	Visualization Visualization     `json:"visualization"`
	Prediction    string            `json:"prediction"`
}

// Score holds the four category scores, each 0-100.
type Score struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"bestPractices"`
	SEO           int `json:"seo"`
}

type Problem struct {
	Type       ProblemType `json:"type"`
	Title      string      `json:"title"`
	Severity   Severity    `json:"severity"`
	Impact     string      `json:"impact"`
	Suggestion string      `json:"suggestion"`
}

type Insights struct {
	MainBottleneck string   `json:"mainBottleneck"`
	RootCauses     []string `json:"rootCauses"`
	QuickWins      []string `json:"quickWins"`
}

type Suggestion struct {
	Title    string `json:"title"`
	Desc     string `json:"desc"`
	Category string `json:"category"`
	Code     string `json:"code"`
	Benefit  string `json:"benefit"`
}

type CodeExample struct {
	Type string `json:"type"`
	Desc string `json:"desc"`
	Code string `json:"code"`
}

type Visualization struct {
	MetricTrends           []MetricTrend      `json:"metricTrends"`
	BottleneckDistribution map[string]float64 `json:"bottleneckDistribution"`
	AICards                []AICard           `json:"aiCards"`
}

type MetricTrend struct {
	Metric string  `json:"metric"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

type AICard struct {
	Title      string     `json:"title"`
	Impact     string     `json:"impact"`
	Suggestion string     `json:"suggestion"`
	Confidence Confidence `json:"confidence"`
}

// ProblemTypes lists every accepted problem type.
var ProblemTypes = []ProblemType{ProblemScript, ProblemImage, ProblemNetwork, ProblemRender, ProblemThirdParty, ProblemOther}

// Valid reports whether t is a known problem type.
func (t ProblemType) Valid() bool {
	for _, known := range ProblemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Complete reports whether every mandatory problem field is non-blank.
func (p Problem) Complete() bool {
	return !blank(string(p.Type)) &&
		!blank(p.Title) &&
		!blank(string(p.Severity)) &&
		!blank(p.Impact) &&
		!blank(p.Suggestion)
}

// Validate enforces the structural guarantees renderers rely on: no nil
// collections, no blank prose, scores in range and enum values known.
func (r Report) Validate() error {
	if blank(r.Summary) {
		return errors.New("summary is required")
	}
	if blank(r.Prediction) {
		return errors.New("prediction is required")
	}
	for name, v := range map[string]int{
		"performance":   r.Score.Performance,
		"accessibility": r.Score.Accessibility,
		"bestPractices": r.Score.BestPractices,
		"seo":           r.Score.SEO,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("score.%s out of range: %d", name, v)
		}
	}
	if r.Metrics == nil {
		return errors.New("metrics must not be nil")
	}
	for k, v := range r.Metrics {
		if blank(k) || blank(v) {
			return fmt.Errorf("metrics[%q] is blank", k)
		}
	}
	if r.Problems == nil {
		return errors.New("problems must not be nil")
	}
	for i, p := range r.Problems {
		if !p.Complete() {
			return fmt.Errorf("problems[%d] is incomplete", i)
		}
		if !p.Type.Valid() {
			return fmt.Errorf("problems[%d].type %q is unknown", i, p.Type)
		}
		if !p.Severity.Valid() {
			return fmt.Errorf("problems[%d].severity %q is unknown", i, p.Severity)
		}
	}
	if blank(r.Insights.MainBottleneck) {
		return errors.New("insights.mainBottleneck is required")
	}
	if r.Insights.RootCauses == nil || r.Insights.QuickWins == nil {
		return errors.New("insights lists must not be nil")
	}
	if r.Suggestions == nil {
		return errors.New("suggestions must not be nil")
	}
	for i, s := range r.Suggestions {
		if blank(s.Title) || blank(s.Desc) || blank(s.Category) || blank(s.Code) || blank(s.Benefit) {
			return fmt.Errorf("suggestions[%d] is incomplete", i)
		}
	}
	if r.CodeExamples == nil {
		return errors.New("codeExamples must not be nil")
	}
	for i, ex := range r.CodeExamples {
		if blank(ex.Type) || blank(ex.Desc) || blank(ex.Code) {
			return fmt.Errorf("codeExamples[%d] is incomplete", i)
		}
	}
	v := r.Visualization
	if v.MetricTrends == nil || v.BottleneckDistribution == nil || v.AICards == nil {
		return errors.New("visualization collections must not be nil")
	}
	for i, card := range v.AICards {
		if blank(card.Title) || blank(card.Impact) || blank(card.Suggestion) {
			return fmt.Errorf("visualization.aiCards[%d] is incomplete", i)
		}
		if !card.Confidence.Valid() {
			return fmt.Errorf("visualization.aiCards[%d].confidence %q is unknown", i, card.Confidence)
		}
	}
	for i, trend := range v.MetricTrends {
		if blank(trend.Metric) {
			return fmt.Errorf("visualization.metricTrends[%d].metric is blank", i)
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
