package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"perf-report-backend/internal/audit"
)

func TestConfigWithDefaults(t *testing.T) {
	tests := []struct {
		name    string
		in      Config
		model   string
		baseURL string
	}{
		{name: "empty", in: Config{}, model: DefaultModel, baseURL: DefaultBaseURL},
		{name: "openai", in: Config{Provider: " OpenAI "}, model: "gpt-4o-mini", baseURL: "https://api.openai.com/v1"},
		{name: "gemini", in: Config{Provider: "gemini"}, model: DefaultGeminiModel, baseURL: ""},
		{name: "custom", in: Config{Model: "deepseek-reasoner", BaseURL: "http://proxy.local/"}, model: "deepseek-reasoner", baseURL: "http://proxy.local"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.WithDefaults()
			if got.Model != tt.model || got.BaseURL != tt.baseURL {
				t.Fatalf("got model=%q base=%q", got.Model, got.BaseURL)
			}
			if got.Timeout != DefaultTimeout || got.MaxTokens != DefaultMaxTokens || got.Temperature != DefaultTemperature {
				t.Fatalf("defaults not applied: %+v", got)
			}
		})
	}
}

func TestConfigKeepsExplicitLimits(t *testing.T) {
	got := Config{Timeout: 5 * time.Second, Temperature: 0.2, MaxTokens: 100}.WithDefaults()
	if got.Timeout != 5*time.Second || got.Temperature != 0.2 || got.MaxTokens != 100 {
		t.Fatalf("explicit values overwritten: %+v", got)
	}
}

func TestPlaceholderClient(t *testing.T) {
	_, err := PlaceholderClient{}.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestUsageSink(t *testing.T) {
	if _, ok := UsageSinkFromContext(context.Background()); ok {
		t.Fatalf("unexpected sink")
	}
	var u Usage
	sink, ok := UsageSinkFromContext(WithUsageSink(context.Background(), &u))
	if !ok || sink != &u {
		t.Fatalf("sink not returned")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	low, high, info := 0.3, 0.95, (*float64)(nil)
	m := audit.Metrics{
		URL:       "https://shop.example.com",
		Scores:    audit.CategoryScores{Performance: 41, Accessibility: 80},
		Timings:   audit.Timings{LCP: 4210.4, CLS: 0.12},
		Resources: audit.Resources{JSTotalSize: 900, TotalSize: 2500},
		Requests: audit.Requests{Total: 80, ThirdParty: 20, ThirdPartyRatio: 25, SlowRequests: []audit.SlowRequest{
			{URL: "https://cdn.example.com/1.js", Duration: 900, Type: "script"},
			{URL: "https://cdn.example.com/2.js", Duration: 800, Type: "script"},
			{URL: "https://cdn.example.com/3.js", Duration: 700, Type: "script"},
			{URL: "https://cdn.example.com/4.js", Duration: 600, Type: "script"},
			{URL: "https://cdn.example.com/5.js", Duration: 500, Type: "script"},
			{URL: "https://cdn.example.com/6.js", Duration: 400, Type: "script"},
		}},
		Audits: []audit.AuditItem{
			{Title: "Reduce unused JavaScript", Score: &low, DisplayValue: "Potential savings of 320 KiB"},
			{Title: "Uses HTTP/2", Score: &high},
			{Title: "Diagnostics", Score: info},
		},
	}
	got := BuildUserPrompt(m)

	for _, want := range []string{
		"URL: https://shop.example.com",
		"Performance score: 41/100",
		"LCP (largest contentful paint): 4210 ms",
		"CLS (cumulative layout shift): 0.120",
		"FID (first input delay): no data",
		"- JavaScript: 900 KB",
		"- Third party: 20 (25%)",
		"5. https://cdn.example.com/5.js (500 ms, script)",
		"- Reduce unused JavaScript: Potential savings of 320 KiB (score 0.30)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	for _, absent := range []string{"6.js", "Uses HTTP/2", "Diagnostics"} {
		if strings.Contains(got, absent) {
			t.Fatalf("prompt should not contain %q", absent)
		}
	}
}

func TestBuildRequestUsesSystemPrompt(t *testing.T) {
	req := BuildRequest(audit.Metrics{URL: "https://a.example"})
	if req.System != SystemPrompt() || !strings.Contains(req.System, "\"bottleneckDistribution\"") {
		t.Fatalf("system prompt not embedded")
	}
	if !strings.Contains(req.User, "https://a.example") {
		t.Fatalf("user prompt missing URL")
	}
}
