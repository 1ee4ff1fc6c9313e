package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Client abstracts the text-generation providers used to write reports.
// Complete returns the raw model text; callers own parsing and recovery.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one system + user exchange.
type Request struct {
	System string
	User   string
}

// Provider names accepted in Config.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderNone     = "none"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 8000
	DefaultTimeout     = 300 * time.Second
)

// Config carries provider settings. It is built by the process configuration
// layer and passed to the client constructors.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// WithDefaults fills unset fields with the provider defaults.
func (c Config) WithDefaults() Config {
	out := c
	out.Provider = strings.ToLower(strings.TrimSpace(out.Provider))
	if out.Provider == "" {
		out.Provider = ProviderDeepSeek
	}
	if strings.TrimSpace(out.Model) == "" {
		switch out.Provider {
		case ProviderGemini:
			out.Model = DefaultGeminiModel
		case ProviderOpenAI:
			out.Model = "gpt-4o-mini"
		default:
			out.Model = DefaultModel
		}
	}
	if strings.TrimSpace(out.BaseURL) == "" {
		switch out.Provider {
		case ProviderOpenAI:
			out.BaseURL = "https://api.openai.com/v1"
		case ProviderDeepSeek:
			out.BaseURL = DefaultBaseURL
		}
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Temperature <= 0 {
		out.Temperature = DefaultTemperature
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	return out
}

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type usageSinkKey struct{}

// WithUsageSink returns a context whose completions record token usage into sink.
func WithUsageSink(ctx context.Context, sink *Usage) context.Context {
	return context.WithValue(ctx, usageSinkKey{}, sink)
}

// UsageSinkFromContext returns the usage sink, if any.
func UsageSinkFromContext(ctx context.Context) (*Usage, bool) {
	sink, ok := ctx.Value(usageSinkKey{}).(*Usage)
	return sink, ok && sink != nil
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm provider not configured")

// PlaceholderClient is used when no provider is configured. Every call fails,
// which sends ingestion straight to the locally computed report.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotConfigured
}
