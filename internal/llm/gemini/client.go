package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/shared/telemetry"
)

// Client implements llm.Client with the Gemini API.
type Client struct {
	cfg    llm.Config
	models *genai.Models
}

// NewClient constructs a Gemini client. BaseURL overrides the API host.
func NewClient(ctx context.Context, cfg llm.Config) (*Client, error) {
	cfg.Provider = llm.ProviderGemini
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is required for provider %s", cfg.Provider)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{cfg: cfg, models: client.Models}, nil
}

// Complete sends the system instruction and user text and returns the model text.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	gen := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
	}
	if strings.TrimSpace(req.System) != "" {
		gen.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.User), gen)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("llm request timeout: %w", err)
		}
		return "", fmt.Errorf("llm error: %w", err)
	}

	fields := map[string]any{"provider": c.cfg.Provider, "model": c.cfg.Model}
	if u := resp.UsageMetadata; u != nil {
		fields["prompt_tokens"] = u.PromptTokenCount
		fields["completion_tokens"] = u.CandidatesTokenCount
		fields["total_tokens"] = u.TotalTokenCount
		if sink, ok := llm.UsageSinkFromContext(ctx); ok {
			*sink = llm.Usage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
	}
	telemetry.Info("llm.usage", fields)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("llm response empty content")
	}
	return text, nil
}

var _ llm.Client = (*Client)(nil)
