package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"perf-report-backend/internal/llm"
)

func TestOmitsTemperature(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "deepseek chat", model: "deepseek-chat", want: false},
		{name: "deepseek reasoner", model: "deepseek-reasoner", want: true},
		{name: "gpt5 uppercase", model: " GPT-5-mini ", want: true},
		{name: "o3", model: "o3-mini", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := omitsTemperature(tt.model); got != tt.want {
				t.Fatalf("omitsTemperature(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(llm.Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient(llm.Config{Provider: llm.ProviderGemini, APIKey: "k"}); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody = payload
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"summary\":\"ok\"}\n"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`))
	}))
	defer server.Close()

	client, err := NewClient(llm.Config{APIKey: "test-key", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var usage llm.Usage
	ctx := llm.WithUsageSink(context.Background(), &usage)
	text, err := client.Complete(ctx, llm.Request{System: "sys", User: "audit"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"summary":"ok"}` {
		t.Fatalf("text = %q", text)
	}
	if usage.TotalTokens != 150 || usage.PromptTokens != 120 {
		t.Fatalf("usage not recorded: %+v", usage)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["model"] != llm.DefaultModel {
		t.Fatalf("model = %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(llm.DefaultMaxTokens) {
		t.Fatalf("max_tokens = %v", gotBody["max_tokens"])
	}
	if temp, ok := gotBody["temperature"].(float64); !ok || temp < 0.69 || temp > 0.71 {
		t.Fatalf("temperature = %v", gotBody["temperature"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", messages)
	}
}

func TestCompleteOmitsTemperatureForReasoner(t *testing.T) {
	var mu sync.Mutex
	var hasTemp bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		_, hasTemp = payload["temperature"]
		mu.Unlock()
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(llm.Config{APIKey: "k", BaseURL: server.URL, Model: "deepseek-reasoner"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), llm.Request{User: "x"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hasTemp {
		t.Fatalf("expected temperature to be omitted")
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key","type":"auth"}}`, want: "invalid api key"},
		{name: "bad gateway", status: http.StatusBadGateway, body: `<html>`, want: "status 502"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: "missing choices"},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, want: "empty content"},
		{name: "not json", status: http.StatusOK, body: `oops`, want: "response parse"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(llm.Config{APIKey: "k", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.Complete(context.Background(), llm.Request{User: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewClient(llm.Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), llm.Request{User: "x"})
	if err == nil || !strings.Contains(err.Error(), "llm request timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
