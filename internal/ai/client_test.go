package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		cfg         AnthropicConfig
		expectError bool
	}{
		{
			name: "Valid client without proxy",
			cfg:  AnthropicConfig{APIKey: "sk-ant-test-key", Model: "claude-sonnet-4-5"},
		},
		{
			name: "Valid client with proxy",
			cfg:  AnthropicConfig{APIKey: "sk-ant-test-key", ProxyURL: "http://proxy.example.com:8080"},
		},
		{
			name:        "Missing API key",
			cfg:         AnthropicConfig{Model: "claude-sonnet-4-5"},
			expectError: true,
		},
		{
			name:        "Invalid proxy URL",
			cfg:         AnthropicConfig{APIKey: "sk-ant-test-key", ProxyURL: "://invalid-url"},
			expectError: true,
		},
		{
			name:        "Unsupported proxy scheme",
			cfg:         AnthropicConfig{APIKey: "sk-ant-test-key", ProxyURL: "socks5://proxy:1080"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.client == nil {
				t.Error("Expected Anthropic client to be initialized")
			}
			if client.model == "" {
				t.Error("Expected model to default")
			}
		})
	}
}

func newAnthropicServer(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("path = %s, want .../messages", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Summarize(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, map[string]interface{}{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-5",
		"stop_reason": "end_turn",
		"content": []map[string]string{
			{"type": "text", "text": "- Lock the admin account"},
		},
		"usage": map[string]int{"input_tokens": 1000, "output_tokens": 500},
	})

	client, err := NewClient(AnthropicConfig{APIKey: "sk-ant-test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	text, stats, err := client.Summarize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if text != "- Lock the admin account" {
		t.Errorf("text = %q", text)
	}
	if stats.InputTokens != 1000 || stats.OutputTokens != 500 {
		t.Errorf("tokens = %d/%d, want 1000/500", stats.InputTokens, stats.OutputTokens)
	}
	// 1000 * 3/1M + 500 * 15/1M
	if stats.CostUSD < 0.0104 || stats.CostUSD > 0.0106 {
		t.Errorf("CostUSD = %f, want 0.0105", stats.CostUSD)
	}
}

func TestClient_Summarize_APIErrorIsUnavailable(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusInternalServerError, map[string]interface{}{
		"type":  "error",
		"error": map[string]string{"type": "api_error", "message": "internal failure"},
	})

	client, _ := NewClient(AnthropicConfig{APIKey: "sk-ant-test-key", BaseURL: srv.URL + "/v1"})

	_, _, err := client.Summarize(context.Background(), "prompt")
	verifySummarizerErrorKind(t, err, Unavailable)
}

func TestClient_Summarize_EmptyContent(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, map[string]interface{}{
		"id":      "msg_1",
		"type":    "message",
		"role":    "assistant",
		"content": []map[string]string{},
		"usage":   map[string]int{"input_tokens": 10, "output_tokens": 0},
	})

	client, _ := NewClient(AnthropicConfig{APIKey: "sk-ant-test-key", BaseURL: srv.URL + "/v1"})

	_, _, err := client.Summarize(context.Background(), "prompt")
	verifySummarizerErrorKind(t, err, InvalidResponse)
}

func TestClient_ErrorsDoNotLeakKey(t *testing.T) {
	key := "sk-ant-REDACTED"
	client, _ := NewClient(AnthropicConfig{APIKey: key, BaseURL: "http://127.0.0.1:1/v1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := client.Summarize(ctx, "prompt")
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	if strings.Contains(err.Error(), key) {
		t.Errorf("error leaks API key: %v", err)
	}
}

func TestClient_GetModelInfo(t *testing.T) {
	client, _ := NewClient(AnthropicConfig{APIKey: "sk-ant-test-key", Model: "claude-x", MaxTokens: 1234})

	info := client.GetModelInfo()
	if info["model"] != "claude-x" || info["max_tokens"] != 1234 || info["provider"] != "Anthropic" {
		t.Errorf("GetModelInfo() = %v", info)
	}
	if client.GetProviderName() != "Anthropic" {
		t.Errorf("GetProviderName() = %s", client.GetProviderName())
	}
}
