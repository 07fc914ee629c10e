package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaBaseURL is the local Ollama endpoint
	DefaultOllamaBaseURL = "http://localhost:11434"
	// DefaultOllamaModel is the model used when none is configured
	DefaultOllamaModel = "llama3"
)

// OllamaClient wraps the Ollama REST API
type OllamaClient struct {
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	httpClient *http.Client
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	BaseURL        string // e.g., "http://localhost:11434"
	Model          string // e.g., "llama3"
	TimeoutSeconds int    // Request timeout
	MaxTokens      int    // Max tokens in response
	MaxRetries     int    // Retries after the first attempt
}

// ollamaGenerateRequest is the request body for Ollama's /api/generate endpoint
type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

// ollamaOptions contains model parameters
type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens to generate
	Temperature float64 `json:"temperature,omitempty"`
}

// ollamaGenerateResponse is the response from Ollama's /api/generate endpoint
type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            *bool  `json:"done,omitempty"` // absent on some compatible servers
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// ollamaTagsResponse is the response from Ollama's /api/tags endpoint
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}

	// Remove trailing slash from base URL
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("ollama base URL must use http or https scheme, got: %s", cfg.BaseURL)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}

	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Summarize sends the prompt to /api/generate and returns the response text
func (c *OllamaClient) Summarize(ctx context.Context, prompt string) (string, *Stats, error) {
	startTime := time.Now()

	response, attempts, err := retryWithBackoff(ctx, c.maxRetries, func() (*ollamaGenerateResponse, error) {
		return c.callAPI(ctx, prompt)
	})
	if err != nil {
		return "", nil, err
	}

	text := strings.TrimSpace(response.Response)
	if text == "" {
		return "", nil, invalidResponse("Ollama", fmt.Errorf("empty response from Ollama"))
	}

	stats := c.calculateStats(response, time.Since(startTime).Seconds())
	stats.Attempts = attempts

	return text, stats, nil
}

// callAPI makes the actual API call to Ollama using the generate endpoint
func (c *OllamaClient) callAPI(ctx context.Context, prompt string) (*ollamaGenerateResponse, error) {
	request := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  c.maxTokens,
			Temperature: 0.1, // Low temperature for consistent, factual output
		},
	}

	response, err := doJSONPost[ollamaGenerateResponse](ctx, c.httpClient, "Ollama", c.baseURL+"/api/generate", request)
	if err != nil {
		return nil, err
	}

	if response.Done != nil && !*response.Done {
		return nil, invalidResponse("Ollama", fmt.Errorf("incomplete response from Ollama"))
	}

	return response, nil
}

// calculateStats calculates statistics from Ollama response
func (c *OllamaClient) calculateStats(response *ollamaGenerateResponse, durationSeconds float64) *Stats {
	// Local inference has no monetary cost
	return &Stats{
		Provider:        "Ollama",
		Model:           c.model,
		InputTokens:     response.PromptEvalCount,
		OutputTokens:    response.EvalCount,
		CostUSD:         0.0,
		DurationSeconds: durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *OllamaClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":      c.model,
		"provider":   "Ollama",
		"max_tokens": c.maxTokens,
		"base_url":   c.baseURL,
	}
}

// GetProviderName returns the name of the provider
func (c *OllamaClient) GetProviderName() string {
	return "Ollama"
}

// CheckConnection verifies that Ollama is running and the model is available
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	tags, err := getJSON[ollamaTagsResponse](ctx, c.httpClient, c.baseURL+"/api/tags")
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", c.baseURL, err)
	}

	// Match model name (e.g., "llama3:latest" matches "llama3")
	base := strings.Split(c.model, ":")[0]
	for _, m := range tags.Models {
		if m.Name == c.model || strings.Split(m.Name, ":")[0] == base {
			return nil
		}
	}

	availableModels := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		availableModels[i] = m.Name
	}
	return fmt.Errorf("model '%s' not found in Ollama. Available models: %v. Run 'ollama pull %s' to download it",
		c.model, availableModels, c.model)
}

// Ensure OllamaClient implements Summarizer interface
var _ Summarizer = (*OllamaClient)(nil)
