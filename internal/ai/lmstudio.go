package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LMStudioClient wraps the LM Studio OpenAI-compatible REST API.
type LMStudioClient struct {
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	httpClient *http.Client
}

// LMStudioConfig holds LM Studio-specific configuration
type LMStudioConfig struct {
	BaseURL        string // e.g., "http://localhost:1234"
	Model          string // e.g., "local-model" (LM Studio model identifier)
	TimeoutSeconds int    // Request timeout
	MaxTokens      int    // Max tokens in response
	MaxRetries     int    // Retries after the first attempt
}

// openAIChatRequest is the request body for OpenAI-compatible /v1/chat/completions endpoint
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

// openAIMessage represents a chat message in OpenAI format
type openAIMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// openAIChatResponse is the response from OpenAI-compatible /v1/chat/completions endpoint
type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// openAIModelsResponse is the response from /v1/models endpoint
type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewLMStudioClient creates a new LM Studio client
func NewLMStudioClient(cfg LMStudioConfig) (*LMStudioClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}

	// Remove trailing slash from base URL
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Model == "" {
		// LM Studio uses "local-model" or the loaded model's name
		cfg.Model = "local-model"
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}

	return &LMStudioClient{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Summarize sends the prompt as a single user message
func (c *LMStudioClient) Summarize(ctx context.Context, prompt string) (string, *Stats, error) {
	startTime := time.Now()

	response, attempts, err := retryWithBackoff(ctx, c.maxRetries, func() (*openAIChatResponse, error) {
		return c.callAPI(ctx, prompt)
	})
	if err != nil {
		return "", nil, err
	}

	if len(response.Choices) == 0 {
		return "", nil, invalidResponse("LMStudio", fmt.Errorf("empty response from LM Studio (no choices)"))
	}

	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return "", nil, invalidResponse("LMStudio", fmt.Errorf("empty response from LM Studio"))
	}

	stats := &Stats{
		Provider:        "LMStudio",
		Model:           c.model,
		InputTokens:     response.Usage.PromptTokens,
		OutputTokens:    response.Usage.CompletionTokens,
		DurationSeconds: time.Since(startTime).Seconds(),
		Attempts:        attempts,
	}

	return text, stats, nil
}

// callAPI makes the actual API call to LM Studio using the OpenAI-compatible endpoint
func (c *LMStudioClient) callAPI(ctx context.Context, prompt string) (*openAIChatResponse, error) {
	request := openAIChatRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
		Stream:      false,
	}

	return doJSONPost[openAIChatResponse](ctx, c.httpClient, "LMStudio", c.baseURL+"/v1/chat/completions", request)
}

// GetModelInfo returns information about the configured model
func (c *LMStudioClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":      c.model,
		"provider":   "LMStudio",
		"max_tokens": c.maxTokens,
		"base_url":   c.baseURL,
	}
}

// GetProviderName returns the name of the provider
func (c *LMStudioClient) GetProviderName() string {
	return "LMStudio"
}

// CheckConnection verifies that LM Studio is running and a model is loaded
func (c *LMStudioClient) CheckConnection(ctx context.Context) error {
	models, err := getJSON[openAIModelsResponse](ctx, c.httpClient, c.baseURL+"/v1/models")
	if err != nil {
		return fmt.Errorf("LM Studio is not reachable at %s: %w", c.baseURL, err)
	}

	if len(models.Data) == 0 {
		return fmt.Errorf("no models loaded in LM Studio. Please load a model in LM Studio first")
	}

	// "local-model" means whatever model is currently loaded
	if c.model == "local-model" {
		return nil
	}

	for _, m := range models.Data {
		if m.ID == c.model || strings.Contains(m.ID, c.model) {
			return nil
		}
	}

	availableModels := make([]string, len(models.Data))
	for i, m := range models.Data {
		availableModels[i] = m.ID
	}
	return fmt.Errorf("model '%s' not found in LM Studio. Available models: %v", c.model, availableModels)
}

// Ensure LMStudioClient implements Summarizer interface
var _ Summarizer = (*LMStudioClient)(nil)
