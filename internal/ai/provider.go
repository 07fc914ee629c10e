package ai

import (
	"context"
	"fmt"
)

// Summarizer turns a prompt listing security events into a readable report.
// Implementations talk to an external LLM service.
type Summarizer interface {
	// Summarize sends the prompt and returns the generated report text.
	// Failures are *SummarizerError.
	Summarize(ctx context.Context, prompt string) (string, *Stats, error)

	// GetModelInfo returns information about the configured model
	GetModelInfo() map[string]interface{}

	// GetProviderName returns the name of the provider (e.g., "Anthropic", "Ollama")
	GetProviderName() string
}

// Stats holds statistics about a summarizer call
type Stats struct {
	Provider            string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	DurationSeconds     float64
	Attempts            int
}

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderOllama    ProviderType = "ollama"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderLMStudio  ProviderType = "lmstudio"
	// ProviderNone disables summarization; reports fall back to raw events.
	ProviderNone ProviderType = "none"
)

// ValidProviderTypes returns a list of valid provider types
func ValidProviderTypes() []ProviderType {
	return []ProviderType{ProviderOllama, ProviderAnthropic, ProviderLMStudio, ProviderNone}
}

// IsValidProviderType checks if the given provider type is valid
func IsValidProviderType(pt string) bool {
	for _, valid := range ValidProviderTypes() {
		if string(valid) == pt {
			return true
		}
	}
	return false
}

// Settings selects and configures a summarizer provider.
type Settings struct {
	Provider       ProviderType
	TimeoutSeconds int
	MaxTokens      int
	MaxRetries     int

	OllamaBaseURL string
	OllamaModel   string

	AnthropicAPIKey string
	ClaudeModel     string
	ProxyURL        string

	LMStudioBaseURL string
	LMStudioModel   string
}

// NewSummarizer creates the summarizer for the configured provider.
// ProviderNone returns a nil Summarizer and no error.
func NewSummarizer(s Settings) (Summarizer, error) {
	switch s.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:        s.OllamaBaseURL,
			Model:          s.OllamaModel,
			TimeoutSeconds: s.TimeoutSeconds,
			MaxTokens:      s.MaxTokens,
			MaxRetries:     s.MaxRetries,
		})
	case ProviderAnthropic:
		return NewClient(AnthropicConfig{
			APIKey:         s.AnthropicAPIKey,
			Model:          s.ClaudeModel,
			ProxyURL:       s.ProxyURL,
			TimeoutSeconds: s.TimeoutSeconds,
			MaxTokens:      s.MaxTokens,
			MaxRetries:     s.MaxRetries,
		})
	case ProviderLMStudio:
		return NewLMStudioClient(LMStudioConfig{
			BaseURL:        s.LMStudioBaseURL,
			Model:          s.LMStudioModel,
			TimeoutSeconds: s.TimeoutSeconds,
			MaxTokens:      s.MaxTokens,
			MaxRetries:     s.MaxRetries,
		})
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (valid: %v)", s.Provider, ValidProviderTypes())
	}
}
