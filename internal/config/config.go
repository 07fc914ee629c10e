package config

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/seclog-ai-go/internal/ai"
	"github.com/olegiv/seclog-ai-go/internal/analyzer"
	"github.com/olegiv/seclog-ai-go/internal/parser"
)

// Config holds all application configuration
type Config struct {
	// LLM Provider Selection
	LLMProvider string // "ollama" (default), "anthropic", "lmstudio" or "none"

	// Anthropic/Claude Settings (used when LLMProvider = "anthropic")
	AnthropicAPIKey string
	ClaudeModel     string

	// Ollama Settings (used when LLMProvider = "ollama")
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3"

	// LM Studio Settings (used when LLMProvider = "lmstudio")
	LMStudioBaseURL string // e.g., "http://localhost:1234"
	LMStudioModel   string

	// AI Settings
	AITimeoutSeconds int
	AIMaxTokens      int
	AIMaxRetries     int

	// Pipeline
	ParseMode    parser.Mode
	FilterPolicy analyzer.FilterPolicy
	Classifier   string
	MaxLogSizeMB int

	// Server
	ServerAddr          string
	MaxConnections      int
	AcceptRatePerSec    float64
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
	MaxUploadMB         int
	DefaultInputPath    string
	UploadDir           string
	IndexHTMLPath       string
	MetricsAddr         string // empty disables the admin listener

	// Telegram (optional)
	TelegramBotToken       string
	TelegramArchiveChannel int64
	TelegramAlertsChannel  int64

	// Application
	LogLevel       string
	LogDir         string
	EnableDatabase bool
	DatabasePath   string

	// Proxy
	HTTPProxy  string
	HTTPSProxy string
}

// Overrides carries command-line values that take precedence over the
// environment. Empty fields leave the loaded value alone.
type Overrides struct {
	LLMProvider      string
	ParseMode        string
	FilterPolicy     string
	LogLevel         string
	ServerAddr       string
	DefaultInputPath string
	UploadDir        string
	IndexHTMLPath    string
	MetricsAddr      string
}

// Load loads configuration from .env file and environment variables
// For CLI overrides, use LoadWithOverrides instead
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides loads configuration with CLI overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithOverrides(o *Overrides) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv.Load() sets OS env vars from .env, which viper will then read
	_ = godotenv.Load()

	setDefaults(v)

	config := &Config{
		LLMProvider:     strings.ToLower(v.GetString("LLM_PROVIDER")),
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:     v.GetString("CLAUDE_MODEL"),
		OllamaBaseURL:   v.GetString("OLLAMA_BASE_URL"),
		OllamaModel:     v.GetString("OLLAMA_MODEL"),
		LMStudioBaseURL: v.GetString("LMSTUDIO_BASE_URL"),
		LMStudioModel:   v.GetString("LMSTUDIO_MODEL"),

		AITimeoutSeconds: v.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:      v.GetInt("AI_MAX_TOKENS"),
		AIMaxRetries:     v.GetInt("AI_MAX_RETRIES"),

		Classifier:   v.GetString("CLASSIFIER"),
		MaxLogSizeMB: v.GetInt("MAX_LOG_SIZE_MB"),

		ServerAddr:          v.GetString("SERVER_ADDR"),
		MaxConnections:      v.GetInt("MAX_CONNECTIONS"),
		AcceptRatePerSec:    v.GetFloat64("ACCEPT_RATE_PER_SEC"),
		ReadTimeoutSeconds:  v.GetInt("READ_TIMEOUT_SECONDS"),
		WriteTimeoutSeconds: v.GetInt("WRITE_TIMEOUT_SECONDS"),
		MaxUploadMB:         v.GetInt("MAX_UPLOAD_MB"),
		DefaultInputPath:    v.GetString("DEFAULT_INPUT_PATH"),
		UploadDir:           v.GetString("UPLOAD_DIR"),
		IndexHTMLPath:       v.GetString("INDEX_HTML_PATH"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),

		TelegramBotToken:       v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramArchiveChannel: v.GetInt64("TELEGRAM_CHANNEL_ARCHIVE_ID"),
		TelegramAlertsChannel:  v.GetInt64("TELEGRAM_CHANNEL_ALERTS_ID"),

		LogLevel:       v.GetString("LOG_LEVEL"),
		LogDir:         v.GetString("LOG_DIR"),
		EnableDatabase: v.GetBool("ENABLE_DATABASE"),
		DatabasePath:   v.GetString("DATABASE_PATH"),

		HTTPProxy:  v.GetString("HTTP_PROXY"),
		HTTPSProxy: v.GetString("HTTPS_PROXY"),
	}

	parseMode := v.GetString("PARSE_MODE")
	filterPolicy := v.GetString("FILTER_POLICY")

	// Apply CLI overrides (highest priority)
	if o != nil {
		overrideString(&config.LLMProvider, strings.ToLower(o.LLMProvider))
		overrideString(&parseMode, o.ParseMode)
		overrideString(&filterPolicy, o.FilterPolicy)
		overrideString(&config.LogLevel, o.LogLevel)
		overrideString(&config.ServerAddr, o.ServerAddr)
		overrideString(&config.DefaultInputPath, o.DefaultInputPath)
		overrideString(&config.UploadDir, o.UploadDir)
		overrideString(&config.IndexHTMLPath, o.IndexHTMLPath)
		overrideString(&config.MetricsAddr, o.MetricsAddr)
	}

	mode, err := parser.ParseMode(parseMode)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: PARSE_MODE: %w", err)
	}
	config.ParseMode = mode

	policy, err := analyzer.ParseFilterPolicy(filterPolicy)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: FILTER_POLICY: %w", err)
	}
	config.FilterPolicy = policy

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// LLM Provider defaults
	v.SetDefault("LLM_PROVIDER", string(ai.ProviderOllama))
	v.SetDefault("CLAUDE_MODEL", ai.DefaultClaudeModel)
	v.SetDefault("OLLAMA_BASE_URL", ai.DefaultOllamaBaseURL)
	v.SetDefault("OLLAMA_MODEL", ai.DefaultOllamaModel)
	v.SetDefault("LMSTUDIO_BASE_URL", "http://localhost:1234")
	v.SetDefault("LMSTUDIO_MODEL", "local-model")
	v.SetDefault("AI_TIMEOUT_SECONDS", 30)
	v.SetDefault("AI_MAX_TOKENS", 2000)
	v.SetDefault("AI_MAX_RETRIES", 2)

	// Pipeline defaults
	v.SetDefault("PARSE_MODE", string(parser.ModeStrict))
	v.SetDefault("FILTER_POLICY", string(analyzer.PolicySeverity))
	v.SetDefault("CLASSIFIER", analyzer.DefaultClassifier)
	v.SetDefault("MAX_LOG_SIZE_MB", parser.DefaultMaxSizeMB)

	// Server defaults
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("MAX_CONNECTIONS", 16)
	v.SetDefault("ACCEPT_RATE_PER_SEC", 0)
	v.SetDefault("READ_TIMEOUT_SECONDS", 5)
	v.SetDefault("WRITE_TIMEOUT_SECONDS", 5)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("DEFAULT_INPUT_PATH", "varied_logs.json")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("INDEX_HTML_PATH", "")
	v.SetDefault("METRICS_ADDR", "")

	// Application defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "./logs")
	v.SetDefault("ENABLE_DATABASE", false)
	v.SetDefault("DATABASE_PATH", "./data/runs.db")
}

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateLLMProvider(); err != nil {
		return err
	}

	if err := c.validateTelegram(); err != nil {
		return err
	}

	if c.Classifier != "" && !analyzer.NewDefaultRegistry().Has(c.Classifier) {
		return fmt.Errorf("CLASSIFIER %q is not registered (available: %s)",
			c.Classifier, strings.Join(analyzer.NewDefaultRegistry().List(), ", "))
	}

	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 100 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 100")
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.EnableDatabase && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
	}

	if c.AITimeoutSeconds < 1 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 1 and 600")
	}
	if c.AIMaxTokens < 100 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 100 and 16000")
	}
	if c.AIMaxRetries < 0 || c.AIMaxRetries > 10 {
		return fmt.Errorf("AI_MAX_RETRIES must be between 0 and 10")
	}

	return nil
}

// validateTelegram checks the optional Telegram settings. A bot token
// enables delivery and then requires an archive channel.
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		return nil
	}
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}

	if c.TelegramArchiveChannel == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.TelegramArchiveChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID must be a supergroup/channel ID (starts with -100)")
	}

	if c.TelegramAlertsChannel != 0 && c.TelegramAlertsChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID must be a supergroup/channel ID (starts with -100)")
	}
	return nil
}

// validateServer checks the front-end settings.
func (c *Config) validateServer() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	if c.MaxConnections < 1 || c.MaxConnections > 1024 {
		return fmt.Errorf("MAX_CONNECTIONS must be between 1 and 1024")
	}
	if c.AcceptRatePerSec < 0 {
		return fmt.Errorf("ACCEPT_RATE_PER_SEC must not be negative")
	}
	if c.ReadTimeoutSeconds < 1 || c.ReadTimeoutSeconds > 300 {
		return fmt.Errorf("READ_TIMEOUT_SECONDS must be between 1 and 300")
	}
	if c.WriteTimeoutSeconds < 1 || c.WriteTimeoutSeconds > 300 {
		return fmt.Errorf("WRITE_TIMEOUT_SECONDS must be between 1 and 300")
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 100 {
		return fmt.Errorf("MAX_UPLOAD_MB must be between 1 and 100")
	}
	if c.DefaultInputPath == "" {
		return fmt.Errorf("DEFAULT_INPUT_PATH is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	return nil
}

// HasTelegram returns true if Telegram delivery is configured
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != ""
}

// HasAlertsChannel returns true if alerts channel is configured
func (c *Config) HasAlertsChannel() bool {
	return c.TelegramAlertsChannel != 0
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// constantTimePrefixMatch checks if s starts with prefix using constant-time comparison.
// Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}

// validateLLMProvider validates LLM provider configuration
func (c *Config) validateLLMProvider() error {
	if !ai.IsValidProviderType(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'ollama', 'anthropic', 'lmstudio', or 'none' (got: %s)", c.LLMProvider)
	}

	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when LLM_PROVIDER=anthropic")
		}

	case ai.ProviderOllama:
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=ollama")
		}
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required when LLM_PROVIDER=ollama")
		}
		if !strings.HasPrefix(c.OllamaBaseURL, "http://") && !strings.HasPrefix(c.OllamaBaseURL, "https://") {
			return fmt.Errorf("OLLAMA_BASE_URL must start with 'http://' or 'https://'")
		}

	case ai.ProviderLMStudio:
		if c.LMStudioBaseURL == "" {
			return fmt.Errorf("LMSTUDIO_BASE_URL is required when LLM_PROVIDER=lmstudio")
		}
		if !strings.HasPrefix(c.LMStudioBaseURL, "http://") && !strings.HasPrefix(c.LMStudioBaseURL, "https://") {
			return fmt.Errorf("LMSTUDIO_BASE_URL must start with 'http://' or 'https://'")
		}
	}

	return nil
}

// SummarizerSettings returns the provider settings for ai.NewSummarizer.
func (c *Config) SummarizerSettings() ai.Settings {
	return ai.Settings{
		Provider:        ai.ProviderType(c.LLMProvider),
		TimeoutSeconds:  c.AITimeoutSeconds,
		MaxTokens:       c.AIMaxTokens,
		MaxRetries:      c.AIMaxRetries,
		OllamaBaseURL:   c.OllamaBaseURL,
		OllamaModel:     c.OllamaModel,
		AnthropicAPIKey: c.AnthropicAPIKey,
		ClaudeModel:     c.ClaudeModel,
		ProxyURL:        c.GetProxyURL(true),
		LMStudioBaseURL: c.LMStudioBaseURL,
		LMStudioModel:   c.LMStudioModel,
	}
}

// SummarizerTimeout is the pipeline's bound on one summarizer call.
func (c *Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// IsSummarizationDisabled returns true if LLM_PROVIDER is "none"
func (c *Config) IsSummarizationDisabled() bool {
	return c.LLMProvider == string(ai.ProviderNone)
}

// GetLLMModel returns the model name for the current LLM provider
func (c *Config) GetLLMModel() string {
	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderOllama:
		return c.OllamaModel
	case ai.ProviderLMStudio:
		return c.LMStudioModel
	case ai.ProviderAnthropic:
		return c.ClaudeModel
	default:
		return ""
	}
}
