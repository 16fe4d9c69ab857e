package config

import (
	"github.com/habiliai/memoryd/errors"
	"github.com/jcooky/go-din"
)

const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
	LLMProviderRules     = "rules"
)

type LLMConfig struct {
	// Provider drives statement classification and graph extraction.
	// openai speaks to any OpenAI-compatible endpoint (OpenRouter, NanoGPT) via BaseURL.
	// rules uses the built-in heuristics only.
	// Default: rules
	Provider string `env:"LLM_PROVIDER" yaml:"provider"`
	Model    string `env:"LLM_MODEL" yaml:"model"`
	BaseURL  string `env:"LLM_BASE_URL" yaml:"baseUrl"`
	APIKey   string `env:"LLM_API_KEY" yaml:"apiKey"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY" yaml:"-"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY" yaml:"-"`

	Temperature float64 `env:"LLM_TEMPERATURE" yaml:"temperature"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS" yaml:"maxTokens"`
}

func NewLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    LLMProviderRules,
		Temperature: 0,
		MaxTokens:   2048,
	}
}

// Key returns the API key for the configured provider, preferring LLM_API_KEY.
func (c *LLMConfig) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.Provider {
	case LLMProviderOpenAI:
		return c.OpenAIAPIKey
	case LLMProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// ModelName falls back to a small default model for the provider.
func (c *LLMConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case LLMProviderAnthropic:
		return "claude-3-5-haiku-latest"
	default:
		return "gpt-4o-mini"
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderRules:
		return nil
	case LLMProviderOpenAI, LLMProviderAnthropic:
		if c.Key() == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "an API key is required for the %s provider", c.Provider)
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown llm provider %q", c.Provider)
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*LLMConfig, error) {
		conf := NewLLMConfig()
		if err := resolveConfig(conf, "llm", c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		return conf, conf.Validate()
	})
}
