package config

import (
	"github.com/habiliai/memoryd/errors"
	"github.com/jcooky/go-din"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
)

type EmbeddingConfig struct {
	// Provider is openai or local. local uses feature hashing and needs no network.
	// Default: openai
	Provider string `env:"EMBEDDING_PROVIDER" yaml:"provider"`

	// Model is the embedding model name
	// Default: text-embedding-3-small
	Model string `env:"EMBEDDING_MODEL" yaml:"model"`

	// Dimensions must match the vector table once it is created
	// Default: 1536
	Dimensions int `env:"EMBEDDING_DIMENSIONS" yaml:"dimensions"`

	APIKey  string `env:"OPENAI_API_KEY" yaml:"apiKey"`
	BaseURL string `env:"OPENAI_BASE_URL" yaml:"baseUrl"`

	// CacheSize bounds the number of cached embeddings, 0 disables the cache
	// Default: 10000
	CacheSize int `env:"EMBEDDING_CACHE_SIZE" yaml:"cacheSize"`
}

func NewEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		Provider:   EmbeddingProviderOpenAI,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		CacheSize:  10000,
	}
}

func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case EmbeddingProviderOpenAI:
		if c.APIKey == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "OPENAI_API_KEY is required for openai embeddings")
		}
	case EmbeddingProviderLocal:
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown embedding provider %q", c.Provider)
	}
	if c.Dimensions <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "embedding dimensions must be positive")
	}
	return nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*EmbeddingConfig, error) {
		conf := NewEmbeddingConfig()
		if err := resolveConfig(conf, "embedding", c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		return conf, conf.Validate()
	})
}
